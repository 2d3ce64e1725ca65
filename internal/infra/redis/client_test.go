package redis

import (
	"reflect"
	"testing"
	"time"
)

func TestKeys(t *testing.T) {
	if got := rescanKey("arbitrum"); got != "txsync:rescan:arbitrum" {
		t.Errorf("rescanKey = %q", got)
	}
	if got := failedQueueKey("zksync"); got != "txsync:failed:zksync" {
		t.Errorf("failedQueueKey = %q", got)
	}
	if got := failedUnitKey("zksync", 427); got != "txsync:failed_unit:zksync:427" {
		t.Errorf("failedUnitKey = %q", got)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient(t.Context(), Config{URL: "not-a-url"}); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestStaleScore(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	want := "(1699395200"
	if got := staleScore(now); got != want {
		t.Errorf("staleScore = %q, want %q", got, want)
	}
}

func TestParseUnits(t *testing.T) {
	got := parseUnits([]string{"427", "x", "3", "10"})
	if want := []uint64{3, 10, 427}; !reflect.DeepEqual(got, want) {
		t.Errorf("parseUnits = %v, want %v", got, want)
	}
}
