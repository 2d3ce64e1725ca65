package starkex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/txsync/internal/infra/rpc/provider"
	"github.com/vietddude/txsync/internal/infra/rpc/ratelimit"
)

func TestClient_GetDailyCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/aggregations/count" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "secret" {
			t.Errorf("expected api key, got %q", got)
		}
		var req countRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Day != 19000 || req.Product != "dydx" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"count":4242}`))
	}))
	defer server.Close()

	api := provider.NewHTTPProvider("starkex", server.URL, 5*time.Second)
	c := NewClient(api, "secret", ratelimit.NewWindow(100, time.Minute))

	n, err := c.GetDailyCount(context.Background(), "dydx", 19000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4242 {
		t.Errorf("expected 4242, got %d", n)
	}
}

func TestClient_MissingCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	api := provider.NewHTTPProvider("starkex", server.URL, 5*time.Second)
	c := NewClient(api, "", ratelimit.NewWindow(100, time.Minute))

	_, err := c.GetDailyCount(context.Background(), "dydx", 1)
	if err == nil {
		t.Fatal("expected error for missing count")
	}
	if !provider.IsPermanent(err) {
		t.Errorf("missing count must not be retried: %v", err)
	}
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	api := provider.NewHTTPProvider("starkex", server.URL, 5*time.Second)
	c := NewClient(api, "", ratelimit.NewWindow(100, time.Minute))

	_, err := c.GetDailyCount(context.Background(), "dydx", 1)
	if err == nil || provider.IsPermanent(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
