package gaps

import (
	"reflect"
	"testing"
)

func TestRange_Split(t *testing.T) {
	got := Range{Start: 0, End: 10}.Split(4)
	want := []Range{{0, 4}, {4, 8}, {8, 10}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split() = %v, want %v", got, want)
	}

	if got := (Range{Start: 3, End: 3}).Split(4); got != nil {
		t.Errorf("empty range split = %v", got)
	}
}

func TestMergeRanges(t *testing.T) {
	got := MergeRanges([]Range{{10, 12}, {1, 3}, {3, 5}, {11, 20}, {30, 30}})
	want := []Range{{1, 5}, {10, 20}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeRanges() = %v, want %v", got, want)
	}
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("100-105")
	if err != nil {
		t.Fatalf("ParseRange failed: %v", err)
	}
	if r != (Range{Start: 100, End: 106}) {
		t.Errorf("ParseRange() = %v", r)
	}
	if r.FormatInclusive() != "100-105" {
		t.Errorf("FormatInclusive() = %s", r.FormatInclusive())
	}

	if _, err := ParseRange("9-1"); err == nil {
		t.Error("expected error for reversed range")
	}
	for _, in := range []string{"abc", "5-9x", "5-", "-9", "1-2-3", " 1-2", "0-18446744073709551615"} {
		if _, err := ParseRange(in); err == nil {
			t.Errorf("ParseRange(%q): expected error", in)
		}
	}

	r, err = ParseRange("7-7")
	if err != nil || r != (Range{Start: 7, End: 8}) {
		t.Errorf("ParseRange(7-7) = %v, %v", r, err)
	}
}
