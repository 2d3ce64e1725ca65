package cli

import (
	"reflect"
	"testing"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/indexing/gaps"
)

func TestFailedRanges(t *testing.T) {
	failed := []domain.FailedUnit{{Unit: 3}, {Unit: 4}, {Unit: 9}, {Unit: 5}, {Unit: 12}}
	got := failedRanges(failed)
	want := []gaps.Range{{Start: 3, End: 6}, {Start: 9, End: 10}, {Start: 12, End: 13}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("failedRanges() = %v, want %v", got, want)
	}
}
