package postgres

import (
	"reflect"
	"testing"

	"github.com/vietddude/txsync/internal/core/domain"
)

func TestDedupe_LastWins(t *testing.T) {
	in := []domain.TxRecord{
		{ProjectID: "zksync", Unit: 1, Index: 0, Count: 1},
		{ProjectID: "zksync", Unit: 1, Index: 1, Count: 1},
		{ProjectID: "zksync", Unit: 1, Index: 0, Count: 1, Timestamp: 99},
	}
	got := dedupe(in)
	want := []domain.TxRecord{
		{ProjectID: "zksync", Unit: 1, Index: 0, Count: 1, Timestamp: 99},
		{ProjectID: "zksync", Unit: 1, Index: 1, Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir(migrationsDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("no migrations embedded")
	}
}
