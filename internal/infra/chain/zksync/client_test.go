package zksync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/txsync/internal/infra/rpc/provider"
	"github.com/vietddude/txsync/internal/infra/rpc/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	api := provider.NewHTTPProvider("zksync", server.URL, 5*time.Second)
	return NewClient(api, ratelimit.NewWindow(1000, time.Minute))
}

func TestClient_GetLatestBlock(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blocks/lastFinalized" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"success","error":null,"result":{"blockNumber":5123}}`))
	})

	n, err := c.GetLatestBlock(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5123 {
		t.Errorf("expected 5123, got %d", n)
	}
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","error":{"errorType":"internal","code":300,"message":"boom"},"result":null}`))
	})

	_, err := c.GetLatestBlock(context.Background())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected api error, got %v", err)
	}
}

// serveBlock serves a block of n transactions newest first, PageSize per page.
func serveBlock(t *testing.T, n int) http.HandlerFunc {
	hash := func(i int) string { return fmt.Sprintf("0x%04d", i) }
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blocks/9/transactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("direction") != "older" || q.Get("limit") != strconv.Itoa(PageSize) {
			t.Errorf("unexpected query %v", q)
		}

		start := n - 1
		if from := q.Get("from"); from != "latest" {
			fmt.Sscanf(from, "0x%04d", &start)
		}

		list := []Transaction{}
		for i := start; i >= 0 && len(list) < PageSize; i-- {
			list = append(list, Transaction{
				TxHash:     hash(i),
				BlockIndex: uint64(i),
				CreatedAt:  time.Unix(1600000000+int64(i), 0).UTC(),
			})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"result": map[string]any{
				"pagination": map[string]any{"from": q.Get("from"), "limit": PageSize, "direction": "older", "count": n},
				"list":       list,
			},
		})
	}
}

func TestClient_GetTransactionsInBlock_Paginates(t *testing.T) {
	const total = 250
	c := newTestClient(t, serveBlock(t, total))

	txs, err := c.GetTransactionsInBlock(context.Background(), 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != total {
		t.Fatalf("expected %d transactions, got %d", total, len(txs))
	}
	for i, tx := range txs {
		if tx.BlockIndex != uint64(i) {
			t.Fatalf("position %d has blockIndex %d", i, tx.BlockIndex)
		}
	}
}

func TestClient_GetBlockRecords(t *testing.T) {
	c := newTestClient(t, serveBlock(t, 3))

	records, err := c.GetBlockRecords(context.Background(), 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, r := range records {
		if r.Unit != 9 || r.Index != uint64(i) || r.Count != 1 {
			t.Errorf("record %d: unexpected %+v", i, r)
		}
		if int64(r.Timestamp) != 1600000000+int64(i) {
			t.Errorf("record %d: unexpected timestamp %d", i, r.Timestamp)
		}
	}
}

func TestClient_EmptyBlock(t *testing.T) {
	c := newTestClient(t, serveBlock(t, 0))

	records, err := c.GetBlockRecords(context.Background(), 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
