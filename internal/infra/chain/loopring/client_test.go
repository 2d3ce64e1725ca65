package loopring

import (
	"context"
	"net/http"
	"net/http/httptest"
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
	api := provider.NewHTTPProvider("loopring", server.URL, 5*time.Second)
	return NewClient("loopring", api, ratelimit.NewWindow(1000, time.Minute))
}

func TestClient_GetLatestBlock(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/block/getBlock" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Has("id") {
			t.Errorf("latest block request must not carry an id")
		}
		w.Write([]byte(`{"blockId":30210,"blockSize":386,"createdAt":1660000000000,"transactions":[]}`))
	})

	n, err := c.GetLatestBlock(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 30210 {
		t.Errorf("expected 30210, got %d", n)
	}
}

func TestClient_GetBlockRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id"); got != "12" {
			t.Errorf("expected id=12, got %q", got)
		}
		w.Write([]byte(`{"blockId":12,"blockSize":4,"createdAt":1660000123456,"transactions":[{},{},{},{}]}`))
	})

	records, err := c.GetBlockRecords(context.Background(), 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.ProjectID != "loopring" || r.Unit != 12 || r.Count != 4 {
		t.Errorf("unexpected record %+v", r)
	}
	if r.Timestamp != 1660000123 {
		t.Errorf("expected timestamp in seconds, got %d", r.Timestamp)
	}
}

func TestClient_WrongBlockIsPermanent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"blockId":13,"blockSize":0,"createdAt":1660000123456,"transactions":[]}`))
	})

	_, err := c.GetBlockRecords(context.Background(), 12)
	if err == nil || !provider.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestClient_ResultInfoError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resultInfo":{"code":104002,"message":"block not found"}}`))
	})

	_, err := c.GetBlockRecords(context.Background(), 99999999)
	if err == nil || !strings.Contains(err.Error(), "block not found") {
		t.Fatalf("expected api error, got %v", err)
	}
}
