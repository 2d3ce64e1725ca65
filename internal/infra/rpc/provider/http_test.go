package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPProvider_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req struct {
			JSONRPC string `json:"jsonrpc"`
			Method  string `json:"method"`
			Params  []any  `json:"params"`
			ID      uint64 `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.JSONRPC != "2.0" || req.Method != "eth_getBlockByNumber" {
			t.Errorf("unexpected request %+v", req)
		}
		if len(req.Params) != 2 || req.Params[0] != "0xa" || req.Params[1] != false {
			t.Errorf("unexpected params %v", req.Params)
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"number":"0xa"}}`))
	}))
	defer server.Close()

	p := NewHTTPProvider("test", server.URL, 5*time.Second)
	raw, err := p.Call(context.Background(), "eth_getBlockByNumber", "0xa", false)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	var block struct {
		Number string `json:"number"`
	}
	if err := json.Unmarshal(raw, &block); err != nil {
		t.Fatal(err)
	}
	if block.Number != "0xa" {
		t.Errorf("expected 0xa, got %s", block.Number)
	}
}

func TestHTTPProvider_CallRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
	}))
	defer server.Close()

	p := NewHTTPProvider("test", server.URL, 5*time.Second)
	_, err := p.Call(context.Background(), "eth_nope")

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32601 {
		t.Fatalf("expected RPCError -32601, got %v", err)
	}
	if !IsPermanent(err) {
		t.Error("method not found should be permanent")
	}
}

func TestHTTPProvider_CallThrottleMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"daily request count exceeded"}}`))
	}))
	defer server.Close()

	p := NewHTTPProvider("test", server.URL, 5*time.Second)
	_, err := p.Call(context.Background(), "eth_blockNumber")
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
}

func TestHTTPProvider_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/blocks/7/transactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("from"); got != "latest" {
			t.Errorf("unexpected from %q", got)
		}
		w.Write([]byte(`{"status":"success","list":[1,2,3]}`))
	}))
	defer server.Close()

	p := NewHTTPProvider("test", server.URL+"/", 5*time.Second)
	var out struct {
		Status string `json:"status"`
		List   []int  `json:"list"`
	}
	err := p.Get(context.Background(), "transactions", "/blocks/7/transactions", url.Values{"from": {"latest"}}, &out)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.Status != "success" || len(out.List) != 3 {
		t.Errorf("unexpected body %+v", out)
	}
}

func TestHTTPProvider_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/aggregations/count" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["product"] != "dydx" {
			t.Errorf("unexpected body %v", body)
		}
		w.Write([]byte(`{"count":12}`))
	}))
	defer server.Close()

	p := NewHTTPProvider("test", server.URL, 5*time.Second)
	var out struct {
		Count uint64 `json:"count"`
	}
	if err := p.Post(context.Background(), "count", "/aggregations/count", map[string]any{"day": 1, "product": "dydx"}, &out); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if out.Count != 12 {
		t.Errorf("expected 12, got %d", out.Count)
	}
}

func TestHTTPProvider_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		class  ErrorClass
	}{
		{http.StatusTooManyRequests, ClassThrottled},
		{http.StatusInternalServerError, ClassTransient},
		{http.StatusBadGateway, ClassTransient},
		{http.StatusNotFound, ClassPermanent},
		{http.StatusBadRequest, ClassPermanent},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte("nope"))
		}))

		p := NewHTTPProvider("test", server.URL, 5*time.Second)
		err := p.Get(context.Background(), "op", "/x", nil, nil)
		server.Close()

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || httpErr.StatusCode != tt.status {
			t.Errorf("status %d: expected HTTPError, got %v", tt.status, err)
			continue
		}
		if got := Classify(err); got != tt.class {
			t.Errorf("status %d: class %v, want %v", tt.status, got, tt.class)
		}
	}
}

func TestHTTPProvider_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	p := NewHTTPProvider("test", server.URL, 5*time.Second)
	var out map[string]any
	err := p.Get(context.Background(), "op", "/x", nil, &out)
	if !IsPermanent(err) {
		t.Fatalf("expected permanent decode error, got %v", err)
	}
}

func TestHTTPProvider_ThrottledAfterRepeated429(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewHTTPProvider("test", server.URL, 5*time.Second)
	for i := 0; i < 6; i++ {
		p.Get(context.Background(), "op", "/x", nil, nil)
	}
	if p.IsAvailable() {
		t.Fatal("provider should be throttled")
	}

	err := p.Get(context.Background(), "op", "/x", nil, nil)
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	if n := calls.Load(); n != 6 {
		t.Errorf("expected no request while throttled, server saw %d", n)
	}
	if h := p.GetHealth(); h.Status != "throttled" {
		t.Errorf("expected throttled status, got %q", h.Status)
	}
}
