package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/txsync/internal/indexing/metrics"
)

// HTTPProvider performs JSON-RPC and REST calls against one endpoint.
type HTTPProvider struct {
	name       string
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Uint64

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	requestCount int

	Monitor *ProviderMonitor
}

// NewHTTPProvider creates a new HTTP provider. endpoint is the JSON-RPC URL
// or the REST base URL.
func NewHTTPProvider(name, endpoint string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		health: HealthStatus{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
		Monitor: NewProviderMonitor(),
	}
}

// Call makes a single JSON-RPC 2.0 call and returns the raw result.
func (p *HTTPProvider) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      p.nextID.Add(1),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := p.do(method, req)
	if err != nil {
		return nil, err
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		p.countError(&DecodeError{Err: err})
		return nil, &DecodeError{Err: err}
	}

	if rpcResp.Error != nil {
		if p.Monitor.DetectThrottlePattern(rpcResp.Error.Message) {
			err := fmt.Errorf("%w: %s", ErrThrottled, rpcResp.Error.Message)
			p.countError(err)
			return nil, err
		}
		p.countError(rpcResp.Error)
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// Get performs GET {endpoint}{path}?{query} and decodes the JSON body into out.
// op labels the call in metrics.
func (p *HTTPProvider) Get(ctx context.Context, op, path string, query url.Values, out any) error {
	target := p.endpoint + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return p.rest(op, req, out)
}

// Post performs POST {endpoint}{path} with a JSON body and decodes the
// response into out.
func (p *HTTPProvider) Post(ctx context.Context, op, path string, in, out any) error {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return p.rest(op, req, out)
}

func (p *HTTPProvider) rest(op string, req *http.Request, out any) error {
	body, err := p.do(op, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		p.countError(&DecodeError{Err: err})
		return &DecodeError{Err: err}
	}
	return nil
}

// do sends req and returns the body of a 2xx response. Failures are recorded.
func (p *HTTPProvider) do(op string, req *http.Request) ([]byte, error) {
	if status := p.Monitor.CheckProviderStatus(); status == StatusThrottled || status == StatusBlocked {
		err := fmt.Errorf("%w, retry after: %v", ErrThrottled, p.Monitor.GetRetryAfter())
		metrics.RemoteErrorsTotal.WithLabelValues(p.name, ClassThrottled.String()).Inc()
		return nil, err
	}

	start := time.Now()
	metrics.RemoteCallsTotal.WithLabelValues(p.name, op).Inc()

	resp, err := p.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%s call: %w", op, err)
		p.fail(err)
		return nil, err
	}
	defer resp.Body.Close()

	latency := time.Since(start)
	metrics.RemoteLatency.WithLabelValues(p.name, op).Observe(latency.Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("read response: %w", err)
		p.fail(err)
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		p.Monitor.RecordThrottle(resp.StatusCode, resp.Header.Get("Retry-After"))
	case resp.StatusCode == http.StatusForbidden && p.Monitor.DetectThrottlePattern(string(body)):
		p.Monitor.RecordThrottle(resp.StatusCode, "")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
		p.fail(err)
		return nil, err
	}

	p.Monitor.RecordRequest(latency)
	p.recordSuccess(latency)
	return body, nil
}

// GetName returns the provider's name.
func (p *HTTPProvider) GetName() string {
	return p.name
}

// GetHealth returns the provider's health status.
func (p *HTTPProvider) GetHealth() HealthStatus {
	p.mu.RLock()
	h := p.health
	p.mu.RUnlock()
	h.Status = p.Monitor.CheckProviderStatus().String()
	return h
}

// IsAvailable checks if the provider is available.
func (p *HTTPProvider) IsAvailable() bool {
	status := p.Monitor.CheckProviderStatus()
	return status == StatusHealthy || status == StatusDegraded
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// fail records a failed round trip.
func (p *HTTPProvider) fail(err error) {
	p.countError(err)
	p.recordFailure()
}

// countError records an error in a response that otherwise arrived intact.
func (p *HTTPProvider) countError(err error) {
	metrics.RemoteErrorsTotal.WithLabelValues(p.name, Classify(err).String()).Inc()
}

func (p *HTTPProvider) recordSuccess(latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.successCount++
	p.requestCount++
	p.totalLatency += latency
	p.health.LastSuccessAt = time.Now()
	p.health.Available = true

	if p.requestCount > 0 {
		p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	}
	if p.successCount > 0 {
		p.health.Latency = p.totalLatency / time.Duration(p.successCount)
	}
}

func (p *HTTPProvider) recordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failureCount++
	p.requestCount++
	p.health.LastFailureAt = time.Now()

	if p.requestCount > 0 {
		p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	}

	if p.health.ErrorRate > 0.5 {
		p.health.Available = false
	}
}
