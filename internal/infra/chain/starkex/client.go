// Package starkex reads daily transaction counts from the StarkEx aggregation API.
package starkex

import (
	"context"
	"fmt"
	"net/url"

	"github.com/vietddude/txsync/internal/infra/chain"
	"github.com/vietddude/txsync/internal/infra/rpc/provider"
	"github.com/vietddude/txsync/internal/infra/rpc/ratelimit"
)

type countRequest struct {
	Day     uint64 `json:"day"`
	Product string `json:"product"`
}

type countResponse struct {
	Count *uint64 `json:"count"`
}

// Client is a rate-limited StarkEx API client.
type Client struct {
	api    chain.RESTCaller
	apiKey string

	count func(ctx context.Context, product string, day uint64) (uint64, error)
}

// NewClient creates a client whose calls share limiter's budget.
func NewClient(api chain.RESTCaller, apiKey string, limiter *ratelimit.Limiter) *Client {
	c := &Client{api: api, apiKey: apiKey}
	c.count = ratelimit.Wrap2(limiter, c.fetchCount)
	return c
}

var _ chain.DaySource = (*Client)(nil)

// GetDailyCount returns the number of transactions of product on day,
// where day counts days since the Unix epoch.
func (c *Client) GetDailyCount(ctx context.Context, product string, day uint64) (uint64, error) {
	return c.count(ctx, product, day)
}

func (c *Client) fetchCount(ctx context.Context, product string, day uint64) (uint64, error) {
	path := "/aggregations/count"
	if c.apiKey != "" {
		path += "?key=" + url.QueryEscape(c.apiKey)
	}

	var resp countResponse
	if err := c.api.Post(ctx, "aggregationsCount", path, countRequest{Day: day, Product: product}, &resp); err != nil {
		return 0, fmt.Errorf("count %s day %d: %w", product, day, err)
	}
	if resp.Count == nil {
		return 0, &provider.DecodeError{Err: fmt.Errorf("count %s day %d: missing count", product, day)}
	}
	return *resp.Count, nil
}
