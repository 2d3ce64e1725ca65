package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/indexing/gaps"
)

// Client wraps Redis operations for operator-requested rescans.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client and waits for it to answer a ping.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	backoff := retry.WithMaxRetries(4, retry.NewExponential(250*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key helpers
func rescanKey(project domain.ProjectID) string {
	return fmt.Sprintf("txsync:rescan:%s", project)
}

// PushRange requests a rescan of r. Ranges are stored in their inclusive
// text form, scored by start so lower units are popped first.
func (c *Client) PushRange(ctx context.Context, project domain.ProjectID, r gaps.Range) error {
	if r.Empty() {
		return fmt.Errorf("empty range %s", r)
	}
	member := r.FormatInclusive()
	if err := c.rdb.ZAdd(ctx, rescanKey(project), redis.Z{Score: float64(r.Start), Member: member}).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// PopRange removes and returns the lowest pending range.
func (c *Client) PopRange(ctx context.Context, project domain.ProjectID) (gaps.Range, bool, error) {
	results, err := c.rdb.ZPopMin(ctx, rescanKey(project), 1).Result()
	if err != nil {
		return gaps.Range{}, false, fmt.Errorf("zpopmin failed: %w", err)
	}
	if len(results) == 0 {
		return gaps.Range{}, false, nil
	}

	member, ok := results[0].Member.(string)
	if !ok {
		return gaps.Range{}, false, fmt.Errorf("unexpected member type %T", results[0].Member)
	}
	r, err := gaps.ParseRange(member)
	if err != nil {
		return gaps.Range{}, false, err
	}
	return r, true, nil
}

// DrainRanges pops every pending range, merged.
func (c *Client) DrainRanges(ctx context.Context, project domain.ProjectID) ([]gaps.Range, error) {
	var ranges []gaps.Range
	for {
		r, found, err := c.PopRange(ctx, project)
		if err != nil {
			return gaps.MergeRanges(ranges), err
		}
		if !found {
			return gaps.MergeRanges(ranges), nil
		}
		ranges = append(ranges, r)
	}
}

// GetAllRanges returns all pending ranges without removing them.
func (c *Client) GetAllRanges(ctx context.Context, project domain.ProjectID) ([]gaps.Range, error) {
	members, err := c.rdb.ZRange(ctx, rescanKey(project), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}
	ranges := make([]gaps.Range, 0, len(members))
	for _, m := range members {
		r, err := gaps.ParseRange(m)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// ClearQueue removes all pending ranges.
func (c *Client) ClearQueue(ctx context.Context, project domain.ProjectID) error {
	return c.rdb.Del(ctx, rescanKey(project)).Err()
}
