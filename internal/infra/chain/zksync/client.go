// Package zksync reads finalized blocks and their transactions from the zkSync REST API.
package zksync

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/infra/chain"
	"github.com/vietddude/txsync/internal/infra/rpc/ratelimit"
)

// PageSize is the number of transactions requested per page.
const PageSize = 100

type apiError struct {
	ErrorType string `json:"errorType"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
}

type envelope[T any] struct {
	Status string    `json:"status"`
	Error  *apiError `json:"error"`
	Result T         `json:"result"`
}

type blockResult struct {
	BlockNumber uint64 `json:"blockNumber"`
}

type pagination struct {
	From      string `json:"from"`
	Limit     int    `json:"limit"`
	Direction string `json:"direction"`
	Count     int    `json:"count"`
}

// Transaction is a zkSync transaction as listed inside a block.
type Transaction struct {
	TxHash     string    `json:"txHash"`
	BlockIndex uint64    `json:"blockIndex"`
	CreatedAt  time.Time `json:"createdAt"`
}

type txPage struct {
	Pagination pagination    `json:"pagination"`
	List       []Transaction `json:"list"`
}

// Client is a rate-limited zkSync API client.
type Client struct {
	api chain.RESTCaller

	lastFinalized func(ctx context.Context) (uint64, error)
	page          func(ctx context.Context, block uint64, from string) (*txPage, error)
}

// NewClient creates a client whose calls share limiter's budget.
func NewClient(api chain.RESTCaller, limiter *ratelimit.Limiter) *Client {
	c := &Client{api: api}
	c.lastFinalized = ratelimit.Wrap(limiter, c.fetchLastFinalized)
	c.page = ratelimit.Wrap2(limiter, c.fetchPage)
	return c
}

var _ chain.BlockSource = (*Client)(nil)

// GetLatestBlock returns the last finalized block number.
func (c *Client) GetLatestBlock(ctx context.Context) (uint64, error) {
	return c.lastFinalized(ctx)
}

// GetTransactionsInBlock returns every transaction of block, ordered by blockIndex.
func (c *Client) GetTransactionsInBlock(ctx context.Context, block uint64) ([]Transaction, error) {
	first, err := c.page(ctx, block, "latest")
	if err != nil {
		return nil, err
	}

	total := first.Pagination.Count
	txs := append([]Transaction(nil), first.List...)

	for len(txs) < total {
		last := txs[len(txs)-1].TxHash
		next, err := c.page(ctx, block, last)
		if err != nil {
			return nil, err
		}
		// The page starts at the cursor transaction itself.
		if len(next.List) > 0 && next.List[0].TxHash == last {
			next.List = next.List[1:]
		}
		if len(next.List) == 0 {
			return nil, fmt.Errorf("block %d: pagination stalled at %d of %d transactions", block, len(txs), total)
		}
		txs = append(txs, next.List...)
	}

	sort.SliceStable(txs, func(i, j int) bool { return txs[i].BlockIndex < txs[j].BlockIndex })
	return txs, nil
}

// GetBlockRecords returns one record per transaction of block.
func (c *Client) GetBlockRecords(ctx context.Context, block uint64) ([]domain.TxRecord, error) {
	txs, err := c.GetTransactionsInBlock(ctx, block)
	if err != nil {
		return nil, err
	}

	records := make([]domain.TxRecord, len(txs))
	for i, tx := range txs {
		records[i] = domain.TxRecord{
			ProjectID: domain.ProjectZksync,
			Unit:      block,
			Index:     tx.BlockIndex,
			Count:     1,
			Timestamp: domain.FromTime(tx.CreatedAt),
		}
	}
	return records, nil
}

func (c *Client) fetchLastFinalized(ctx context.Context) (uint64, error) {
	var resp envelope[blockResult]
	if err := c.api.Get(ctx, "lastFinalized", "/blocks/lastFinalized", nil, &resp); err != nil {
		return 0, fmt.Errorf("get last finalized block: %w", err)
	}
	if err := check(resp.Status, resp.Error); err != nil {
		return 0, err
	}
	return resp.Result.BlockNumber, nil
}

func (c *Client) fetchPage(ctx context.Context, block uint64, from string) (*txPage, error) {
	query := url.Values{
		"from":      {from},
		"limit":     {strconv.Itoa(PageSize)},
		"direction": {"older"},
	}
	var resp envelope[txPage]
	path := "/blocks/" + strconv.FormatUint(block, 10) + "/transactions"
	if err := c.api.Get(ctx, "blockTransactions", path, query, &resp); err != nil {
		return nil, fmt.Errorf("get block %d transactions: %w", block, err)
	}
	if err := check(resp.Status, resp.Error); err != nil {
		return nil, fmt.Errorf("block %d: %w", block, err)
	}
	return &resp.Result, nil
}

func check(status string, apiErr *apiError) error {
	if status == "success" {
		return nil
	}
	if apiErr != nil {
		return fmt.Errorf("zksync api error %d (%s): %s", apiErr.Code, apiErr.ErrorType, apiErr.Message)
	}
	return fmt.Errorf("zksync api status %q", status)
}
