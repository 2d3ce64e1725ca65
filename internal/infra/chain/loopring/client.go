// Package loopring reads blocks from the Loopring REST API.
package loopring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/infra/chain"
	"github.com/vietddude/txsync/internal/infra/rpc/provider"
	"github.com/vietddude/txsync/internal/infra/rpc/ratelimit"
)

// Block is a Loopring block. CreatedAt is in milliseconds.
type Block struct {
	BlockID      uint64            `json:"blockId"`
	BlockSize    uint64            `json:"blockSize"`
	CreatedAt    int64             `json:"createdAt"`
	Transactions []json.RawMessage `json:"transactions"`
	ResultInfo   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"resultInfo"`
}

// Client is a rate-limited Loopring API client.
type Client struct {
	project domain.ProjectID
	api     chain.RESTCaller

	getBlock func(ctx context.Context, id *uint64) (*Block, error)
}

// NewClient creates a client whose calls share limiter's budget.
func NewClient(project domain.ProjectID, api chain.RESTCaller, limiter *ratelimit.Limiter) *Client {
	c := &Client{project: project, api: api}
	c.getBlock = ratelimit.Wrap1(limiter, c.fetchBlock)
	return c
}

var _ chain.BlockSource = (*Client)(nil)

// GetLatestBlock returns the id of the most recent block.
func (c *Client) GetLatestBlock(ctx context.Context) (uint64, error) {
	block, err := c.getBlock(ctx, nil)
	if err != nil {
		return 0, err
	}
	return block.BlockID, nil
}

// GetBlockRecords returns one unit-level record counting the block's transactions.
func (c *Client) GetBlockRecords(ctx context.Context, blockNumber uint64) ([]domain.TxRecord, error) {
	block, err := c.getBlock(ctx, &blockNumber)
	if err != nil {
		return nil, err
	}
	if block.BlockID != blockNumber {
		return nil, &provider.DecodeError{Err: fmt.Errorf("requested block %d, got %d", blockNumber, block.BlockID)}
	}

	return []domain.TxRecord{{
		ProjectID: c.project,
		Unit:      blockNumber,
		Count:     uint64(len(block.Transactions)),
		Timestamp: domain.UnixTime(block.CreatedAt / 1000),
	}}, nil
}

func (c *Client) fetchBlock(ctx context.Context, id *uint64) (*Block, error) {
	var query url.Values
	if id != nil {
		query = url.Values{"id": {strconv.FormatUint(*id, 10)}}
	}

	var block Block
	if err := c.api.Get(ctx, "getBlock", "/block/getBlock", query, &block); err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	if block.ResultInfo != nil && block.ResultInfo.Code != 0 {
		return nil, fmt.Errorf("loopring api error %d: %s", block.ResultInfo.Code, block.ResultInfo.Message)
	}
	return &block, nil
}
