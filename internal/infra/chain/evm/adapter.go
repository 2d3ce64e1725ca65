package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/infra/chain"
	"github.com/vietddude/txsync/internal/infra/rpc/provider"
	"github.com/vietddude/txsync/internal/infra/rpc/ratelimit"
)

// EVMAdapter reads block transaction counts over Ethereum JSON-RPC.
type EVMAdapter struct {
	project domain.ProjectID
	client  chain.RPCCaller

	blockNumber func(ctx context.Context) (uint64, error)
	getBlock    func(ctx context.Context, n uint64) (*rpcBlock, error)
}

type rpcBlock struct {
	Number       string            `json:"number"`
	Timestamp    string            `json:"timestamp"`
	Transactions []json.RawMessage `json:"transactions"`
}

// NewEVMAdapter creates an adapter whose calls share limiter's budget.
func NewEVMAdapter(project domain.ProjectID, client chain.RPCCaller, limiter *ratelimit.Limiter) *EVMAdapter {
	a := &EVMAdapter{project: project, client: client}
	a.blockNumber = ratelimit.Wrap(limiter, a.fetchBlockNumber)
	a.getBlock = ratelimit.Wrap1(limiter, a.fetchBlock)
	return a
}

var _ chain.BlockSource = (*EVMAdapter)(nil)

func (a *EVMAdapter) GetLatestBlock(ctx context.Context) (uint64, error) {
	return a.blockNumber(ctx)
}

// GetBlockRecords returns a single unit-level record counting the block's transactions.
func (a *EVMAdapter) GetBlockRecords(ctx context.Context, blockNumber uint64) ([]domain.TxRecord, error) {
	block, err := a.getBlock(ctx, blockNumber)
	if err != nil {
		return nil, err
	}

	timestamp, err := parseHexString(block.Timestamp)
	if err != nil {
		return nil, &provider.DecodeError{Err: fmt.Errorf("block %d timestamp: %w", blockNumber, err)}
	}

	return []domain.TxRecord{{
		ProjectID: a.project,
		Unit:      blockNumber,
		Index:     0,
		Count:     uint64(len(block.Transactions)),
		Timestamp: domain.UnixTime(timestamp),
	}}, nil
}

func (a *EVMAdapter) fetchBlockNumber(ctx context.Context) (uint64, error) {
	result, err := a.client.Call(ctx, "eth_blockNumber")
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}

	var blockHex string
	if err := json.Unmarshal(result, &blockHex); err != nil {
		return 0, fmt.Errorf("invalid block number response: %w", err)
	}
	return parseHexString(blockHex)
}

func (a *EVMAdapter) fetchBlock(ctx context.Context, blockNumber uint64) (*rpcBlock, error) {
	blockHex := fmt.Sprintf("0x%x", blockNumber)
	result, err := a.client.Call(ctx, "eth_getBlockByNumber", blockHex, false)
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber failed: %w", err)
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, fmt.Errorf("block %d: %w", blockNumber, chain.ErrBlockNotFound)
	}

	var block rpcBlock
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, fmt.Errorf("invalid block format: %w", err)
	}
	return &block, nil
}

func parseHexString(hexStr string) (uint64, error) {
	n := new(big.Int)
	if _, ok := n.SetString(strings.TrimPrefix(hexStr, "0x"), 16); !ok {
		return 0, fmt.Errorf("invalid hex: %q", hexStr)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("hex out of range: %s", hexStr)
	}
	return n.Uint64(), nil
}
