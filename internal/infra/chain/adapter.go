// Package chain defines the remote data sources the updaters reconcile against.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/vietddude/txsync/internal/core/domain"
)

// ErrBlockNotFound is returned when the source does not know a block yet.
var ErrBlockNotFound = errors.New("block not found")

// BlockSource is a block-indexed provider.
type BlockSource interface {
	// GetLatestBlock returns the highest block whose data can be fetched
	GetLatestBlock(ctx context.Context) (uint64, error)

	// GetBlockRecords returns the normalized records of one block
	GetBlockRecords(ctx context.Context, blockNumber uint64) ([]domain.TxRecord, error)
}

// DaySource is a day-indexed provider reporting aggregate counts.
type DaySource interface {
	// GetDailyCount returns the transaction count of product on the given day
	GetDailyCount(ctx context.Context, product string, day uint64) (uint64, error)
}

// RPCCaller makes JSON-RPC calls.
type RPCCaller interface {
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// RESTCaller makes REST calls.
type RESTCaller interface {
	Get(ctx context.Context, op, path string, query url.Values, out any) error
	Post(ctx context.Context, op, path string, in, out any) error
}
