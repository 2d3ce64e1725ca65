package updater

import (
	"context"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/infra/chain"
)

// blockSource adapts a block-indexed provider. Block 0 is never fetched.
type blockSource struct {
	kind domain.ProviderType
	src  chain.BlockSource
}

func (s *blockSource) provider() domain.ProviderType { return s.kind }

func (s *blockSource) bound(ctx context.Context) (uint64, error) {
	return s.src.GetLatestBlock(ctx)
}

func (s *blockSource) floor() uint64 { return 1 }

func (s *blockSource) fetch(ctx context.Context, block uint64) ([]domain.TxRecord, error) {
	return s.src.GetBlockRecords(ctx, block)
}

// NewBlockUpdater creates an updater for a block-indexed provider.
// since only bounds the daily counts it reports.
func NewBlockUpdater(
	project domain.ProjectID,
	kind domain.ProviderType,
	src chain.BlockSource,
	since domain.UnixTime,
	deps Deps,
	opts Options,
) *Updater {
	return newUpdater(project, &blockSource{kind: kind, src: src}, since, deps, opts)
}
