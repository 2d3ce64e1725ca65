package control

import (
	"fmt"
	"log/slog"

	"github.com/vietddude/txsync/internal/core/config"
	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/indexing/updater"
	"github.com/vietddude/txsync/internal/infra/chain"
	"github.com/vietddude/txsync/internal/infra/chain/evm"
	"github.com/vietddude/txsync/internal/infra/chain/loopring"
	"github.com/vietddude/txsync/internal/infra/chain/starkex"
	"github.com/vietddude/txsync/internal/infra/chain/zksync"
	"github.com/vietddude/txsync/internal/infra/rpc/provider"
	"github.com/vietddude/txsync/internal/infra/rpc/ratelimit"
)

// buildUpdaters creates one updater per configured project. All StarkEx
// projects share a single API client and rate budget.
func buildUpdaters(
	cfg *config.AppConfig,
	deps updater.Deps,
	logger *slog.Logger,
) ([]*updater.Updater, []*provider.HTTPProvider, error) {
	var (
		updaters  []*updater.Updater
		providers []*provider.HTTPProvider
		starkexDS chain.DaySource
		starkexRL *ratelimit.Limiter
	)

	for _, p := range cfg.Projects {
		opts := updater.Options{
			Workers:           p.Workers,
			MaxUnitsPerUpdate: cfg.Sync.MaxUnitsPerUpdate,
		}
		var limiter *ratelimit.Limiter

		switch p.Type {
		case domain.ProviderStarkex:
			if starkexDS == nil {
				sx := cfg.Sync.Starkex
				api := provider.NewHTTPProvider("starkex", sx.URL, sx.Timeout)
				providers = append(providers, api)
				starkexRL = ratelimit.New(sx.CallsPerMinute).Named("starkex")
				starkexDS = starkex.NewClient(api, sx.APIKey, starkexRL)
			}
			limiter = starkexRL
			opts.Workers = cfg.Sync.Starkex.Workers
			u := updater.NewDayUpdater(p.ID, starkexDS, p.Product, p.Since(), cfg.Sync.Starkex.APIDelay, deps, opts)
			updaters = append(updaters, u)

		case domain.ProviderRPC, domain.ProviderZksync, domain.ProviderLoopring:
			api := provider.NewHTTPProvider(string(p.ID), p.URL, p.Timeout)
			providers = append(providers, api)
			limiter = ratelimit.New(p.CallsPerMinute).Named(string(p.ID))

			var src chain.BlockSource
			switch p.Type {
			case domain.ProviderRPC:
				src = evm.NewEVMAdapter(p.ID, api, limiter)
			case domain.ProviderZksync:
				src = zksync.NewClient(api, limiter)
			case domain.ProviderLoopring:
				src = loopring.NewClient(p.ID, api, limiter)
			}
			updaters = append(updaters, updater.NewBlockUpdater(p.ID, p.Type, src, p.Since(), deps, opts))

		default:
			return nil, nil, fmt.Errorf("project %s: unknown provider type %q", p.ID, p.Type)
		}

		logger.Info("Updater configured",
			"project", p.ID,
			"provider", p.Type,
			"workers", opts.Workers,
			"rate_limit", limiter.Limit(),
			"rate_window", limiter.Window(),
		)
	}
	return updaters, providers, nil
}
