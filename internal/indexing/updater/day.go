package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/infra/chain"
)

// DefaultAPIDelay is how long a day-indexed provider needs before a day's
// count is final.
const DefaultAPIDelay = 4 * time.Hour

// daySource adapts a day-indexed provider. Units are days since the epoch.
type daySource struct {
	project  domain.ProjectID
	src      chain.DaySource
	product  string
	since    domain.UnixTime
	apiDelay time.Duration
	clock    Clock
}

func (s *daySource) provider() domain.ProviderType { return domain.ProviderStarkex }

// bound returns the last complete day the API has counted.
func (s *daySource) bound(ctx context.Context) (uint64, error) {
	available := s.clock.GetLastHour().Add(-s.apiDelay).ToStartOf(domain.Day)
	day := available.Day()
	if day == 0 {
		return 0, fmt.Errorf("no complete day available at %s", available)
	}
	return day - 1, nil
}

func (s *daySource) floor() uint64 { return s.since.Day() }

func (s *daySource) fetch(ctx context.Context, day uint64) ([]domain.TxRecord, error) {
	count, err := s.src.GetDailyCount(ctx, s.product, day)
	if err != nil {
		return nil, err
	}
	return []domain.TxRecord{{
		ProjectID: s.project,
		Unit:      day,
		Count:     count,
		Timestamp: domain.FromDay(day),
	}}, nil
}

// NewDayUpdater creates an updater for a day-indexed provider. Days before
// since and days younger than apiDelay are never fetched.
func NewDayUpdater(
	project domain.ProjectID,
	src chain.DaySource,
	product string,
	since domain.UnixTime,
	apiDelay time.Duration,
	deps Deps,
	opts Options,
) *Updater {
	if apiDelay <= 0 {
		apiDelay = DefaultAPIDelay
	}
	s := &daySource{
		project:  project,
		src:      src,
		product:  product,
		since:    since,
		apiDelay: apiDelay,
		clock:    deps.Clock,
	}
	return newUpdater(project, s, since, deps, opts)
}
