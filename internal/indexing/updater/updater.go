// Package updater keeps each project's persisted records in line with its
// remote provider.
//
// Every clock tick requests an update. An update waits for the previous
// batch of units to drain, asks the repository which units are missing,
// asks the provider how far it has data, and enqueues every missing unit
// up to that bound. Units that fail are retried and eventually dropped;
// the next tick finds them missing again.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/txsync/internal/core/domain"
	"github.com/vietddude/txsync/internal/indexing/gaps"
	"github.com/vietddude/txsync/internal/indexing/metrics"
	"github.com/vietddude/txsync/internal/infra/rpc/provider"
	"github.com/vietddude/txsync/internal/infra/storage"
	"github.com/vietddude/txsync/internal/sync/taskqueue"
)

// Clock delivers hourly ticks.
type Clock interface {
	Subscribe() (<-chan domain.UnixTime, func())
	GetLastHour() domain.UnixTime
}

// RescanSource hands out operator-requested rescans.
type RescanSource interface {
	DrainRanges(ctx context.Context, project domain.ProjectID) ([]gaps.Range, error)
}

// FailureRecorder remembers dropped units across restarts.
type FailureRecorder interface {
	Add(ctx context.Context, fu domain.FailedUnit) error
	MarkResolved(ctx context.Context, project domain.ProjectID, unit uint64) error
	Units(ctx context.Context, project domain.ProjectID) ([]uint64, error)
}

// Deps are the collaborators shared by all updaters.
type Deps struct {
	Repo     storage.TxRecordRepository
	Clock    Clock
	Rescans  RescanSource    // optional
	Failures FailureRecorder // optional
	Logger   *slog.Logger
}

// Options tune a single updater.
type Options struct {
	// Workers is the number of units fetched concurrently (default: 1).
	Workers int

	// UnitRetry applies to unit fetches (default: taskqueue.BackOffAndDrop).
	UnitRetry taskqueue.RetryPolicy

	// UpdateRetry applies to whole updates (default: taskqueue.BackOffForever).
	UpdateRetry taskqueue.RetryPolicy

	// MaxUnitsPerUpdate caps how many units one update enqueues. Remaining
	// gaps are picked up by a follow-up update once the batch drains.
	// Zero means no cap.
	MaxUnitsPerUpdate uint64

	// Corrections overrides the correction table (default: Corrections).
	Corrections []Correction
}

// SaveError is a repository failure while storing a unit. It is not retried.
type SaveError struct {
	Unit uint64
	Err  error
}

func (e *SaveError) Error() string { return fmt.Sprintf("save unit %d: %v", e.Unit, e.Err) }
func (e *SaveError) Unwrap() error { return e.Err }

// unitSource is what differs between provider families.
type unitSource interface {
	provider() domain.ProviderType

	// bound returns the highest unit the provider can serve, inclusive.
	bound(ctx context.Context) (uint64, error)

	// floor returns the lowest unit worth fetching.
	floor() uint64

	// fetch returns the records of one unit.
	fetch(ctx context.Context, unit uint64) ([]domain.TxRecord, error)
}

// Updater syncs one project.
type Updater struct {
	project     domain.ProjectID
	source      unitSource
	repo        storage.TxRecordRepository
	clock       Clock
	rescans     RescanSource
	failures    FailureRecorder
	corrections []Correction
	maxUnits    uint64
	since       domain.UnixTime
	log         *slog.Logger

	updates *taskqueue.Queue[struct{}]
	units   *taskqueue.Queue[uint64]

	status   atomic.Pointer[snapshot]
	updating atomic.Bool

	droppedMu sync.Mutex
	dropped   map[uint64]struct{}
}

func newUpdater(project domain.ProjectID, source unitSource, since domain.UnixTime, deps Deps, opts Options) *Updater {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.UnitRetry == nil {
		opts.UnitRetry = taskqueue.BackOffAndDrop
	}
	if opts.UpdateRetry == nil {
		opts.UpdateRetry = taskqueue.BackOffForever
	}
	if opts.Corrections == nil {
		opts.Corrections = Corrections
	}

	u := &Updater{
		project:     project,
		source:      source,
		repo:        deps.Repo,
		clock:       deps.Clock,
		rescans:     deps.Rescans,
		failures:    deps.Failures,
		corrections: opts.Corrections,
		maxUnits:    opts.MaxUnitsPerUpdate,
		since:       since,
		log:         logger.With("component", "updater", "project", project),
		dropped:     make(map[uint64]struct{}),
	}
	u.status.Store(&snapshot{})

	u.updates = taskqueue.New(u.update, taskqueue.Options{
		Name:   string(project) + "_update",
		Retry:  opts.UpdateRetry,
		Logger: u.log,
	})
	u.units = taskqueue.New(u.updateUnit, taskqueue.Options{
		Name:        string(project) + "_units",
		Workers:     opts.Workers,
		Retry:       opts.UnitRetry,
		TrackEvents: true,
		Logger:      u.log,
	})
	u.units.OnDrop(u.onUnitDropped)
	return u
}

// ProjectID returns the synced project.
func (u *Updater) ProjectID() domain.ProjectID { return u.project }

// Start requests an update on every clock tick until ctx is done.
// The clock delivers the current hour on subscription, so the first
// update starts immediately.
func (u *Updater) Start(ctx context.Context) error {
	ticks, cancel := u.clock.Subscribe()
	defer cancel()

	u.log.Info("Started", "provider", u.source.provider())
	for {
		select {
		case <-ctx.Done():
			return nil
		case hour, ok := <-ticks:
			if !ok {
				return nil
			}
			if !u.RequestUpdate() {
				u.log.Debug("Update already in progress, tick skipped", "hour", hour)
			}
		}
	}
}

// RequestUpdate schedules an update unless one is already pending or running.
func (u *Updater) RequestUpdate() bool {
	return u.updates.AddIfEmpty(struct{}{})
}

// WaitIdle blocks until no update is pending and all enqueued units are done.
func (u *Updater) WaitIdle(ctx context.Context) error {
	for {
		if err := u.updates.WaitTilEmpty(ctx); err != nil {
			return err
		}
		if err := u.units.WaitTilEmpty(ctx); err != nil {
			return err
		}
		if u.updates.Stats().Idle() && u.units.Stats().Idle() {
			return nil
		}
	}
}

// Stop stops both queues, letting running tasks finish until ctx ends.
// Units stop first so an update blocked on the unit queue can return.
func (u *Updater) Stop(ctx context.Context) error {
	errUnits := u.units.Stop(ctx)
	errUpdates := u.updates.Stop(ctx)
	u.log.Info("Stopped")
	return errors.Join(errUpdates, errUnits)
}

// Status returns the last published tick result with live queue counters.
func (u *Updater) Status() Status {
	snap := u.status.Load()
	return Status{
		ProjectID:              u.project,
		Provider:               u.source.provider(),
		WorkQueue:              u.units.Stats(),
		LatestKnownRemoteBound: snap.bound,
		LastSyncAt:             snap.lastSync,
		LastError:              snap.lastError,
		Updating:               u.updating.Load(),
	}
}

// Events returns the recent unit outcomes.
func (u *Updater) Events() []taskqueue.Event[uint64] {
	return u.units.Events()
}

// GetDailyTransactionCounts returns per-day counts for complete days,
// starting at the project's first day.
func (u *Updater) GetDailyTransactionCounts(ctx context.Context) ([]domain.DailyCount, error) {
	counts, err := u.repo.GetDailyCount(ctx, u.project, u.since.ToStartOf(domain.Day))
	if err != nil {
		return nil, fmt.Errorf("get daily count: %w", err)
	}
	today := u.clock.GetLastHour().ToStartOf(domain.Day)
	return slices.DeleteFunc(counts, func(c domain.DailyCount) bool {
		return !c.Timestamp.Before(today)
	}), nil
}

func (u *Updater) update(ctx context.Context, _ struct{}) error {
	u.updating.Store(true)
	defer u.updating.Store(false)

	log := u.log.With("sync_id", uuid.NewString())
	log.Info("Update started")
	start := time.Now()

	err := u.runUpdate(ctx, log)
	if err != nil {
		metrics.SyncTicksTotal.WithLabelValues(string(u.project), "error").Inc()
		u.status.Store(u.status.Load().withError(err))
		log.Error("Update failed", "error", err)
		return err
	}

	metrics.SyncTicksTotal.WithLabelValues(string(u.project), "success").Inc()
	log.Info("Update enqueued", "duration", time.Since(start))
	return nil
}

func (u *Updater) runUpdate(ctx context.Context, log *slog.Logger) error {
	if err := u.units.WaitTilEmpty(ctx); err != nil {
		return err
	}

	missing, err := u.repo.GetMissingRanges(ctx, u.project)
	if err != nil {
		return fmt.Errorf("get missing ranges: %w", err)
	}

	bound, err := u.source.bound(ctx)
	if err != nil {
		return fmt.Errorf("get remote bound: %w", err)
	}
	metrics.RemoteLatestUnit.WithLabelValues(string(u.project)).Set(float64(bound))

	u.reconcileFailures(ctx, log, missing)

	floor := u.source.floor()
	rescanned := u.enqueueRescans(ctx, log, floor, bound)

	todo := gaps.Clip(missing, floor, bound)
	var enqueued uint64
	truncated := false
	for _, g := range todo {
		for unit := g.Start; unit < g.End; unit++ {
			if u.maxUnits > 0 && enqueued >= u.maxUnits {
				truncated = true
				break
			}
			u.units.AddToBack(unit)
			enqueued++
		}
		if truncated {
			break
		}
	}
	metrics.UnitsEnqueued.WithLabelValues(string(u.project), "gap").Add(float64(enqueued))

	u.status.Store(u.status.Load().withSuccess(bound, domain.FromTime(time.Now())))
	u.publishDepth()

	log.Info("Units enqueued",
		"bound", bound,
		"gaps", len(todo),
		"missing", gaps.Count(todo),
		"enqueued", enqueued,
		"rescanned", rescanned,
	)

	if truncated {
		u.updates.AddToBack(struct{}{})
	}
	return nil
}

// enqueueRescans moves operator-requested ranges to the front of the unit
// queue, lowest unit first. Existing records of those units are removed
// so stale rows do not survive the refetch.
func (u *Updater) enqueueRescans(ctx context.Context, log *slog.Logger, floor, bound uint64) uint64 {
	if u.rescans == nil {
		return 0
	}
	ranges, err := u.rescans.DrainRanges(ctx, u.project)
	if err != nil {
		log.Warn("Failed to read rescan requests", "error", err)
	}
	ranges = gaps.Clip(ranges, floor, bound)

	var todo []uint64
	for _, r := range ranges {
		if err := u.repo.DeleteUnits(ctx, u.project, r); err != nil {
			log.Warn("Failed to clear units before rescan", "range", r, "error", err)
		}
		for unit := r.Start; unit < r.End; unit++ {
			todo = append(todo, unit)
		}
	}
	if len(todo) == 0 {
		return 0
	}
	u.units.AddAllToFront(todo)
	metrics.UnitsEnqueued.WithLabelValues(string(u.project), "rescan").Add(float64(len(todo)))
	return uint64(len(todo))
}

func (u *Updater) updateUnit(ctx context.Context, unit uint64) error {
	records, err := u.source.fetch(ctx, unit)
	if err != nil {
		if provider.IsPermanent(err) {
			return taskqueue.Permanent(err)
		}
		return err
	}

	records = applyCorrections(u.corrections, u.project, unit, records)

	if err := u.repo.AddMany(ctx, records); err != nil {
		return taskqueue.Permanent(&SaveError{Unit: unit, Err: err})
	}
	metrics.RecordsWritten.WithLabelValues(string(u.project)).Add(float64(len(records)))

	u.resolveDropped(ctx, unit)
	u.log.Debug("Unit updated", "unit", unit, "records", len(records))
	return nil
}

func (u *Updater) onUnitDropped(e taskqueue.Event[uint64]) {
	u.droppedMu.Lock()
	u.dropped[e.Data] = struct{}{}
	u.droppedMu.Unlock()

	if u.failures == nil {
		return
	}
	failureType := domain.FailureTypeRemote
	var saveErr *SaveError
	switch {
	case errors.As(e.Err, &saveErr):
		failureType = domain.FailureTypeDatabase
	case taskqueue.IsPermanent(e.Err):
		failureType = domain.FailureTypePermanent
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := u.failures.Add(ctx, domain.FailedUnit{
		ProjectID:   u.project,
		Unit:        e.Data,
		FailureType: failureType,
		Error:       e.Err.Error(),
		Attempts:    e.Attempts,
		FailedAt:    domain.FromTime(e.At),
	})
	if err != nil {
		u.log.Warn("Failed to record dropped unit", "unit", e.Data, "error", err)
	}
}

// reconcileFailures loads units remembered as failed, possibly by an
// earlier process. Units still missing are resolved once fetched; units
// already persisted are resolved right away.
func (u *Updater) reconcileFailures(ctx context.Context, log *slog.Logger, missing []gaps.Range) {
	if u.failures == nil {
		return
	}
	remembered, err := u.failures.Units(ctx, u.project)
	if err != nil {
		log.Warn("Failed to load failed units", "error", err)
		return
	}

	for _, unit := range remembered {
		if containsUnit(missing, unit) {
			u.droppedMu.Lock()
			u.dropped[unit] = struct{}{}
			u.droppedMu.Unlock()
			continue
		}
		if err := u.failures.MarkResolved(ctx, u.project, unit); err != nil {
			log.Warn("Failed to resolve failed unit", "unit", unit, "error", err)
		}
	}
}

func containsUnit(ranges []gaps.Range, unit uint64) bool {
	for _, r := range ranges {
		if r.Contains(unit) {
			return true
		}
	}
	return false
}

func (u *Updater) resolveDropped(ctx context.Context, unit uint64) {
	u.droppedMu.Lock()
	_, ok := u.dropped[unit]
	delete(u.dropped, unit)
	u.droppedMu.Unlock()

	if !ok || u.failures == nil {
		return
	}
	if err := u.failures.MarkResolved(ctx, u.project, unit); err != nil {
		u.log.Warn("Failed to resolve dropped unit", "unit", unit, "error", err)
	}
}

func (u *Updater) publishDepth() {
	stats := u.units.Stats()
	project := string(u.project)
	metrics.QueueDepth.WithLabelValues(project, "pending").Set(float64(stats.Pending))
	metrics.QueueDepth.WithLabelValues(project, "in_flight").Set(float64(stats.InFlight))
}
