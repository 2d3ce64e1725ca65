package taskqueue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/vietddude/txsync/internal/indexing/metrics"
)

const defaultMaxEvents = 1000

// Executor processes one task payload.
type Executor[T any] func(ctx context.Context, item T) error

// Options configures a Queue.
type Options struct {
	// Name labels logs and metrics.
	Name string

	// Workers is the number of tasks executed concurrently (default: 1).
	Workers int

	// Retry decides what happens after a failure (default: NoRetry).
	Retry RetryPolicy

	// TrackEvents keeps a bounded log of execution outcomes.
	TrackEvents bool

	// MaxEvents bounds the event log (default: 1000).
	MaxEvents int

	Logger *slog.Logger
}

// Queue is a FIFO backlog drained by at most Workers concurrent executors.
// Items added with AddToFront jump ahead of everything already waiting.
type Queue[T any] struct {
	name        string
	exec        Executor[T]
	workers     int
	retry       RetryPolicy
	trackEvents bool
	maxEvents   int
	log         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	backlog   []*Task[T]
	inFlight  int
	delayed   map[uint64]*time.Timer
	nextID    uint64
	succeeded uint64
	failed    uint64
	events    []Event[T]
	busy      bool
	empty     chan struct{} // closed while the queue is idle
	stopped   bool
	onDrop    func(Event[T])
}

// New creates a queue that runs exec for every added item.
func New[T any](exec Executor[T], opts Options) *Queue[T] {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Retry == nil {
		opts.Retry = NoRetry{}
	}
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = defaultMaxEvents
	}
	if opts.Name == "" {
		opts.Name = "queue"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	empty := make(chan struct{})
	close(empty)

	return &Queue[T]{
		name:        opts.Name,
		exec:        exec,
		workers:     opts.Workers,
		retry:       opts.Retry,
		trackEvents: opts.TrackEvents,
		maxEvents:   opts.MaxEvents,
		log:         logger.With("queue", opts.Name),
		ctx:         ctx,
		cancel:      cancel,
		delayed:     make(map[uint64]*time.Timer),
		empty:       empty,
	}
}

// AddToBack enqueues item behind everything already waiting.
func (q *Queue[T]) AddToBack(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.addLocked(item, false)
}

// AddToFront enqueues item ahead of everything already waiting.
func (q *Queue[T]) AddToFront(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.addLocked(item, true)
}

// AddAllToFront enqueues items, in order, ahead of everything already
// waiting. Nothing is dispatched until all items are in place.
func (q *Queue[T]) AddAllToFront(items []T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		q.log.Debug("Ignoring tasks added after stop")
		return
	}
	if len(items) == 0 {
		return
	}

	tasks := make([]*Task[T], 0, len(items)+len(q.backlog))
	for _, item := range items {
		tasks = append(tasks, q.newTaskLocked(item))
	}
	q.backlog = append(tasks, q.backlog...)

	q.markBusyLocked()
	q.dispatchLocked()
}

// AddIfEmpty enqueues item only when nothing is waiting, running or
// scheduled for retry. It reports whether the item was enqueued.
func (q *Queue[T]) AddIfEmpty(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.idleLocked() {
		return false
	}
	return q.addLocked(item, false)
}

// WaitTilEmpty blocks until the backlog is empty and no task is running or
// waiting for a retry. Work added before that point is drained first.
func (q *Queue[T]) WaitTilEmpty(ctx context.Context) error {
	q.mu.Lock()
	empty := q.empty
	q.mu.Unlock()

	select {
	case <-empty:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnDrop registers fn to be called, outside the queue lock, for every task
// dropped after its last attempt.
func (q *Queue[T]) OnDrop(fn func(Event[T])) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDrop = fn
}

// Stats returns the current counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:   len(q.backlog) + len(q.delayed),
		InFlight:  q.inFlight,
		Succeeded: q.succeeded,
		Failed:    q.failed,
	}
}

// Events returns a copy of the tracked events, oldest first.
func (q *Queue[T]) Events() []Event[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Event[T], len(q.events))
	copy(out, q.events)
	return out
}

// Stop rejects new work, discards the backlog and pending retries, and
// waits for running tasks to finish. If ctx ends first, running tasks have
// their context cancelled and ctx.Err() is returned.
func (q *Queue[T]) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.stopped = true
	discarded := len(q.backlog) + len(q.delayed)
	q.backlog = nil
	for id, timer := range q.delayed {
		timer.Stop()
		delete(q.delayed, id)
	}
	q.checkIdleLocked()
	q.mu.Unlock()

	if discarded > 0 {
		q.log.Info("Queue stopped with pending work", "discarded", discarded)
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *Queue[T]) addLocked(item T, front bool) bool {
	if q.stopped {
		q.log.Debug("Ignoring task added after stop")
		return false
	}

	task := q.newTaskLocked(item)
	if front {
		q.backlog = append([]*Task[T]{task}, q.backlog...)
	} else {
		q.backlog = append(q.backlog, task)
	}

	q.markBusyLocked()
	q.dispatchLocked()
	return true
}

func (q *Queue[T]) newTaskLocked(item T) *Task[T] {
	q.nextID++
	now := time.Now()
	return &Task[T]{
		ID:        q.nextID,
		Data:      item,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (q *Queue[T]) dispatchLocked() {
	for !q.stopped && q.inFlight < q.workers && len(q.backlog) > 0 {
		task := q.backlog[0]
		q.backlog[0] = nil
		q.backlog = q.backlog[1:]

		task.Status = StatusInProgress
		task.Attempts++
		task.UpdatedAt = time.Now()
		q.inFlight++

		q.wg.Add(1)
		go q.run(task)
	}
}

func (q *Queue[T]) run(task *Task[T]) {
	defer q.wg.Done()

	start := time.Now()
	err := q.execute(task.Data)
	metrics.QueueTaskDuration.WithLabelValues(q.name).Observe(time.Since(start).Seconds())

	q.mu.Lock()
	task.UpdatedAt = time.Now()

	var dropped *Event[T]
	if err == nil {
		task.Status = StatusSuccess
		q.succeeded++
		q.recordLocked(task, OutcomeSuccess, nil)
	} else {
		dropped = q.handleFailureLocked(task, err)
	}
	onDrop := q.onDrop
	q.mu.Unlock()

	// The slot is held until the callback returns, so WaitTilEmpty also
	// waits for drop handling.
	if dropped != nil && onDrop != nil {
		onDrop(*dropped)
	}

	q.mu.Lock()
	q.inFlight--
	q.dispatchLocked()
	q.checkIdleLocked()
	q.mu.Unlock()
}

func (q *Queue[T]) execute(item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("Task panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return q.exec(q.ctx, item)
}

// handleFailureLocked schedules a retry or drops the task. It returns the
// drop event when the task was dropped.
func (q *Queue[T]) handleFailureLocked(task *Task[T], err error) *Event[T] {
	decision := Drop
	if !IsPermanent(err) && !q.stopped {
		decision = q.retry.Next(task.Attempts, err)
	}

	if !decision.Retry {
		task.Status = StatusFailure
		q.failed++
		q.recordLocked(task, OutcomeDropped, err)
		q.log.Warn("Task dropped",
			"task_id", task.ID,
			"data", task.Data,
			"attempts", task.Attempts,
			"error", err,
		)
		return &Event[T]{
			TaskID:   task.ID,
			Data:     task.Data,
			Outcome:  OutcomeDropped,
			Attempts: task.Attempts,
			Err:      err,
			At:       task.UpdatedAt,
		}
	}

	task.Status = StatusPending
	q.recordLocked(task, OutcomeRetry, err)
	q.log.Debug("Task failed, retrying",
		"task_id", task.ID,
		"attempts", task.Attempts,
		"delay", decision.Delay,
		"error", err,
	)

	if decision.Delay <= 0 {
		q.backlog = append(q.backlog, task)
		return nil
	}

	q.delayed[task.ID] = time.AfterFunc(decision.Delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if _, ok := q.delayed[task.ID]; !ok {
			return // stopped meanwhile
		}
		delete(q.delayed, task.ID)
		q.backlog = append(q.backlog, task)
		q.dispatchLocked()
		q.checkIdleLocked()
	})
	return nil
}

func (q *Queue[T]) recordLocked(task *Task[T], outcome Outcome, err error) {
	metrics.QueueTasksTotal.WithLabelValues(q.name, string(outcome)).Inc()

	if !q.trackEvents {
		return
	}
	if len(q.events) >= q.maxEvents {
		copy(q.events, q.events[1:])
		q.events = q.events[:len(q.events)-1]
	}
	q.events = append(q.events, Event[T]{
		TaskID:   task.ID,
		Data:     task.Data,
		Outcome:  outcome,
		Attempts: task.Attempts,
		Err:      err,
		At:       task.UpdatedAt,
	})
}

func (q *Queue[T]) idleLocked() bool {
	return len(q.backlog) == 0 && q.inFlight == 0 && len(q.delayed) == 0
}

func (q *Queue[T]) markBusyLocked() {
	if !q.busy {
		q.busy = true
		q.empty = make(chan struct{})
	}
}

func (q *Queue[T]) checkIdleLocked() {
	if q.busy && q.idleLocked() {
		q.busy = false
		close(q.empty)
	}
}
