// Package taskqueue implements a generic in-process work queue with a fixed
// worker budget, enumerated retry policies and a drain barrier.
//
// # Usage
//
//	q := taskqueue.New(func(ctx context.Context, block uint64) error {
//		return fetch(ctx, block)
//	}, taskqueue.Options{
//		Name:    "blocks",
//		Workers: 4,
//		Retry:   taskqueue.BackOffAndDrop,
//	})
//
//	q.AddToBack(100)
//	q.AddToFront(42) // jumps ahead of 100
//	_ = q.WaitTilEmpty(ctx)
package taskqueue

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a task.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusSuccess
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	}
	return "unknown"
}

// Task is a unit of work owned by exactly one queue.
type Task[T any] struct {
	ID        uint64
	Data      T
	Status    Status
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Outcome describes what happened after an execution attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeRetry   Outcome = "retry"
	OutcomeDropped Outcome = "dropped"
)

// Event is a tracked execution result. Events are only kept when
// Options.TrackEvents is set.
type Event[T any] struct {
	TaskID   uint64
	Data     T
	Outcome  Outcome
	Attempts int
	Err      error
	At       time.Time
}

// Stats is a point-in-time view of queue counters.
type Stats struct {
	Pending   int    `json:"pending"`
	InFlight  int    `json:"in_flight"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
}

// Idle reports whether the snapshot has no outstanding work.
func (s Stats) Idle() bool {
	return s.Pending == 0 && s.InFlight == 0
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so the queue drops the task without consulting the
// retry policy.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
