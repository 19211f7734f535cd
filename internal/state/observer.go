package state

import (
	"context"
	"time"

	"github.com/roach88/fintrack/internal/ir"
)

// EventKind is the phase of an execution reported to observers.
type EventKind string

// Event kinds. Every Started event is followed by exactly one of
// Succeeded, Failed or Dropped.
const (
	EventSkipped   EventKind = "skipped"
	EventStarted   EventKind = "started"
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	EventDropped   EventKind = "dropped"
)

// Event describes one phase of one execution.
type Event struct {
	Kind        EventKind
	Store       string
	Method      ir.Method
	Path        string
	Query       ir.IRObject
	Forced      bool
	FlowToken   string
	ExecutionID string
	Seq         int64
	Cause       ir.Cause
	Status      int           // response status, 0 when none
	Err         error         // set on EventFailed
	Duration    time.Duration // transport time, set on terminal events
}

// Outcome maps a terminal event kind to the journal outcome.
func (e Event) Outcome() ir.Outcome {
	switch e.Kind {
	case EventSkipped:
		return ir.OutcomeSkipped
	case EventSucceeded:
		return ir.OutcomeSuccess
	case EventFailed:
		return ir.OutcomeError
	case EventDropped:
		return ir.OutcomeDropped
	default:
		return ""
	}
}

// Observer receives execution events synchronously, on the executing
// goroutine. Implementations must be safe for concurrent use and must not
// call back into the store.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f(ctx, ev).
func (f ObserverFunc) Observe(ctx context.Context, ev Event) {
	f(ctx, ev)
}
