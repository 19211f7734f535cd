package journal

import (
	"context"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/ir"
	"github.com/roach88/fintrack/internal/state"
	"github.com/roach88/fintrack/internal/transport"
)

var (
	_ state.Observer = (*Journal)(nil)
	_ bus.Listener   = (*Journal)(nil)
)

// Observe implements state.Observer. Write failures are logged.
func (j *Journal) Observe(ctx context.Context, ev state.Event) {
	if ev.ExecutionID == "" {
		return
	}
	// Journal writes outlive a cancelled execute.
	ctx = context.WithoutCancel(ctx)

	var err error
	switch ev.Kind {
	case state.EventStarted:
		err = j.WriteExecution(ctx, executionOf(ev))
	case state.EventSkipped:
		err = j.WriteSkip(ctx, executionOf(ev))
	case state.EventSucceeded, state.EventFailed, state.EventDropped:
		err = j.WriteSettlement(ctx, settlementOf(ev), ev.Duration.Milliseconds())
	}
	if err != nil {
		j.logger.Error("journal write failed",
			"store", ev.Store,
			"flow_token", ev.FlowToken,
			"event", ev.Kind,
			"error", err,
		)
	}
}

// Fired implements bus.Listener.
func (j *Journal) Fired(ctx context.Context, f bus.Firing) {
	if _, err := j.WriteFiring(context.WithoutCancel(ctx), f); err != nil {
		j.logger.Error("journal write failed",
			"flow_token", f.FlowToken,
			"subscriber", f.Subscriber,
			"error", err,
		)
	}
}

func executionOf(ev state.Event) ir.Execution {
	return ir.Execution{
		ID:        ev.ExecutionID,
		FlowToken: ev.FlowToken,
		Store:     ev.Store,
		Method:    ev.Method,
		Path:      ev.Path,
		Query:     ev.Query,
		Forced:    ev.Forced,
		Seq:       ev.Seq,
		Cause:     ev.Cause,
	}
}

func settlementOf(ev state.Event) ir.Settlement {
	return ir.Settlement{
		ExecutionID: ev.ExecutionID,
		Outcome:     ev.Outcome(),
		Status:      ev.Status,
		Message:     transport.MessageOf(ev.Err),
		Seq:         ev.Seq,
	}
}
