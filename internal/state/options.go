package state

import (
	"context"
	"log/slog"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/transport"
)

// Publisher receives a store's topics after each successful execute.
// *bus.Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, p bus.Publication) []bus.Firing
}

type config struct {
	onSuccess  func(*transport.Response)
	onError    func(error)
	onFinal    func()
	publisher  Publisher
	observers  []Observer
	flowGen    bus.FlowGenerator
	clock      *bus.Clock
	logger     *slog.Logger
	staleGuard bool
}

// Option configures a store at construction.
type Option func(*config)

// WithOnSuccess sets the store-level success callback. It runs after the
// store's topics are published and before the call-site OnSuccess.
func WithOnSuccess(fn func(*transport.Response)) Option {
	return func(c *config) {
		c.onSuccess = fn
	}
}

// WithOnError sets the store-level error callback.
func WithOnError(fn func(error)) Option {
	return func(c *config) {
		c.onError = fn
	}
}

// WithOnFinal sets the store-level final callback.
func WithOnFinal(fn func()) Option {
	return func(c *config) {
		c.onFinal = fn
	}
}

// WithPublisher sets where the endpoint's topics are published on success.
func WithPublisher(p Publisher) Option {
	return func(c *config) {
		c.publisher = p
	}
}

// WithObserver adds an execution observer.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observers = append(c.observers, o)
	}
}

// WithFlowGenerator sets the generator for top-level flow tokens.
// Default: bus.UUIDv7Generator.
func WithFlowGenerator(g bus.FlowGenerator) Option {
	return func(c *config) {
		c.flowGen = g
	}
}

// WithClock sets the logical clock that stamps executions.
func WithClock(clock *bus.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithStaleGuard drops responses from executes superseded by a later
// execute on the same store. A dropped response leaves state untouched,
// runs no success or error callbacks and publishes nothing; OnFinal still
// runs.
func WithStaleGuard() Option {
	return func(c *config) {
		c.staleGuard = true
	}
}
