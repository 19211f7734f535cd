package ledger

import (
	"log/slog"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/catalog"
	"github.com/roach88/fintrack/internal/state"
)

type config struct {
	catalog    *catalog.Catalog
	logger     *slog.Logger
	observers  []state.Observer
	listeners  []bus.Listener
	flowGen    bus.FlowGenerator
	staleGuard bool
	maxSteps   int
	storeOpts  map[string][]state.Option
}

// Option configures a Registry.
type Option func(*config)

// WithCatalog replaces the built-in catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(cfg *config) {
		cfg.catalog = c
	}
}

// WithLogger sets the logger shared by the bus and every store.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// WithObserver adds an execution observer to every store.
func WithObserver(o state.Observer) Option {
	return func(cfg *config) {
		cfg.observers = append(cfg.observers, o)
	}
}

// WithListener adds a bus listener.
func WithListener(l bus.Listener) Option {
	return func(cfg *config) {
		cfg.listeners = append(cfg.listeners, l)
	}
}

// WithFlowGenerator sets the flow token generator of every store.
func WithFlowGenerator(g bus.FlowGenerator) Option {
	return func(cfg *config) {
		cfg.flowGen = g
	}
}

// WithStaleGuard enables the stale-response guard on every store.
func WithStaleGuard() Option {
	return func(cfg *config) {
		cfg.staleGuard = true
	}
}

// WithMaxSteps sets the bus's per-flow firing quota.
func WithMaxSteps(n int) Option {
	return func(cfg *config) {
		cfg.maxSteps = n
	}
}

// WithStoreOptions adds options to the store called name, such as
// store-level callbacks.
func WithStoreOptions(name string, opts ...state.Option) Option {
	return func(cfg *config) {
		cfg.storeOpts[name] = append(cfg.storeOpts[name], opts...)
	}
}
