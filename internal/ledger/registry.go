package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/catalog"
	"github.com/roach88/fintrack/internal/ir"
	"github.com/roach88/fintrack/internal/model"
	"github.com/roach88/fintrack/internal/state"
	"github.com/roach88/fintrack/internal/transport"
)

// ErrCyclicGraph is returned by New when the catalog's invalidation graph
// has a cycle.
var ErrCyclicGraph = errors.New("invalidation graph has a cycle")

// Registry owns one store per catalog endpoint.
//
// The typed fields are set for the endpoints of the built-in catalog and
// stay nil when a custom catalog omits them. Every store, typed or not, is
// reachable by name through Lookup.
type Registry struct {
	GetCategories  *state.Store[[]model.Category]
	CreateCategory *state.Store[model.Category]
	UpdateCategory *state.Store[model.Category]
	DeleteCategory *state.Store[json.RawMessage]

	GetAccounts   *state.Store[[]model.Account]
	CreateAccount *state.Store[model.Account]
	DeleteAccount *state.Store[json.RawMessage]

	GetTransactions               *state.Store[[]model.Transaction]
	GetTransactionByID            *state.Store[model.Transaction]
	CreateTransaction             *state.Store[model.Transaction]
	UpdateTransaction             *state.Store[model.Transaction]
	DeleteTransaction             *state.Store[json.RawMessage]
	GetExpenses                   *state.Store[[]model.Transaction]
	GetIncomes                    *state.Store[[]model.Transaction]
	GetSavings                    *state.Store[[]model.Transaction]
	GetTransactionsByPeriod       *state.Store[[]model.Transaction]
	GetTransactionsMonthly        *state.Store[[]model.Transaction]
	GetTransactionsByAccount      *state.Store[[]model.Transaction]
	GetTransactionsByMainCategory *state.Store[[]model.Transaction]

	GetBudgetSummary *state.Store[model.BudgetSummary]

	GetTransfers   *state.Store[[]model.Transfer]
	CreateTransfer *state.Store[model.Transfer]

	CreateUser    *state.Store[model.User]
	DeleteAllData *state.Store[json.RawMessage]

	catalog *catalog.Catalog
	bus     *bus.Bus
	logger  *slog.Logger
	handles []state.Handle
	byName  map[string]state.Handle
}

// New builds a registry over tr.
func New(tr transport.Transport, opts ...Option) (*Registry, error) {
	cfg := config{
		logger:    slog.Default(),
		flowGen:   bus.UUIDv7Generator{},
		maxSteps:  bus.DefaultMaxSteps,
		storeOpts: make(map[string][]state.Option),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.catalog == nil {
		c, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("load built-in catalog: %w", err)
		}
		cfg.catalog = c
	}

	if warnings := bus.AnalyzeCycles(cfg.catalog.Edges()); len(warnings) > 0 {
		msgs := make([]string, len(warnings))
		for i, w := range warnings {
			msgs[i] = w.Message
		}
		return nil, fmt.Errorf("%w: %s", ErrCyclicGraph, strings.Join(msgs, "; "))
	}

	clock := bus.NewClock()
	busOpts := []bus.Option{
		bus.WithClock(clock),
		bus.WithLogger(cfg.logger),
		bus.WithMaxSteps(cfg.maxSteps),
	}
	for _, l := range cfg.listeners {
		busOpts = append(busOpts, bus.WithListener(l))
	}

	r := &Registry{
		catalog: cfg.catalog,
		bus:     bus.New(busOpts...),
		logger:  cfg.logger,
		byName:  make(map[string]state.Handle),
	}

	for _, ep := range cfg.catalog.Endpoints {
		storeOpts := []state.Option{
			state.WithClock(clock),
			state.WithLogger(cfg.logger),
			state.WithFlowGenerator(cfg.flowGen),
		}
		if len(ep.Publishes) > 0 {
			storeOpts = append(storeOpts, state.WithPublisher(r.bus))
		}
		for _, o := range cfg.observers {
			storeOpts = append(storeOpts, state.WithObserver(o))
		}
		if cfg.staleGuard {
			storeOpts = append(storeOpts, state.WithStaleGuard())
		}
		storeOpts = append(storeOpts, cfg.storeOpts[ep.Name]...)

		var h state.Handle
		if b, ok := bindings[ep.Name]; ok {
			h = b(r, ep, tr, storeOpts)
		} else {
			h = untyped(ep, tr, storeOpts)
		}
		r.handles = append(r.handles, h)
		r.byName[ep.Name] = h
	}

	for _, h := range r.handles {
		ep := h.Endpoint()
		for _, topic := range ep.Subscribes {
			r.bus.Subscribe(topic, h)
		}
		if len(ep.Publishes) > 0 {
			r.bus.Declare(ep.Name, ep.Publishes...)
		}
	}

	r.logger.Debug("registry built",
		"stores", len(r.handles),
		"edges", len(r.bus.Graph()),
	)
	return r, nil
}

// Catalog returns the catalog the registry was built from.
func (r *Registry) Catalog() *catalog.Catalog {
	return r.catalog
}

// Bus returns the invalidation bus.
func (r *Registry) Bus() *bus.Bus {
	return r.bus
}

// Lookup returns the store called name.
func (r *Registry) Lookup(name string) (state.Handle, error) {
	h, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", catalog.ErrUnknownEndpoint, name)
	}
	return h, nil
}

// Handles returns every store in catalog order.
func (r *Registry) Handles() []state.Handle {
	out := make([]state.Handle, len(r.handles))
	copy(out, r.handles)
	return out
}

// Snapshot returns the status of every store in catalog order.
func (r *Registry) Snapshot() []state.Status {
	out := make([]state.Status, len(r.handles))
	for i, h := range r.handles {
		out[i] = h.Status()
	}
	return out
}

// Graph returns the live invalidation edges.
func (r *Registry) Graph() []ir.Edge {
	return r.bus.Graph()
}

// Wait blocks until every invalidation refresh in flight has settled.
func (r *Registry) Wait() {
	r.bus.Wait()
}

// Plan maps store names to the params a prefetch executes them with.
type Plan map[string]state.Params

// DefaultPlan covers every read that needs no ID. Period-scoped reads get
// period's query.
func (r *Registry) DefaultPlan(period model.Period) Plan {
	plan := make(Plan)
	for _, ep := range r.catalog.Reads() {
		if ep.NeedsID {
			continue
		}
		switch ep.Name {
		case "GetBudgetSummary", "GetTransactionsByPeriod":
			plan[ep.Name] = state.Read("", period.Query())
		default:
			plan[ep.Name] = state.Params{}
		}
	}
	return plan
}

// Prefetch executes every store in plan concurrently. Each store applies
// its own cache-skip rule. A failing store does not cancel the others; the
// first failure is returned once all have settled.
func (r *Registry) Prefetch(ctx context.Context, plan Plan) error {
	handles := make(map[string]state.Handle, len(plan))
	for name := range plan {
		h, err := r.Lookup(name)
		if err != nil {
			return err
		}
		handles[name] = h
	}

	var g errgroup.Group
	for name, params := range plan {
		h := handles[name]
		g.Go(func() error {
			st := h.Execute(ctx, params)
			if st.Error {
				return fmt.Errorf("prefetch %s: %w", name, st.ErrorData)
			}
			return nil
		})
	}
	return g.Wait()
}
