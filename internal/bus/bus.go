package bus

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/fintrack/internal/ir"
)

// Refresher is a store that can be forced to refetch.
//
// Refresh performs the synchronous part of a forced execute (cache bypass,
// Loading set) before it returns, and hands back the network phase as a
// function. The bus runs that function on a goroutine it tracks.
type Refresher interface {
	Name() string
	Refresh(ctx context.Context) (settle func())
}

// Publication is one successful mutation announcing its topics.
type Publication struct {
	Source      string // publishing store
	ExecutionID string // execution that succeeded
	Topics      []ir.Topic
}

// Firing is one refresh started by a publication.
type Firing struct {
	FlowToken  string   `json:"flow_token"`
	Cause      ir.Cause `json:"cause"`
	Subscriber string   `json:"subscriber"`
	Seq        int64    `json:"seq"`
}

// Listener is notified of every firing, before the subscriber's network
// phase starts. The journal and metrics implement it.
type Listener interface {
	Fired(ctx context.Context, f Firing)
}

// Bus routes publications to subscribed refreshers.
type Bus struct {
	logger    *slog.Logger
	clock     *Clock
	maxSteps  int
	listeners []Listener

	mu         sync.Mutex
	subs       map[ir.Topic][]Refresher // subscription order preserved
	publishers []publisher              // declaration order preserved
	guards     map[string]*flowGuard    // per flow, while refreshes are in flight
	pending    map[string]int           // in-flight refreshes per flow

	wg sync.WaitGroup
}

type publisher struct {
	name   string
	topics []ir.Topic
}

// Option configures a Bus.
type Option func(*Bus)

// WithMaxSteps sets the per-flow firing quota.
// Default: DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(b *Bus) {
		b.maxSteps = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = l
	}
}

// WithClock shares a logical clock with the stores.
func WithClock(c *Clock) Option {
	return func(b *Bus) {
		b.clock = c
	}
}

// WithListener adds a firing listener.
func WithListener(l Listener) Option {
	return func(b *Bus) {
		b.listeners = append(b.listeners, l)
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		logger:   slog.Default(),
		clock:    NewClock(),
		maxSteps: DefaultMaxSteps,
		subs:     make(map[ir.Topic][]Refresher),
		guards:   make(map[string]*flowGuard),
		pending:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers r for topic. Subscribing the same refresher twice to
// one topic is a no-op.
func (b *Bus) Subscribe(topic ir.Topic, r Refresher) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.subs[topic] {
		if existing.Name() == r.Name() {
			return
		}
	}
	b.subs[topic] = append(b.subs[topic], r)
}

// Declare records that source publishes topics. It only affects Graph; a
// store may publish without declaring.
func (b *Bus) Declare(source string, topics ...ir.Topic) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.publishers = append(b.publishers, publisher{name: source, topics: slices.Clone(topics)})
}

// Publish starts a forced refresh of every subscriber of p.Topics, in topic
// order then subscription order. A subscriber reached through several
// topics is refreshed once, attributed to the first topic.
//
// The synchronous part of each refresh has completed when Publish returns.
// Network phases run in the background under a context detached from ctx's
// cancellation; use Wait to block until they settle.
func (b *Bus) Publish(ctx context.Context, p Publication) []Firing {
	flow, ok := FlowFrom(ctx)
	if !ok {
		flow = "unscoped"
	}

	type target struct {
		topic ir.Topic
		r     Refresher
	}

	chain := lineageFrom(ctx)
	b.mu.Lock()
	var targets []target
	seen := make(map[string]bool)
	for _, topic := range p.Topics {
		for _, r := range b.subs[topic] {
			name := r.Name()
			if seen[name] {
				continue
			}
			seen[name] = true

			guard, ok := b.guards[flow]
			if !ok {
				guard = &flowGuard{}
				b.guards[flow] = guard
			}
			if err := guard.admit(flow, chain, topic, name, b.maxSteps); err != nil {
				b.logger.Error("invalidation skipped",
					"flow_token", flow,
					"source", p.Source,
					"topic", topic,
					"subscriber", name,
					"limit", b.maxSteps,
					"error", err,
				)
				continue
			}
			b.pending[flow]++
			targets = append(targets, target{topic: topic, r: r})
		}
	}
	b.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	base := WithFlow(context.WithoutCancel(ctx), flow)
	firings := make([]Firing, 0, len(targets))
	for _, t := range targets {
		f := Firing{
			FlowToken: flow,
			Cause: ir.Cause{
				ExecutionID: p.ExecutionID,
				Source:      p.Source,
				Topic:       t.topic,
			},
			Subscriber: t.r.Name(),
			Seq:        b.clock.Next(),
		}
		firings = append(firings, f)

		b.logger.Info("invalidation fired",
			"flow_token", flow,
			"source", p.Source,
			"topic", t.topic,
			"subscriber", f.Subscriber,
			"seq", f.Seq,
		)
		for _, l := range b.listeners {
			l.Fired(ctx, f)
		}

		rctx := withLineage(WithCause(base, f.Cause), chain.extend(firingKey{topic: t.topic, subscriber: f.Subscriber}))
		settle := t.r.Refresh(rctx)

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer b.done(flow)
			if settle != nil {
				settle()
			}
		}()
	}
	return firings
}

// done releases one pending refresh of flow. The flow's guard is dropped
// once nothing in it is in flight.
func (b *Bus) done(flow string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[flow]--
	if b.pending[flow] <= 0 {
		delete(b.pending, flow)
		delete(b.guards, flow)
	}
}

// Wait blocks until every refresh started so far, including refreshes
// started by those refreshes, has settled.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Subscribers returns the names subscribed to topic, in subscription order.
func (b *Bus) Subscribers(topic ir.Topic) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.subs[topic]))
	for _, r := range b.subs[topic] {
		names = append(names, r.Name())
	}
	return names
}

// Graph returns the declared edges: for each publisher in declaration
// order, each of its topics, each subscriber in subscription order.
// A topic nobody subscribes to yields no edge.
func (b *Bus) Graph() []ir.Edge {
	b.mu.Lock()
	defer b.mu.Unlock()

	var edges []ir.Edge
	for _, p := range b.publishers {
		for _, topic := range p.topics {
			for _, r := range b.subs[topic] {
				edges = append(edges, ir.Edge{Source: p.name, Topic: topic, Subscriber: r.Name()})
			}
		}
	}
	return edges
}

// ActiveFlows returns the number of flows with refreshes in flight.
func (b *Bus) ActiveFlows() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.pending)
}
