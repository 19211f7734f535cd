package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/ir"
	"github.com/roach88/fintrack/internal/transport"
)

// Store is the request state of one endpoint.
//
// Thread-safety: all methods are safe for concurrent use. State transitions
// happen under the store's mutex; the transport call, subscribers, observers
// and callbacks run outside it.
type Store[T any] struct {
	endpoint ir.Endpoint
	tr       transport.Transport
	cfg      config

	mu      sync.Mutex
	state   State[T]
	gen     uint64
	subs    []subscriber[T]
	nextSub int
}

type subscriber[T any] struct {
	id int
	fn func(State[T])
}

// New creates a store for endpoint in its initial state: no data, no
// flags set, no remembered params.
func New[T any](endpoint ir.Endpoint, tr transport.Transport, opts ...Option) *Store[T] {
	cfg := config{
		flowGen: bus.UUIDv7Generator{},
		clock:   bus.NewClock(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store[T]{
		endpoint: endpoint,
		tr:       tr,
		cfg:      cfg,
	}
}

// Name returns the endpoint name.
func (s *Store[T]) Name() string {
	return s.endpoint.Name
}

// Endpoint returns the endpoint descriptor.
func (s *Store[T]) Endpoint() ir.Endpoint {
	return s.endpoint
}

// State returns a snapshot of the current state.
func (s *Store[T]) State() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state
// transition. It returns a function that removes the subscription.
func (s *Store[T]) Subscribe(fn func(State[T])) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Execute runs params against the endpoint and returns the resulting state.
//
// It never returns an error: failures are recorded as Error and ErrorData.
// ctx is passed to the transport, so cancelling it fails the execute.
// Panics raised by callbacks are not recovered.
func (s *Store[T]) Execute(ctx context.Context, params Params) State[T] {
	run, snap := s.begin(ctx, params)
	if run == nil {
		return snap
	}
	return run.settle()
}

// Reload re-executes the remembered params with override's non-zero fields
// replacing theirs and Force set. With nothing remembered it executes
// override with Force set.
func (s *Store[T]) Reload(ctx context.Context, override Params) State[T] {
	return s.Execute(ctx, s.reloadParams(override))
}

func (s *Store[T]) reloadParams(override Params) Params {
	s.mu.Lock()
	last := s.state.LastParams
	s.mu.Unlock()

	if last == nil {
		return override.Forced()
	}
	return last.Merge(override).Forced()
}

// Refresh starts execute with only Force set: no ID, query, body or
// headers, so LastParams becomes {Force: true}. The store is Loading when
// Refresh returns; the returned function performs the network phase.
// Implements bus.Refresher.
func (s *Store[T]) Refresh(ctx context.Context) func() {
	run, _ := s.begin(ctx, Params{Force: true})
	if run == nil {
		return nil
	}
	return func() { run.settle() }
}

// execution is one started execute awaiting its network phase.
type execution[T any] struct {
	store   *Store[T]
	ctx     context.Context
	params  Params
	req     transport.Request
	invalid error
	gen     uint64
	event   Event
}

// begin applies the cache-skip rule and, unless skipped, moves the store to
// Loading. It returns nil and the unchanged snapshot when skipped.
func (s *Store[T]) begin(ctx context.Context, params Params) (*execution[T], State[T]) {
	flow, ok := bus.FlowFrom(ctx)
	if !ok {
		flow = s.cfg.flowGen.Generate()
		ctx = bus.WithFlow(ctx, flow)
	}
	params = params.clone()
	req := params.request(s.endpoint)
	seq := s.cfg.clock.Next()

	ev := Event{
		Store:     s.endpoint.Name,
		Method:    req.Method,
		Path:      req.Path,
		Query:     req.Query,
		Forced:    params.Force,
		FlowToken: flow,
		Seq:       seq,
		Cause:     bus.CauseFrom(ctx),
	}
	id, err := ir.ExecutionID(flow, s.endpoint.Name, req.Method, req.Path, req.Query, seq)
	if err != nil {
		s.cfg.logger.Warn("execution id unavailable",
			"store", s.endpoint.Name,
			"flow_token", flow,
			"error", err,
		)
	}
	ev.ExecutionID = id

	s.mu.Lock()
	if s.endpoint.IsRead() && s.state.Data != nil && !params.Force {
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.cfg.logger.Debug("cache hit, execute skipped",
			"store", s.endpoint.Name,
			"flow_token", flow,
		)
		ev.Kind = EventSkipped
		s.observe(ctx, ev)
		return nil, snap
	}

	last := params
	s.state = State[T]{Loading: true, LastParams: &last}
	s.gen++
	run := &execution[T]{
		store:   s,
		ctx:     ctx,
		params:  params,
		req:     req,
		invalid: params.Validate(s.endpoint),
		gen:     s.gen,
		event:   ev,
	}
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	s.cfg.logger.Debug("execute started",
		"store", s.endpoint.Name,
		"flow_token", flow,
		"method", req.Method,
		"path", req.Path,
		"forced", params.Force,
	)
	notify(subs, snap)
	ev.Kind = EventStarted
	s.observe(ctx, ev)
	return run, snap
}

// settle performs the transport call and the terminal transition, then
// runs callbacks: store-level first, call-site second.
func (r *execution[T]) settle() State[T] {
	s := r.store
	p := r.params

	defer func() {
		if s.cfg.onFinal != nil {
			s.cfg.onFinal()
		}
		if p.OnFinal != nil {
			p.OnFinal()
		}
	}()

	start := time.Now()
	var (
		resp *transport.Response
		data *T
		err  = r.invalid
	)
	if err == nil {
		resp, err = s.tr.Do(r.ctx, r.req)
	}
	if err == nil {
		data, err = s.decode(resp.Body)
	}
	ev := r.event
	ev.Duration = time.Since(start)
	if resp != nil {
		ev.Status = resp.Status
	} else {
		ev.Status = transport.StatusOf(err)
	}

	s.mu.Lock()
	if s.cfg.staleGuard && r.gen != s.gen {
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.cfg.logger.Info("stale response dropped",
			"store", s.endpoint.Name,
			"flow_token", ev.FlowToken,
			"status", ev.Status,
		)
		ev.Kind = EventDropped
		s.observe(r.ctx, ev)
		return snap
	}

	last := p
	if err != nil {
		s.state = State[T]{Error: true, ErrorData: err, LastParams: &last}
	} else {
		s.state = State[T]{Data: data, Success: true, LastParams: &last}
	}
	snap := s.snapshotLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, snap)

	if err != nil {
		s.cfg.logger.Error("execute failed",
			"store", s.endpoint.Name,
			"flow_token", ev.FlowToken,
			"method", ev.Method,
			"path", ev.Path,
			"status", ev.Status,
			"error", err,
		)
		ev.Kind = EventFailed
		ev.Err = err
		s.observe(r.ctx, ev)

		if s.cfg.onError != nil {
			s.cfg.onError(err)
		}
		if p.OnError != nil {
			p.OnError(err)
		}
		return snap
	}

	s.cfg.logger.Info("execute succeeded",
		"store", s.endpoint.Name,
		"flow_token", ev.FlowToken,
		"method", ev.Method,
		"path", ev.Path,
		"status", ev.Status,
	)
	ev.Kind = EventSucceeded
	s.observe(r.ctx, ev)

	if s.cfg.publisher != nil && len(s.endpoint.Publishes) > 0 {
		s.cfg.publisher.Publish(r.ctx, bus.Publication{
			Source:      s.endpoint.Name,
			ExecutionID: ev.ExecutionID,
			Topics:      s.endpoint.Publishes,
		})
	}
	if s.cfg.onSuccess != nil {
		s.cfg.onSuccess(resp)
	}
	if p.OnSuccess != nil {
		p.OnSuccess(resp)
	}
	return snap
}

// decode turns a response body into a payload. An empty or null body is
// nil data.
func (s *Store[T]) decode(body []byte) (*T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal(trimmed, v); err != nil {
		return nil, fmt.Errorf("%s %s: %w", s.endpoint.Method, s.endpoint.Path, &DecodeError{
			Store: s.endpoint.Name,
			Type:  reflect.TypeFor[T]().String(),
			Err:   err,
		})
	}
	return v, nil
}

func (s *Store[T]) observe(ctx context.Context, ev Event) {
	for _, o := range s.cfg.observers {
		o.Observe(ctx, ev)
	}
}

// snapshotLocked copies the state. Caller holds mu.
func (s *Store[T]) snapshotLocked() State[T] {
	snap := s.state
	if snap.LastParams != nil {
		p := *snap.LastParams
		snap.LastParams = &p
	}
	return snap
}

// subscribersLocked copies the subscriber list. Caller holds mu.
func (s *Store[T]) subscribersLocked() []func(State[T]) {
	fns := make([]func(State[T]), len(s.subs))
	for i, sub := range s.subs {
		fns[i] = sub.fn
	}
	return fns
}

func notify[T any](subs []func(State[T]), snap State[T]) {
	for _, fn := range subs {
		fn(snap)
	}
}
