package state

import (
	"context"

	"github.com/roach88/fintrack/internal/ir"
)

// Handle is the untyped view of a store. The registry, CLI, server and
// harness use it to drive stores of any payload type by name.
type Handle interface {
	Name() string
	Endpoint() ir.Endpoint
	Execute(ctx context.Context, params Params) Status
	Reload(ctx context.Context, override Params) Status
	Status() Status
	Watch(fn func(Status)) func()
	Refresh(ctx context.Context) func()
}

// Handle returns the untyped view of s.
func (s *Store[T]) Handle() Handle {
	return handle[T]{s: s}
}

type handle[T any] struct {
	s *Store[T]
}

func (h handle[T]) Name() string {
	return h.s.Name()
}

func (h handle[T]) Endpoint() ir.Endpoint {
	return h.s.Endpoint()
}

func (h handle[T]) Execute(ctx context.Context, params Params) Status {
	return statusOf(h.s.Name(), h.s.Execute(ctx, params))
}

func (h handle[T]) Reload(ctx context.Context, override Params) Status {
	return statusOf(h.s.Name(), h.s.Reload(ctx, override))
}

func (h handle[T]) Status() Status {
	return statusOf(h.s.Name(), h.s.State())
}

func (h handle[T]) Watch(fn func(Status)) func() {
	name := h.s.Name()
	return h.s.Subscribe(func(st State[T]) {
		fn(statusOf(name, st))
	})
}

func (h handle[T]) Refresh(ctx context.Context) func() {
	return h.s.Refresh(ctx)
}
