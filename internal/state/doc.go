// Package state implements the generic request-state container.
//
// A Store[T] wraps one API endpoint. It holds the last payload and the
// lifecycle flags of the most recent execute, and exposes Execute and Reload.
//
// Cache-skip rule: Execute on a GET endpoint returns immediately, without
// contacting the transport, when the store already holds data and the
// params do not set Force. That is the only caching policy; data is
// refreshed by Force, by Reload, or by an invalidation from the bus.
//
// Lifecycle of one execute:
//
//	Idle -> Loading -> Success | Error -> Idle
//
// On success the store publishes its endpoint's topics on the bus before any
// success callback runs, so callers observe dependent stores already loading.
//
// Two executes may overlap on one store. By default whichever response
// settles last wins. WithStaleGuard drops responses from superseded executes.
package state
