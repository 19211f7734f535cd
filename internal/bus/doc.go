// Package bus implements invalidation wiring between stores.
//
// Mutation stores publish topics when they succeed; read stores subscribe to
// topics. Publishing a topic starts a forced refresh of every subscriber.
// The graph of (publisher, topic, subscriber) edges is declared up front and
// can be inspected with Graph and checked for cycles with AnalyzeCycles.
//
// Refreshes are correlated by flow token. Every top-level execute starts a
// flow; refreshes it triggers inherit the token and record their cause.
// A refresh never fires a (topic, subscriber) pair that already appears in
// its own cause chain, and the number of firings per flow is bounded by a
// step quota. Together these guarantee that a misdeclared graph terminates.
// Independent publications that share a flow token do not suppress each
// other.
//
// Thread-safety: Bus is safe for concurrent use. Refresh network phases run on
// goroutines owned by the bus; Wait blocks until all of them settled.
package bus
