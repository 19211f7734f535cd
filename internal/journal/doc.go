// Package journal records store executions in SQLite.
//
// The journal is an append-only log with three tables:
//   - executions: one row per execute that got past flow assignment,
//     keyed by its content-addressed execution ID
//   - settlements: the outcome of each execution (skipped, success,
//     error or dropped)
//   - firings: invalidation refreshes, linking a publishing execution to
//     the subscriber it refreshed
//
// A Journal is a state.Observer and a bus.Listener; attach it to a
// registry with ledger.WithObserver and ledger.WithListener.
//
// Ordering uses the logical seq column, never wall time. All flow queries
// ORDER BY seq ASC, id ASC COLLATE BINARY so traces are reproducible.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package journal
