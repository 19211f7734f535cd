// Package ledger builds the application's stores.
//
// A Registry is constructed once by the application root and passed down.
// It creates one store per catalog endpoint, typed with the endpoint's
// payload when the endpoint is known, and wires stores into a shared
// invalidation bus: reads subscribe to their topics, mutations publish
// theirs. A catalog whose invalidation graph has a cycle is rejected.
package ledger
