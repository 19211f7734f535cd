// Package harness runs YAML scenarios against a registry wired to a
// scripted transport, and compares what happened with golden traces.
//
// # Scenario Format
//
//	name: mutation_refreshes_dependents
//	description: "Creating an account refreshes accounts and budget"
//	flow_token: scenario-2
//	replies:
//	  - route: POST /accounts
//	    status: 201
//	    body: '{"id": 3, "name": "Cash"}'
//	steps:
//	  - execute: CreateAccount
//	    params:
//	      body: { name: Cash, currency: SEK }
//	    expect:
//	      success: true
//	assertions:
//	  - type: refreshed
//	    store: GetAccounts
//	    source: CreateAccount
//
// Each step is either an execute or a reload of one store. The harness
// waits for every invalidation refresh the step started before moving on.
//
// # Assertion Types
//
//   - call_count: a route ("METHOD /path") was called exactly count times
//   - call_made: an exact call line, as rendered by testutil.FormatCall
//   - outcome: a store settled with outcome exactly count times
//   - refreshed: a store was refreshed by an invalidation, optionally from source
//   - untouched: a store never executed
//   - final_state: a store's final status matches expect
//
// # Deterministic Testing
//
// Every scenario runs with a fresh registry, a fixed flow token, a logical
// clock and an in-memory journal, so traces are identical across runs.
// Calls within a step are sorted; settlements and firings are ordered by
// logical sequence number.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/cache_hit.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//
// In tests, RunWithGolden compares the step traces against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
