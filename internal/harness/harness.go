package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/ir"
	"github.com/roach88/fintrack/internal/journal"
	"github.com/roach88/fintrack/internal/ledger"
	"github.com/roach88/fintrack/internal/state"
	"github.com/roach88/fintrack/internal/testutil"
)

// DefaultFlowToken is the flow token of scenarios that set none.
const DefaultFlowToken = "test-flow-default"

// Harness runs one scenario against a fresh registry.
type Harness struct {
	scenario *Scenario
	flow     string
	fake     *testutil.FakeTransport
	journal  *journal.Journal
	registry *ledger.Registry
	logger   *slog.Logger

	settled int // settlements already attributed to a step
	fired   int // firings already attributed to a step
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal with a fixed flow token:
//  1. Script the transport from the scenario's replies
//  2. Build a registry journaling every execution and firing
//  3. Run each step, wait for its refreshes, and record its trace
//  4. Evaluate the assertions
//
// A non-nil error means the scenario could not run. A scenario that ran
// but failed an expectation returns a result with Pass false.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with the registry logging to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	h, err := newHarness(scenario, logger)
	if err != nil {
		return nil, err
	}
	defer h.close()

	return h.run(context.Background())
}

func newHarness(scenario *Scenario, logger *slog.Logger) (*Harness, error) {
	flow := scenario.FlowToken
	if flow == "" {
		flow = DefaultFlowToken
	}

	fake := testutil.NewFakeTransport()
	for _, r := range scenario.Replies {
		method, path, err := parseRoute(r.Route)
		if err != nil {
			return nil, err
		}
		fake.On(method, path, toReply(r))
	}

	j, err := journal.Open(":memory:", journal.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithFlowGenerator(testutil.FixedFlow(flow)),
		ledger.WithObserver(j),
		ledger.WithListener(j),
	}
	if scenario.StaleGuard {
		opts = append(opts, ledger.WithStaleGuard())
	}
	registry, err := ledger.New(fake, opts...)
	if err != nil {
		j.Close()
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}

	return &Harness{
		scenario: scenario,
		flow:     flow,
		fake:     fake,
		journal:  j,
		registry: registry,
		logger:   logger,
	}, nil
}

func (h *Harness) close() {
	h.registry.Wait()
	if err := h.journal.Close(); err != nil {
		h.logger.Warn("failed to close journal", "error", err)
	}
}

func (h *Harness) run(ctx context.Context) (*Result, error) {
	result := NewResult()

	for i, step := range h.scenario.Steps {
		trace, err := h.runStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Label(), err)
		}
		result.Steps = append(result.Steps, trace)
		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, trace.Status) {
				result.AddError(fmt.Sprintf("step %d (%s): %s", i, step.Label(), msg))
			}
		}
	}

	for _, st := range h.registry.Snapshot() {
		result.Final[st.Name] = st
	}

	var err error
	result.Journal, err = h.journal.ReadFlow(ctx, h.flow)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	for _, s := range result.Steps {
		result.Calls = append(result.Calls, s.Calls...)
	}

	for i, a := range h.scenario.Assertions {
		if err := evaluateAssertion(a, result); err != nil {
			result.AddError(fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return result, nil
}

// runStep executes one step and collects what it caused.
func (h *Harness) runStep(ctx context.Context, step Step) (StepTrace, error) {
	handle, err := h.registry.Lookup(step.Store())
	if err != nil {
		return StepTrace{}, err
	}
	params, err := step.Params.toParams()
	if err != nil {
		return StepTrace{}, err
	}

	var st state.Status
	if step.Execute != "" {
		st = handle.Execute(ctx, params)
	} else {
		st = handle.Reload(ctx, params)
	}
	h.registry.Wait()

	calls := h.fake.Drain()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = testutil.FormatCall(c)
	}
	sort.Strings(lines)

	flow, err := h.journal.ReadFlow(ctx, h.flow)
	if err != nil {
		return StepTrace{}, fmt.Errorf("failed to read journal: %w", err)
	}
	executions := make(map[string]ir.Execution, len(flow.Executions))
	for _, ex := range flow.Executions {
		executions[ex.ID] = ex
	}

	trace := StepTrace{
		Step:    step.Label(),
		Calls:   lines,
		Settled: []string{},
		Firings: []string{},
		Status:  st,
	}
	for _, s := range flow.Settlements[h.settled:] {
		trace.Settled = append(trace.Settled, formatSettlement(s, executions[s.ExecutionID]))
	}
	for _, f := range flow.Firings[h.fired:] {
		trace.Firings = append(trace.Firings, formatFiring(f))
	}
	h.settled = len(flow.Settlements)
	h.fired = len(flow.Firings)
	return trace, nil
}

// formatSettlement renders "GetAccounts success 200 forced".
func formatSettlement(s ir.Settlement, ex ir.Execution) string {
	parts := []string{ex.Store, string(s.Outcome)}
	if s.Status != 0 {
		parts = append(parts, strconv.Itoa(s.Status))
	}
	if ex.Forced {
		parts = append(parts, "forced")
	}
	return strings.Join(parts, " ")
}

// formatFiring renders "CreateAccount accounts -> GetAccounts".
func formatFiring(f bus.Firing) string {
	return fmt.Sprintf("%s %s -> %s", f.Cause.Source, f.Cause.Topic, f.Subscriber)
}

func (p StepParams) toParams() (state.Params, error) {
	query, err := ir.NewQuery(p.Query)
	if err != nil {
		return state.Params{}, err
	}
	return state.Params{
		ID:      p.ID,
		Query:   query,
		Body:    p.Body,
		Force:   p.Force,
		Headers: p.Headers,
	}, nil
}

func toReply(r Reply) testutil.Reply {
	switch {
	case r.Network:
		return testutil.NetworkDown()
	case r.Message != "":
		return testutil.Fail(r.status(), r.Message)
	case r.status() >= http.StatusBadRequest && r.Body == "":
		return testutil.Fail(r.status(), http.StatusText(r.status()))
	default:
		return testutil.JSON(r.status(), r.Body)
	}
}
