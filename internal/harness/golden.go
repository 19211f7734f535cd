package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/fintrack/internal/ir"
)

// TraceSnapshot is the golden form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string      `json:"scenario_name"`
	FlowToken    string      `json:"flow_token"`
	Steps        []StepTrace `json:"steps"`
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonical, which only
// handles maps, slices and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, step := range s.Steps {
		steps[i] = map[string]any{
			"step":    step.Step,
			"calls":   stringList(step.Calls),
			"settled": stringList(step.Settled),
			"firings": stringList(step.Firings),
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"flow_token":    s.FlowToken,
		"steps":         steps,
	}
}

func stringList(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

// Golden renders the snapshot as indented canonical JSON.
func (s *TraceSnapshot) Golden() ([]byte, error) {
	canonical, err := ir.MarshalCanonical(s.toCanonicalMap())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, canonical, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario, fails t on any unmet expectation, and
// compares the step traces against testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario, result)
}

// NewSnapshot captures the golden form of result.
func NewSnapshot(scenario *Scenario, result *Result) *TraceSnapshot {
	flow := scenario.FlowToken
	if flow == "" {
		flow = DefaultFlowToken
	}
	return &TraceSnapshot{
		ScenarioName: scenario.Name,
		FlowToken:    flow,
		Steps:        result.Steps,
	}
}

// AssertGolden compares an existing result against the scenario's golden
// file without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenario, result).Golden()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
