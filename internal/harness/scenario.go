package harness

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fintrack/internal/ir"
)

// Scenario is one end-to-end conformance case.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// FlowToken groups every execute of the run. Defaults to
	// "test-flow-default".
	FlowToken string `yaml:"flow_token,omitempty"`

	// StaleGuard runs the registry with superseded responses dropped.
	StaleGuard bool `yaml:"stale_guard,omitempty"`

	// Replies script the transport. Unscripted routes answer 404.
	Replies []Reply `yaml:"replies"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions"`
}

// Reply scripts the transport's answers for one route. Several replies
// for one route are consumed in order; the last one repeats.
type Reply struct {
	Route   string `yaml:"route"` // "GET /accounts"
	Status  int    `yaml:"status,omitempty"`
	Body    string `yaml:"body,omitempty"`
	Message string `yaml:"message,omitempty"` // error body {"message": ...}
	Network bool   `yaml:"network,omitempty"` // fail without a response
}

// Step executes or reloads one store.
type Step struct {
	Execute string        `yaml:"execute,omitempty"`
	Reload  string        `yaml:"reload,omitempty"`
	Params  StepParams    `yaml:"params,omitempty"`
	Expect  *ExpectClause `yaml:"expect,omitempty"`
}

// Store returns the store the step targets.
func (s Step) Store() string {
	if s.Execute != "" {
		return s.Execute
	}
	return s.Reload
}

// Label renders the step for traces.
func (s Step) Label() string {
	if s.Execute != "" {
		return "execute " + s.Execute
	}
	return "reload " + s.Reload
}

// StepParams are the YAML form of state.Params.
type StepParams struct {
	ID      string            `yaml:"id,omitempty"`
	Query   map[string]any    `yaml:"query,omitempty"`
	Body    any               `yaml:"body,omitempty"`
	Force   bool              `yaml:"force,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// ExpectClause checks a store status. Unset fields are not checked.
type ExpectClause struct {
	Success      *bool  `yaml:"success,omitempty"`
	Error        *bool  `yaml:"error,omitempty"`
	Loading      *bool  `yaml:"loading,omitempty"`
	HasData      *bool  `yaml:"has_data,omitempty"`
	Data         any    `yaml:"data,omitempty"` // subset match against the decoded payload
	ErrorMessage string `yaml:"error_message,omitempty"`
	ErrorStatus  int    `yaml:"error_status,omitempty"`
}

// Assertion validates the run as a whole.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Route   string        `yaml:"route,omitempty"`   // call_count
	Call    string        `yaml:"call,omitempty"`    // call_made
	Store   string        `yaml:"store,omitempty"`   // outcome, refreshed, untouched, final_state
	Source  string        `yaml:"source,omitempty"`  // refreshed
	Outcome string        `yaml:"outcome,omitempty"` // outcome
	Count   int           `yaml:"count,omitempty"`   // call_count, outcome
	Expect  *ExpectClause `yaml:"expect,omitempty"`  // final_state
}

// Assertion types.
const (
	AssertCallCount  = "call_count"
	AssertCallMade   = "call_made"
	AssertOutcome    = "outcome"
	AssertRefreshed  = "refreshed"
	AssertUntouched  = "untouched"
	AssertFinalState = "final_state"
)

// LoadScenario reads and validates a scenario file. Unknown YAML fields
// are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("at least one step is required")
	}

	for i, r := range s.Replies {
		if _, _, err := parseRoute(r.Route); err != nil {
			return fmt.Errorf("replies[%d]: %w", i, err)
		}
		if r.Status != 0 && (r.Status < 100 || r.Status > 599) {
			return fmt.Errorf("replies[%d]: status %d out of range", i, r.Status)
		}
	}

	for i, step := range s.Steps {
		switch {
		case step.Execute == "" && step.Reload == "":
			return fmt.Errorf("steps[%d]: one of execute or reload is required", i)
		case step.Execute != "" && step.Reload != "":
			return fmt.Errorf("steps[%d]: execute and reload are exclusive", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCallCount:
		if _, _, err := parseRoute(a.Route); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for call_count", index)
		}
	case AssertCallMade:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for call_made", index)
		}
	case AssertOutcome:
		if a.Store == "" || a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: store and outcome are required for outcome", index)
		}
		switch ir.Outcome(a.Outcome) {
		case ir.OutcomeSkipped, ir.OutcomeSuccess, ir.OutcomeError, ir.OutcomeDropped:
		default:
			return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
		}
	case AssertRefreshed, AssertUntouched:
		if a.Store == "" {
			return fmt.Errorf("assertions[%d]: store is required for %s", index, a.Type)
		}
	case AssertFinalState:
		if a.Store == "" {
			return fmt.Errorf("assertions[%d]: store is required for final_state", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// parseRoute splits "GET /accounts".
func parseRoute(route string) (ir.Method, string, error) {
	method, path, ok := strings.Cut(strings.TrimSpace(route), " ")
	if !ok || !strings.HasPrefix(path, "/") {
		return "", "", fmt.Errorf("route %q must be \"METHOD /path\"", route)
	}
	switch m := ir.Method(method); m {
	case ir.MethodGet, ir.MethodPost, ir.MethodPut, ir.MethodPatch, ir.MethodDelete:
		return m, path, nil
	default:
		return "", "", fmt.Errorf("route %q: unknown method %q", route, method)
	}
}

func (r Reply) status() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}
