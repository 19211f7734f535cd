package harness

import (
	"github.com/roach88/fintrack/internal/journal"
	"github.com/roach88/fintrack/internal/state"
)

// StepTrace is what one scenario step caused.
type StepTrace struct {
	Step    string   `json:"step"`    // "execute GetAccounts"
	Calls   []string `json:"calls"`   // transport calls, sorted
	Settled []string `json:"settled"` // "GetAccounts success 200 forced", by seq
	Firings []string `json:"firings"` // "CreateAccount accounts -> GetAccounts", by seq

	// Status is the state the step's execute returned.
	Status state.Status `json:"-"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Steps []StepTrace `json:"steps"`

	// Calls lists every transport call of the run, in call order.
	Calls []string `json:"calls"`

	Errors []string `json:"errors,omitempty"`

	// Final is the status of every store after the last step.
	Final map[string]state.Status `json:"-"`

	// Journal is everything recorded under the scenario's flow token.
	Journal journal.Trace `json:"-"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepTrace{},
		Calls:  []string{},
		Errors: []string{},
		Final:  make(map[string]state.Status),
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
