package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	"github.com/roach88/fintrack/internal/ir"
	"github.com/roach88/fintrack/internal/state"
)

func evaluateAssertion(a Assertion, result *Result) error {
	switch a.Type {
	case AssertCallCount:
		return assertCallCount(a, result)
	case AssertCallMade:
		return assertCallMade(a, result)
	case AssertOutcome:
		return assertOutcome(a, result)
	case AssertRefreshed:
		return assertRefreshed(a, result)
	case AssertUntouched:
		return assertUntouched(a, result)
	case AssertFinalState:
		return assertFinalState(a, result)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertCallCount counts calls to a route, ignoring query strings and bodies.
func assertCallCount(a Assertion, result *Result) error {
	method, path, err := parseRoute(a.Route)
	if err != nil {
		return err
	}
	prefix := string(method) + " " + path

	count := 0
	for _, call := range result.Calls {
		if call == prefix || hasRoutePrefix(call, prefix) {
			count++
		}
	}
	if count != a.Count {
		return fmt.Errorf("expected %d calls to %s, got %d", a.Count, a.Route, count)
	}
	return nil
}

func hasRoutePrefix(call, prefix string) bool {
	if len(call) <= len(prefix) || call[:len(prefix)] != prefix {
		return false
	}
	next := call[len(prefix)]
	return next == '?' || next == ' '
}

func assertCallMade(a Assertion, result *Result) error {
	if slices.Contains(result.Calls, a.Call) {
		return nil
	}
	return fmt.Errorf("call %q not made; calls: %v", a.Call, result.Calls)
}

func assertOutcome(a Assertion, result *Result) error {
	count := 0
	for _, s := range result.Journal.Settlements {
		if s.Outcome == ir.Outcome(a.Outcome) && storeOf(result, s.ExecutionID) == a.Store {
			count++
		}
	}
	if count != a.Count {
		return fmt.Errorf("expected %s to settle %s %d times, got %d", a.Store, a.Outcome, a.Count, count)
	}
	return nil
}

func assertRefreshed(a Assertion, result *Result) error {
	for _, f := range result.Journal.Firings {
		if f.Subscriber == a.Store && (a.Source == "" || f.Cause.Source == a.Source) {
			return nil
		}
	}
	if a.Source != "" {
		return fmt.Errorf("%s was not refreshed by %s", a.Store, a.Source)
	}
	return fmt.Errorf("%s was not refreshed", a.Store)
}

func assertUntouched(a Assertion, result *Result) error {
	for _, ex := range result.Journal.Executions {
		if ex.Store == a.Store {
			return fmt.Errorf("%s executed (seq %d)", a.Store, ex.Seq)
		}
	}
	return nil
}

func assertFinalState(a Assertion, result *Result) error {
	st, ok := result.Final[a.Store]
	if !ok {
		return fmt.Errorf("unknown store %s", a.Store)
	}
	if msgs := checkExpect(a.Expect, st); len(msgs) > 0 {
		return fmt.Errorf("%s: %v", a.Store, msgs)
	}
	return nil
}

func storeOf(result *Result, executionID string) string {
	for _, ex := range result.Journal.Executions {
		if ex.ID == executionID {
			return ex.Store
		}
	}
	return ""
}

// checkExpect returns one message per unmet field of e.
func checkExpect(e *ExpectClause, st state.Status) []string {
	var msgs []string
	check := func(field string, want *bool, got bool) {
		if want != nil && *want != got {
			msgs = append(msgs, fmt.Sprintf("expected %s=%t, got %t", field, *want, got))
		}
	}
	check("success", e.Success, st.Success)
	check("error", e.Error, st.Error)
	check("loading", e.Loading, st.Loading)
	check("has_data", e.HasData, st.Data != nil)

	if e.ErrorMessage != "" && e.ErrorMessage != st.ErrorMessage {
		msgs = append(msgs, fmt.Sprintf("expected error_message %q, got %q", e.ErrorMessage, st.ErrorMessage))
	}
	if e.ErrorStatus != 0 && e.ErrorStatus != st.ErrorStatus {
		msgs = append(msgs, fmt.Sprintf("expected error_status %d, got %d", e.ErrorStatus, st.ErrorStatus))
	}
	if e.Data != nil {
		if err := matchData(e.Data, st.Data); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

// matchData reports whether got contains want. Both sides are normalized
// through JSON so YAML integers compare equal to decoded numbers.
func matchData(want, got any) error {
	w, err := normalize(want)
	if err != nil {
		return fmt.Errorf("expected data: %w", err)
	}
	g, err := normalize(got)
	if err != nil {
		return fmt.Errorf("store data: %w", err)
	}
	if !subset(w, g) {
		return fmt.Errorf("data mismatch: expected %v within %v", w, g)
	}
	return nil
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// subset matches objects key by key, arrays element by element with equal
// lengths, and scalars by equality.
func subset(want, got any) bool {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return false
		}
		for k, wv := range w {
			gv, ok := g[k]
			if !ok || !subset(wv, gv) {
				return false
			}
		}
		return true
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			return false
		}
		for i := range w {
			if !subset(w[i], g[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(want, got)
	}
}
