package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return scenario
}

func TestRun_Fixtures(t *testing.T) {
	for _, name := range []string{"cache_hit", "create_account_invalidates", "delete_failure", "reload_merge"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestRun_DefaultFlowToken(t *testing.T) {
	result, err := Run(mustParse(t, `
name: default_flow
replies:
  - route: GET /categories
    body: '[]'
steps:
  - execute: GetCategories
`))
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)
	require.NotEmpty(t, result.Journal.Executions)
	assert.Equal(t, DefaultFlowToken, result.Journal.FlowToken)
	assert.Equal(t, DefaultFlowToken, result.Journal.Executions[0].FlowToken)
}

func TestRun_UnscriptedRouteFails(t *testing.T) {
	result, err := Run(mustParse(t, `
name: unscripted
steps:
  - execute: GetAccounts
    expect:
      error: true
      error_status: 404
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []string{"GetAccounts error 404"}, result.Steps[0].Settled)
}

func TestRun_NetworkFailure(t *testing.T) {
	result, err := Run(mustParse(t, `
name: offline
replies:
  - route: GET /transfers
    network: true
steps:
  - execute: GetTransfers
    expect:
      error: true
      has_data: false
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []string{"GetTransfers error"}, result.Steps[0].Settled)
}

func TestRun_ForcedReadIsNotSkipped(t *testing.T) {
	result, err := Run(mustParse(t, `
name: forced
replies:
  - route: GET /accounts
    body: '[]'
steps:
  - execute: GetAccounts
  - execute: GetAccounts
    params:
      force: true
assertions:
  - type: call_count
    route: GET /accounts
    count: 2
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []string{"GetAccounts success 200 forced"}, result.Steps[1].Settled)
}

func TestRun_FailedExpectation(t *testing.T) {
	result, err := Run(mustParse(t, `
name: wrong_expectation
replies:
  - route: GET /accounts
    body: '[]'
steps:
  - execute: GetAccounts
    expect:
      error: true
assertions:
  - type: untouched
    store: GetAccounts
`))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected error=true, got false")
	assert.Contains(t, result.Errors[1], "GetAccounts executed")
}

func TestRun_UnknownStore(t *testing.T) {
	_, err := Run(mustParse(t, `
name: unknown
steps:
  - execute: GetUnicorns
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GetUnicorns")
}

func TestRun_MissingIDFailsWithoutRequest(t *testing.T) {
	result, err := Run(mustParse(t, `
name: missing_id
steps:
  - execute: DeleteTransaction
    expect:
      error: true
assertions:
  - type: call_count
    route: DELETE /transactions
    count: 0
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Steps[0].Calls)
}
