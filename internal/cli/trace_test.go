package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/ir"
	"github.com/roach88/fintrack/internal/journal"
)

// seedJournal writes one flow: a failed GetTransfers, a skipped
// GetAccounts, a CreateAccount that refreshed GetAccounts, and that refresh
// still pending.
func seedJournal(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fintrack.db")

	j, err := journal.Open(path)
	require.NoError(t, err)
	defer j.Close()

	const flow = "flow-trace"
	executions := []ir.Execution{
		{ID: "ex-transfers", FlowToken: flow, Store: "GetTransfers", Method: ir.MethodGet, Path: "/transfers", Seq: 1},
		{ID: "ex-create", FlowToken: flow, Store: "CreateAccount", Method: ir.MethodPost, Path: "/accounts", Seq: 3},
		{
			ID: "ex-refresh", FlowToken: flow, Store: "GetAccounts", Method: ir.MethodGet, Path: "/accounts",
			Query: ir.IRObject{"limit": ir.IRInt(10)}, Forced: true, Seq: 5,
			Cause: ir.Cause{ExecutionID: "ex-create", Source: "CreateAccount", Topic: "accounts"},
		},
	}
	for _, ex := range executions {
		require.NoError(t, j.WriteExecution(ctx, ex))
	}
	require.NoError(t, j.WriteSettlement(ctx, ir.Settlement{
		ExecutionID: "ex-transfers", Outcome: ir.OutcomeError, Status: 500, Message: "ledger offline", Seq: 1,
	}, 3))
	require.NoError(t, j.WriteSkip(ctx, ir.Execution{
		ID: "ex-skip", FlowToken: flow, Store: "GetAccounts", Method: ir.MethodGet, Path: "/accounts", Seq: 2,
	}))
	require.NoError(t, j.WriteSettlement(ctx, ir.Settlement{
		ExecutionID: "ex-create", Outcome: ir.OutcomeSuccess, Status: 201, Seq: 3,
	}, 4))
	_, err = j.WriteFiring(ctx, bus.Firing{
		FlowToken:  flow,
		Cause:      ir.Cause{ExecutionID: "ex-create", Source: "CreateAccount", Topic: "accounts"},
		Subscriber: "GetAccounts",
		Seq:        4,
	})
	require.NoError(t, err)
	return path
}

func TestTrace_Timeline(t *testing.T) {
	clearEnv(t)
	db := seedJournal(t)

	out, _, err := execute(t, "trace", "--db", db, "--flow", "flow-trace")
	require.NoError(t, err)

	want := `Trace for flow: flow-trace

=== Timeline ===
  [1] GetTransfers GET /transfers -> error 500
  [2] GetAccounts GET /accounts -> skipped
  [3] CreateAccount POST /accounts -> success 201
  [4] CreateAccount -[accounts]-> GetAccounts
  [5] GetAccounts GET /accounts?limit=10 (forced) -> pending

=== Stats ===
  Executions: 4
  Skipped:    1
  Failures:   1
  Firings:    1
  Pending:    1
`
	assert.Equal(t, want, out)
}

func TestTrace_StoreFilter(t *testing.T) {
	clearEnv(t)
	db := seedJournal(t)

	out, _, err := execute(t, "--format", "json", "trace", "--db", db, "--flow", "flow-trace", "--store", "GetAccounts")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	var seqs []int64
	for _, ev := range resp.Data.Timeline {
		seqs = append(seqs, ev.Seq)
	}
	assert.Equal(t, []int64{2, 4, 5}, seqs)
	assert.Equal(t, "firing", resp.Data.Timeline[1].Type)
	assert.Equal(t, 4, resp.Data.Stats.Executions, "stats cover the whole flow")
}

func TestTrace_Verbose(t *testing.T) {
	clearEnv(t)
	db := seedJournal(t)

	out, _, err := execute(t, "-v", "trace", "--db", db, "--flow", "flow-trace")
	require.NoError(t, err)
	assert.Contains(t, out, "       ID: ex-transfers\n")
	assert.Contains(t, out, "       Message: ledger offline\n")
}

func TestTrace_ListFlows(t *testing.T) {
	clearEnv(t)
	db := seedJournal(t)

	out, _, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "flow-trace  GetTransfers               4 executions, 1 failed\n", out)
}

func TestTrace_UnknownFlow(t *testing.T) {
	clearEnv(t)
	db := seedJournal(t)

	out, _, err := execute(t, "trace", "--db", db, "--flow", "flow-missing")
	require.NoError(t, err)
	assert.Equal(t, "No executions found for flow: flow-missing\n", out)
}

func TestTrace_EmptyJournal(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "empty.db")
	j, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	out, _, err := execute(t, "trace", "--db", path)
	require.NoError(t, err)
	assert.Equal(t, "No flows journaled.\n", out)
}

func TestTrace_CommandErrors(t *testing.T) {
	clearEnv(t)

	t.Run("no journal configured", func(t *testing.T) {
		_, _, err := execute(t, "trace")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("journal not found", func(t *testing.T) {
		_, _, err := execute(t, "trace", "--db", filepath.Join(t.TempDir(), "missing.db"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "journal not found")
	})
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "0190c7e2...89abcdef", truncateID("0190c7e2-0000-7000-8000-0123456789abcdef"))
}
