package cli

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fintrack/internal/apitest"
)

func TestPrefetch(t *testing.T) {
	clearEnv(t)
	api, base := apitest.Start(t)

	out, _, err := execute(t, "--base-url", base, "prefetch")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ GetAccounts")
	assert.Contains(t, out, "✓ GetBudgetSummary")
	assert.Contains(t, out, "\n10 stores, 0 failed\n")
	assert.NotContains(t, out, "GetTransactionByID")

	assert.Equal(t, 1, api.Hits("GET /accounts"))
	assert.Equal(t, 1, api.Hits("GET /transactions/period"))
	assert.Equal(t, 1, api.Hits("GET /transactions/monthly"))
	assert.Equal(t, 10, api.TotalHits())
}

func TestPrefetch_Failure(t *testing.T) {
	clearEnv(t)
	api, base := apitest.Start(t)
	api.FailNext(http.MethodGet, "/transfers", http.StatusInternalServerError, "ledger offline")

	out, _, err := execute(t, "--base-url", base, "prefetch")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ GetTransfers")
	assert.Contains(t, out, "500 ledger offline")
	assert.Contains(t, out, "10 stores, 1 failed")
	assert.Equal(t, 1, api.Hits("GET /categories"), "siblings still run")
}

func TestPrefetch_JSON(t *testing.T) {
	clearEnv(t)
	_, base := apitest.Start(t)

	out, _, err := execute(t, "--base-url", base, "--format", "json", "prefetch")
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Stores []struct {
				Name    string `json:"name"`
				Success bool   `json:"success"`
			} `json:"stores"`
			Failed int `json:"failed"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Stores, 10)
	assert.Zero(t, resp.Data.Failed)

	names := make([]string, 0, len(resp.Data.Stores))
	for _, st := range resp.Data.Stores {
		assert.True(t, st.Success, st.Name)
		names = append(names, st.Name)
	}
	assert.IsNonDecreasing(t, names)
}
