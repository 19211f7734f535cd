package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fintrack/internal/state"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]int{"count": 2}))

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data["count"])
	assert.Contains(t, buf.String(), "\n  ", "JSON output is indented")
}

func TestOutputFormatter_JSONError(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Error(ErrCodeUnknown, "no such store", map[string]string{"store": "Nope"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknown, resp.Error.Code)
	assert.Equal(t, "no such store", resp.Error.Message)
	assert.Nil(t, resp.Data)
}

func TestOutputFormatter_TextError(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Error(ErrCodeConfig, "bad base url", "details"))
	assert.Equal(t, "Error [E_CONFIG]: bad base url\n", buf.String())

	buf.Reset()
	f.Verbose = true
	require.NoError(t, f.Error(ErrCodeConfig, "bad base url", "details"))
	assert.Equal(t, "Error [E_CONFIG]: bad base url\nDetails: details\n", buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	var out, diag bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &diag}

	f.VerboseLog("ignored %d", 1)
	assert.Empty(t, diag.String())

	f.Verbose = true
	f.VerboseLog("compiled %d endpoints", 24)
	assert.Equal(t, "compiled 24 endpoints\n", diag.String())
	assert.Empty(t, out.String())
}

func TestOutputFormatter_GetErrWriter(t *testing.T) {
	var out bytes.Buffer
	f := &OutputFormatter{Writer: &out}
	assert.Same(t, &out, f.GetErrWriter())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"exit error", NewExitError(ExitCommandError, "bad args"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("run: %w", NewExitError(ExitFailure, "failed")), ExitFailure},
		{"plain error", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapExitError(ExitFailure, "GetAccounts failed", cause)

	assert.Equal(t, "GetAccounts failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad args", NewExitError(ExitCommandError, "bad args").Error())
}

func TestOutputFormatter_WriteStatus(t *testing.T) {
	tests := []struct {
		name string
		st   state.Status
		want string
	}{
		{
			name: "idle",
			st:   state.Status{Name: "GetAccounts"},
			want: fmt.Sprintf("%-28s idle\n", "GetAccounts"),
		},
		{
			name: "loading",
			st:   state.Status{Name: "GetAccounts", Loading: true},
			want: fmt.Sprintf("%-28s loading\n", "GetAccounts"),
		},
		{
			name: "error with status",
			st:   state.Status{Name: "DeleteTransaction", Error: true, ErrorStatus: 404, ErrorMessage: "transaction not found"},
			want: fmt.Sprintf("%-28s error\n  404 transaction not found\n", "DeleteTransaction"),
		},
		{
			name: "network error",
			st:   state.Status{Name: "GetTransfers", Error: true, ErrorMessage: "network error"},
			want: fmt.Sprintf("%-28s error\n  network error\n", "GetTransfers"),
		},
		{
			name: "success with data",
			st:   state.Status{Name: "GetBudgetSummary", Success: true, Data: map[string]any{"id": 1}},
			want: fmt.Sprintf("%-28s success\n  {\n    \"id\": 1\n  }\n", "GetBudgetSummary"),
		},
		{
			name: "success without data",
			st:   state.Status{Name: "DeleteAllData", Success: true},
			want: fmt.Sprintf("%-28s success\n", "DeleteAllData"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := &OutputFormatter{Format: "text", Writer: &buf}
			f.WriteStatus(tt.st)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}
