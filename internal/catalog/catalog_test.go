package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/ir"
)

func compileString(t *testing.T, src string) (*Catalog, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	return Compile(v)
}

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, ir.CatalogVersion, c.Version)
	assert.Len(t, c.Endpoints, 24)
	assert.Equal(t, "GetCategories", c.Endpoints[0].Name)
	assert.Equal(t, "DeleteAllData", c.Endpoints[len(c.Endpoints)-1].Name)
}

func TestDefault_Lookup(t *testing.T) {
	c := MustDefault()

	ep, err := c.Lookup("DeleteTransaction")
	require.NoError(t, err)
	assert.Equal(t, ir.Endpoint{
		Name:      "DeleteTransaction",
		Method:    ir.MethodDelete,
		Path:      "/transactions",
		NeedsID:   true,
		Doc:       "Delete a transaction.",
		Publishes: []ir.Topic{"transactions", "budget"},
	}, ep)

	_, err = c.Lookup("GetUnicorns")
	assert.ErrorIs(t, err, ErrUnknownEndpoint)
}

func TestDefault_Wiring(t *testing.T) {
	c := MustDefault()

	reset, err := c.Lookup("DeleteAllData")
	require.NoError(t, err)
	assert.ElementsMatch(t, c.Topics(), reset.Publishes, "reset publishes every topic")

	assert.Equal(t, []ir.Topic{"accounts", "budget", "categories", "transactions", "transfers"}, c.Topics())

	subscribers := map[string][]ir.Topic{}
	for _, ep := range c.Endpoints {
		if len(ep.Subscribes) > 0 {
			subscribers[ep.Name] = ep.Subscribes
		}
	}
	assert.Equal(t, map[string][]ir.Topic{
		"GetCategories":    {"categories"},
		"GetAccounts":      {"accounts"},
		"GetTransactions":  {"transactions"},
		"GetBudgetSummary": {"budget"},
		"GetTransfers":     {"transfers"},
	}, subscribers)
}

func TestDefault_Edges(t *testing.T) {
	c := MustDefault()
	edges := c.Edges()

	assert.Contains(t, edges, ir.Edge{Source: "CreateAccount", Topic: "accounts", Subscriber: "GetAccounts"})
	assert.Contains(t, edges, ir.Edge{Source: "CreateAccount", Topic: "budget", Subscriber: "GetBudgetSummary"})
	assert.Contains(t, edges, ir.Edge{Source: "CreateTransfer", Topic: "transfers", Subscriber: "GetTransfers"})
	assert.Contains(t, edges, ir.Edge{Source: "DeleteAllData", Topic: "categories", Subscriber: "GetCategories"})
	assert.Empty(t, bus.AnalyzeCycles(edges))

	for _, e := range edges {
		assert.NotEqual(t, "GetExpenses", e.Subscriber, "derived reads are not wired")
	}
}

func TestDefault_Reads(t *testing.T) {
	reads := MustDefault().Reads()
	for _, ep := range reads {
		assert.Equal(t, ir.MethodGet, ep.Method)
	}
	assert.Len(t, reads, 13)
}

func TestCompile_Minimal(t *testing.T) {
	c, err := compileString(t, `
endpoint: Ping: {
	method: "GET"
	path:   "/ping"
}
`)
	require.NoError(t, err)
	require.Len(t, c.Endpoints, 1)
	assert.Equal(t, ir.Endpoint{Name: "Ping", Method: ir.MethodGet, Path: "/ping"}, c.Endpoints[0])
	assert.Equal(t, []string{"Ping"}, c.Names())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{
			name:    "unknown method",
			src:     `endpoint: X: {method: "FETCH", path: "/x"}`,
			wantMsg: "",
		},
		{
			name:    "path without slash",
			src:     `endpoint: X: {method: "GET", path: "x"}`,
			wantMsg: "",
		},
		{
			name:    "unknown field",
			src:     `endpoint: X: {method: "GET", path: "/x", cache: true}`,
			wantMsg: "",
		},
		{
			name:    "read publishes",
			src:     `endpoint: X: {method: "GET", path: "/x", publishes: ["a"]}`,
			wantMsg: "GET endpoints cannot publish",
		},
		{
			name:    "write subscribes",
			src:     `endpoint: X: {method: "POST", path: "/x", subscribes: ["a"]}`,
			wantMsg: "POST endpoints cannot subscribe",
		},
		{
			name:    "duplicate topic",
			src:     `endpoint: X: {method: "POST", path: "/x", publishes: ["a", "a"]}`,
			wantMsg: `duplicate topic "a"`,
		},
		{
			name:    "version mismatch",
			src:     "version: \"2\"\nendpoint: X: {method: \"GET\", path: \"/x\"}",
			wantMsg: "unsupported catalog version",
		},
		{
			name:    "no endpoints",
			src:     `version: "1"`,
			wantMsg: "at least one endpoint is required",
		},
		{
			name:    "missing path",
			src:     `endpoint: X: {method: "GET"}`,
			wantMsg: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			require.Error(t, err)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestCompile_JoinsEndpointErrors(t *testing.T) {
	_, err := compileString(t, `
endpoint: A: {method: "GET", path: "/a", publishes: ["t"]}
endpoint: B: {method: "DELETE", path: "/b", subscribes: ["t"]}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint.A.publishes")
	assert.Contains(t, err.Error(), "endpoint.B.subscribes")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	src := `package catalog

endpoint: {
	GetNotes: {
		method:     "GET"
		path:       "/notes"
		subscribes: ["notes"]
	}
	CreateNote: {
		method:    "POST"
		path:      "/notes"
		publishes: ["notes"]
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.cue"), []byte(src), 0o644))

	c, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"GetNotes", "CreateNote"}, c.Names())
	assert.Equal(t, []ir.Edge{{Source: "CreateNote", Topic: "notes", Subscriber: "GetNotes"}}, c.Edges())
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLoadDir_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.cue")
	require.NoError(t, os.WriteFile(file, []byte("package catalog"), 0o644))

	_, err := LoadDir(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestCompileError_Format(t *testing.T) {
	err := &CompileError{Field: "endpoint.X.path", Message: "path is required"}
	assert.Equal(t, "endpoint.X.path: path is required", err.Error())
}
