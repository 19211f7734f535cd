package journal

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/fintrack/internal/ir"
)

// createTestJournal opens a journal in a temp dir.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// createTestExecution creates an execution with minimal required fields.
func createTestExecution(id, flowToken, store string, seq int64) ir.Execution {
	return ir.Execution{
		ID:        id,
		FlowToken: flowToken,
		Store:     store,
		Method:    ir.MethodGet,
		Path:      "/accounts",
		Query:     ir.IRObject{},
		Seq:       seq,
	}
}
