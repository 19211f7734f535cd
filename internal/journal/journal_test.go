package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	for i := 0; i < 3; i++ {
		j, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		j.Close()
	}

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	for _, table := range []string{"executions", "settlements", "firings"} {
		var name string
		err := j.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/journal.db")
	assert.Error(t, err)
}

func TestOpen_Pragmas(t *testing.T) {
	j := createTestJournal(t)

	var mode string
	require.NoError(t, j.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, j.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var timeout int
	require.NoError(t, j.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestOpen_SchemaVersion(t *testing.T) {
	j := createTestJournal(t)

	v, err := j.schemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, v)

	var name string
	err = j.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_settlements_outcome'",
	).Scan(&name)
	assert.NoError(t, err)
}

func TestClose_NilDB(t *testing.T) {
	var j Journal
	assert.NoError(t, j.Close())
}
