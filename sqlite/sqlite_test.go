package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAppliesSchemas(t *testing.T) {
	db, err := OpenInMemory(
		`CREATE TABLE a (id INTEGER PRIMARY KEY);`,
		`CREATE TABLE b (id INTEGER PRIMARY KEY);`,
	)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO a (id) VALUES (1)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO b (id) VALUES (1)`)
	require.NoError(t, err)

	var enabled int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&enabled))
	require.Equal(t, 1, enabled)
}

func TestOpenRejectsBrokenSchema(t *testing.T) {
	_, err := OpenInMemory(`CREATE TABLE broken (`)
	require.Error(t, err)
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")
	db, err := Open(path, `CREATE TABLE IF NOT EXISTS a (id INTEGER PRIMARY KEY);`)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)
}
