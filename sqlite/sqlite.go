package sqlite

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Open opens the wallet database at path and applies the given schema
// statements. The database is configured for a single writer with WAL
// journaling so concurrent readers do not block session mutations.
func Open(path string, schemas ...string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Serialize writes through one connection, the per-topic locks above
	// this layer rely on it.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, err
	}

	var mode string
	if err = db.QueryRow("PRAGMA journal_mode=WAL").Scan(&mode); err != nil {
		_ = db.Close()
		return nil, err
	}

	for _, schema := range schemas {
		if _, err = db.Exec(schema); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "failed to apply schema")
		}
	}
	return db, nil
}

// OpenInMemory returns a fresh in-memory database, used by tests.
func OpenInMemory(schemas ...string) (*sql.DB, error) {
	return Open(":memory:", schemas...)
}
