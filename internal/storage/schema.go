// Package storage keeps recorded traces in SQLite so they can be replayed
// through the stack view later.
package storage

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Applied to every pooled connection through the DSN, so they hold for
// readers and the recorder alike.
var connPragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// migration upgrades the schema by one version inside tx.
type migration struct {
	name string
	up   func(tx *sql.Tx) error
}

// migrations[i] takes a database from version i to i+1.
var migrations = []migration{
	{"create recordings and trace_events", migrateV0ToV1},
}

func schemaVersion() int { return len(migrations) }

// OpenDB opens (creating if needed) the trace database at dbPath and brings
// its schema up to date.
func OpenDB(dbPath string) (*sql.DB, error) {
	dbPath = ExpandTilde(dbPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}

	if err := migrate(db, dbPath); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB, dbPath string) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("creating schema_version: %w", err)
	}

	var version int
	err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("reading schema version: %w", err)
	}

	if version > schemaVersion() {
		return fmt.Errorf(
			"trace database schema version %d is newer than this stackview supports (max: %d); upgrade stackview or record into a new file instead of %s",
			version, schemaVersion(), dbPath,
		)
	}

	for v := version; v < schemaVersion(); v++ {
		if err := step(db, v, migrations[v]); err != nil {
			return err
		}
	}
	return nil
}

// step runs one migration and records the new version in the same
// transaction.
func step(db *sql.DB, from int, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration v%d: %w", from, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := m.up(tx); err != nil {
		return fmt.Errorf("migration v%d→v%d (%s): %w", from, from+1, m.name, err)
	}
	if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
		return fmt.Errorf("migration v%d: clearing version: %w", from, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, from+1); err != nil {
		return fmt.Errorf("migration v%d: recording version: %w", from, err)
	}
	return tx.Commit()
}

func migrateV0ToV1(tx *sql.Tx) error {
	for _, stmt := range []string{
		`CREATE TABLE recordings (
			id         TEXT PRIMARY KEY,
			source     TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE trace_events (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			recording_id TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
			name         TEXT NOT NULL,
			timestamp_ns INTEGER NOT NULL,
			fields       TEXT
		)`,
		`CREATE INDEX idx_trace_events_recording ON trace_events(recording_id, id)`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
