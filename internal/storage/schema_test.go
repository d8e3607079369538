package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "traces.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, dbPath
}

func TestOpenDB_FreshSchema(t *testing.T) {
	db, _ := openTestDB(t)

	var version int
	if err := db.QueryRow("SELECT version FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("reading schema_version: %v", err)
	}
	if version != schemaVersion() {
		t.Errorf("schema version = %d, want %d", version, schemaVersion())
	}

	for _, table := range []string{"recordings", "trace_events"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q: %v", table, err)
		}
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %s, want wal", mode)
	}
}

func TestOpenDB_ReopenKeepsData(t *testing.T) {
	db, dbPath := openTestDB(t)
	if _, err := db.Exec("INSERT INTO recordings (id, source, created_at) VALUES ('r1', 'trace.jsonl', '2026-01-01T00:00:00Z')"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	db2, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = db2.Close() }()

	var rows int
	if err := db2.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("schema_version rows = %d, want 1", rows)
	}
	var source string
	if err := db2.QueryRow("SELECT source FROM recordings WHERE id = 'r1'").Scan(&source); err != nil {
		t.Errorf("recording lost on reopen: %v", err)
	}
}

func TestOpenDB_DeleteCascades(t *testing.T) {
	db, _ := openTestDB(t)
	stmts := []string{
		"INSERT INTO recordings (id, source, created_at) VALUES ('r1', 'a', 'now')",
		"INSERT INTO trace_events (recording_id, name, timestamp_ns) VALUES ('r1', 'x', 1)",
		"DELETE FROM recordings WHERE id = 'r1'",
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM trace_events").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("events of a deleted recording should be removed, %d left", n)
	}
}

func TestOpenDB_CreatesParentDirs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "a", "b", "traces.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestOpenDB_RefusesNewerSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "traces.db")
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{
		"CREATE TABLE schema_version (version INTEGER NOT NULL)",
		"INSERT INTO schema_version (version) VALUES (999)",
	} {
		if _, err := raw.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	_ = raw.Close()

	_, err = OpenDB(dbPath)
	if err == nil {
		t.Fatal("expected OpenDB to refuse a newer schema")
	}
	for _, want := range []string{"999", "newer", "upgrade stackview", dbPath} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := map[string]string{
		"~/traces.db": filepath.Join(home, "traces.db"),
		"/tmp/x.db":   "/tmp/x.db",
		"~user/x.db":  "~user/x.db",
		"relative.db": "relative.db",
	}
	for in, want := range tests {
		if got := ExpandTilde(in); got != want {
			t.Errorf("ExpandTilde(%q) = %q, want %q", in, got, want)
		}
	}
}
