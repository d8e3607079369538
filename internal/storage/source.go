package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"fortio.org/safecast"

	"github.com/nixlim/stackview/internal/events"
)

const defaultPageSize = 512

// Source replays recorded events in insertion order, one page at a time.
type Source struct {
	db        *sql.DB
	recording string // empty replays every recording
	pageSize  int
	lastID    int64
	page      []events.TraceEvent
	done      bool
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithRecording restricts replay to one recording id.
func WithRecording(id string) SourceOption {
	return func(s *Source) { s.recording = id }
}

// WithPageSize sets how many rows each query fetches.
func WithPageSize(n int) SourceOption {
	return func(s *Source) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// OpenSource opens the existing database at dbPath for replay.
func OpenSource(ctx context.Context, dbPath string, opts ...SourceOption) (*Source, error) {
	db, err := openExisting(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening trace database: %w", err)
	}
	s := &Source{db: db, pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(s)
	}
	if s.recording != "" {
		var n int
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM recordings WHERE id = ?", s.recording).Scan(&n)
		if err == nil && n == 0 {
			err = fmt.Errorf("recording %q not found in %s", s.recording, dbPath)
		}
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Next returns the next recorded event or io.EOF.
func (s *Source) Next(ctx context.Context) (events.TraceEvent, error) {
	if len(s.page) == 0 && !s.done {
		if err := s.fetch(ctx); err != nil {
			return events.TraceEvent{}, err
		}
	}
	if len(s.page) == 0 {
		return events.TraceEvent{}, io.EOF
	}
	ev := s.page[0]
	s.page = s.page[1:]
	return ev, nil
}

func (s *Source) fetch(ctx context.Context) error {
	query := "SELECT id, name, timestamp_ns, fields FROM trace_events WHERE id > ? ORDER BY id LIMIT ?"
	args := []any{s.lastID, s.pageSize}
	if s.recording != "" {
		query = "SELECT id, name, timestamp_ns, fields FROM trace_events WHERE id > ? AND recording_id = ? ORDER BY id LIMIT ?"
		args = []any{s.lastID, s.recording, s.pageSize}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying trace events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	n := 0
	for rows.Next() {
		var (
			id     int64
			name   string
			ts     int64
			fields sql.NullString
		)
		if err := rows.Scan(&id, &name, &ts, &fields); err != nil {
			return fmt.Errorf("scanning trace event: %w", err)
		}
		n++
		s.lastID = id

		uts, err := safecast.Conv[uint64](ts)
		if err != nil {
			return fmt.Errorf("trace event %d: timestamp %d: %w", id, ts, err)
		}
		parsed, err := events.UnmarshalFieldsJSON([]byte(fields.String))
		if err != nil {
			return fmt.Errorf("trace event %d: fields: %w", id, err)
		}
		s.page = append(s.page, events.TraceEvent{Name: name, Timestamp: uts, Fields: parsed})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading trace events: %w", err)
	}
	if n < s.pageSize {
		s.done = true
	}
	return nil
}

// openExisting is OpenDB for readers: a missing file is an error rather
// than a new empty database.
func openExisting(dbPath string) (*sql.DB, error) {
	if _, err := os.Stat(ExpandTilde(dbPath)); err != nil {
		return nil, fmt.Errorf("opening trace database: %w", err)
	}
	return OpenDB(dbPath)
}

// Close releases the database.
func (s *Source) Close() error {
	return s.db.Close()
}

// Recording describes one recorded trace in the database.
type Recording struct {
	ID        string
	Source    string
	CreatedAt string
	Events    int64
}

// ListRecordings returns every recording in the database at dbPath, oldest
// first.
func ListRecordings(ctx context.Context, dbPath string) ([]Recording, error) {
	db, err := openExisting(dbPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, `
		SELECT r.id, r.source, r.created_at, COUNT(e.id)
		FROM recordings r
		LEFT JOIN trace_events e ON e.recording_id = r.id
		GROUP BY r.id
		ORDER BY r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying recordings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Recording
	for rows.Next() {
		var r Recording
		if err := rows.Scan(&r.ID, &r.Source, &r.CreatedAt, &r.Events); err != nil {
			return nil, fmt.Errorf("scanning recording: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
