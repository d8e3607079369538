package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fortio.org/safecast"
	"github.com/oklog/ulid/v2"

	"github.com/nixlim/stackview/internal/events"
)

// DefaultBatchSize is the number of events inserted per transaction.
const DefaultBatchSize = 256

// Recorder appends events to a new recording. Events are buffered and
// inserted in batches; Close flushes the remainder.
type Recorder struct {
	ctx       context.Context
	db        *sql.DB
	id        string
	batch     []events.TraceEvent
	batchSize int
	written   int
}

// OpenRecorder opens the database at dbPath and starts a recording labelled
// with label (usually the input path).
func OpenRecorder(ctx context.Context, dbPath, label string, batchSize int) (*Recorder, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}

	id := ulid.Make().String()
	_, err = db.ExecContext(ctx,
		"INSERT INTO recordings (id, source, created_at) VALUES (?, ?, ?)",
		id, label, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating recording: %w", err)
	}

	return &Recorder{
		ctx:       ctx,
		db:        db,
		id:        id,
		batch:     make([]events.TraceEvent, 0, batchSize),
		batchSize: batchSize,
	}, nil
}

// ID returns the recording's ULID.
func (r *Recorder) ID() string { return r.id }

// Written returns how many events have been committed.
func (r *Recorder) Written() int { return r.written }

// Write buffers ev, flushing when the batch is full.
func (r *Recorder) Write(ev events.TraceEvent) error {
	r.batch = append(r.batch, ev)
	if len(r.batch) >= r.batchSize {
		return r.Flush()
	}
	return nil
}

// Flush inserts all buffered events in one transaction.
func (r *Recorder) Flush() error {
	if len(r.batch) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(r.ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(r.ctx,
		"INSERT INTO trace_events (recording_id, name, timestamp_ns, fields) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ev := range r.batch {
		ts, err := safecast.Conv[int64](ev.Timestamp)
		if err != nil {
			return fmt.Errorf("event %s: timestamp %d: %w", ev.Name, ev.Timestamp, err)
		}
		fields, err := events.MarshalFieldsJSON(ev.Fields)
		if err != nil {
			return fmt.Errorf("event %s: %w", ev.Name, err)
		}
		if _, err := stmt.ExecContext(r.ctx, r.id, ev.Name, ts, string(fields)); err != nil {
			return fmt.Errorf("inserting %s: %w", ev.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	r.written += len(r.batch)
	r.batch = r.batch[:0]
	return nil
}

// Close flushes pending events and closes the database.
func (r *Recorder) Close() error {
	flushErr := r.Flush()
	if err := r.db.Close(); err != nil && flushErr == nil {
		return err
	}
	return flushErr
}
