package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/oklog/ulid/v2"

	"github.com/nixlim/stackview/internal/events"
)

func sampleEvents() []events.TraceEvent {
	return []events.TraceEvent{
		{Name: "python:function__entry", Timestamp: 1_000, Fields: []events.Field{
			{Name: "co_name", Value: "main"},
			{Name: "co_filename", Value: "/srv/app/main.py"},
			{Name: "line_no", Value: int64(12)},
		}},
		{Name: "syscall_entry_openat", Timestamp: 2_000, Fields: []events.Field{
			{Name: "dfd", Value: int64(-100)},
			{Name: "filename", Value: "/etc/hosts"},
		}},
		{Name: "syscall_exit_openat", Timestamp: 3_000, Fields: []events.Field{
			{Name: "ret", Value: int64(3)},
		}},
		{Name: "lttng_ust_cyg_profile_fast:func_entry", Timestamp: 4_000, Fields: []events.Field{
			{Name: "debug_info", Value: []events.Field{{Name: "func", Value: "parse+0"}}},
		}},
		{Name: "python:function__return", Timestamp: 5_000},
	}
}

func record(t *testing.T, dbPath, label string, evs []events.TraceEvent, batchSize int) string {
	t.Helper()
	rec, err := OpenRecorder(context.Background(), dbPath, label, batchSize)
	if err != nil {
		t.Fatalf("OpenRecorder: %v", err)
	}
	for _, ev := range evs {
		if err := rec.Write(ev); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if rec.Written() != len(evs) {
		t.Errorf("Written() = %d, want %d", rec.Written(), len(evs))
	}
	return rec.ID()
}

func drain(t *testing.T, src *Source) []events.TraceEvent {
	t.Helper()
	var out []events.TraceEvent
	for {
		ev, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, ev)
	}
}

func TestRecorder_RoundTripAcrossPages(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "traces.db")
	want := sampleEvents()

	id := record(t, dbPath, "trace.jsonl", want, 2)
	if _, err := ulid.Parse(id); err != nil {
		t.Errorf("recording id %q is not a ULID: %v", id, err)
	}

	src, err := OpenSource(context.Background(), dbPath, WithPageSize(2))
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer func() { _ = src.Close() }()

	got := drain(t, src)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("replayed events mismatch (-want +got):\n%s", diff)
	}
}

func TestSource_FilterByRecording(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "traces.db")
	evs := sampleEvents()

	first := record(t, dbPath, "a.jsonl", evs[:2], 0)
	second := record(t, dbPath, "b.jsonl", evs[2:], 0)

	src, err := OpenSource(context.Background(), dbPath, WithRecording(second))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = src.Close() }()

	got := drain(t, src)
	if diff := cmp.Diff(evs[2:], got); diff != "" {
		t.Errorf("recording %s mismatch (-want +got):\n%s", second, diff)
	}

	recs, err := ListRecordings(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("ListRecordings: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 recordings, got %d", len(recs))
	}
	if recs[0].ID != first || recs[0].Source != "a.jsonl" || recs[0].Events != 2 {
		t.Errorf("first recording = %+v", recs[0])
	}
	if recs[1].ID != second || recs[1].Events != 3 {
		t.Errorf("second recording = %+v", recs[1])
	}
}

func TestSource_UnknownRecording(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "traces.db")
	record(t, dbPath, "a.jsonl", sampleEvents(), 0)

	_, err := OpenSource(context.Background(), dbPath, WithRecording("01NOSUCHRECORDING"))
	if err == nil {
		t.Fatal("expected an error for an unknown recording")
	}
	if !strings.Contains(err.Error(), "01NOSUCHRECORDING") {
		t.Errorf("error %q does not name the recording", err)
	}
}

func TestSource_EmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	src, err := OpenSource(context.Background(), dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = src.Close() }()

	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestSource_MissingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing.db")
	if _, err := OpenSource(context.Background(), dbPath); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
	if _, err := ListRecordings(context.Background(), dbPath); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ListRecordings: expected fs.ErrNotExist, got %v", err)
	}
	if _, err := os.Stat(dbPath); !errors.Is(err, fs.ErrNotExist) {
		t.Error("replaying a missing database must not create it")
	}
}

func TestRecorder_RejectsTimestampOverflow(t *testing.T) {
	rec, err := OpenRecorder(context.Background(), filepath.Join(t.TempDir(), "t.db"), "x", 1)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = rec.db.Close() }()

	err = rec.Write(events.TraceEvent{Name: "x", Timestamp: math.MaxUint64})
	if err == nil {
		t.Fatal("expected an error for a timestamp beyond int64")
	}
	if rec.Written() != 0 {
		t.Errorf("Written() = %d, want 0", rec.Written())
	}
}
