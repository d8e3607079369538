package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// followReader reads a file that is still being written. At EOF it blocks
// until the file changes, the poll interval elapses, or ctx is done, then
// retries. It never returns io.EOF.
type followReader struct {
	ctx     context.Context
	f       *os.File
	watcher *fsnotify.Watcher // nil when notifications are unavailable
	poll    time.Duration
}

func newFollowReader(ctx context.Context, f *os.File, poll time.Duration) (*followReader, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	fr := &followReader{ctx: ctx, f: f, poll: poll}

	// Polling still works without notifications, so a watcher failure is
	// not fatal.
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err := watcher.Add(f.Name()); err != nil {
			_ = watcher.Close()
		} else {
			fr.watcher = watcher
		}
	}
	return fr, nil
}

func (r *followReader) Read(p []byte) (int, error) {
	for {
		n, err := r.f.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if err := r.wait(); err != nil {
			return 0, err
		}
		if err := r.rewindIfTruncated(); err != nil {
			return 0, err
		}
	}
}

func (r *followReader) wait() error {
	timer := time.NewTimer(r.poll)
	defer timer.Stop()

	var (
		evs  <-chan fsnotify.Event
		errs <-chan error
	)
	if r.watcher != nil {
		evs, errs = r.watcher.Events, r.watcher.Errors
	}

	for {
		select {
		case <-r.ctx.Done():
			return r.ctx.Err()
		case <-timer.C:
			return nil
		case ev, ok := <-evs:
			if !ok {
				evs = nil
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				return nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return fmt.Errorf("watching %s: %w", r.f.Name(), err)
		}
	}
}

// rewindIfTruncated restarts from the beginning when the file shrank below
// the read offset.
func (r *followReader) rewindIfTruncated() error {
	off, err := r.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	info, err := r.f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < off {
		_, err = r.f.Seek(0, io.SeekStart)
	}
	return err
}

func (r *followReader) Close() error {
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	return r.f.Close()
}
