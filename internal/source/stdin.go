package source

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/muesli/cancelreader"
)

// stdinReader reads standard input until ctx is done. Closing it leaves the
// underlying file open.
type stdinReader struct {
	ctx  context.Context
	cr   cancelreader.CancelReader
	stop func() bool
}

// openStdin wraps f so a blocked Read returns ctx.Err() once ctx is done.
// Regular files cannot be polled; they never block, so they are read as is.
func openStdin(ctx context.Context, f *os.File) (io.Reader, io.Closer) {
	cr, err := cancelreader.NewReader(f)
	if err != nil {
		return f, io.NopCloser(f)
	}
	r := &stdinReader{ctx: ctx, cr: cr}
	r.stop = context.AfterFunc(ctx, func() { cr.Cancel() })
	return r, r
}

func (r *stdinReader) Read(p []byte) (int, error) {
	n, err := r.cr.Read(p)
	if errors.Is(err, cancelreader.ErrCanceled) && r.ctx.Err() != nil {
		return n, r.ctx.Err()
	}
	return n, err
}

func (r *stdinReader) Close() error {
	r.stop()
	return r.cr.Close()
}
