// Package render turns classified trace events into an indented,
// time-annotated call-stack view.
package render

import (
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/nixlim/stackview/internal/debuglog"
	"github.com/nixlim/stackview/internal/events"
)

const (
	// DefaultDeltaWidth is the column width the delta prefix is right-aligned to.
	DefaultDeltaWidth = 26

	// DefaultUnknownFunction replaces native function names that debug info
	// could not resolve.
	DefaultUnknownFunction = "???"

	indentUnit = "  "

	// nativeFuncField holds "<symbol>+<offset-ish suffix>"; the last
	// nativeFuncTrim characters are dropped.
	nativeFuncField = "debug_info.func"
	nativeFuncTrim  = 2

	interpretedNameField = "co_name"
	interpretedFileField = "co_filename"
	interpretedLineField = "line_no"

	syscallReturnField = "ret"
	logMessageField    = "msg"
)

// flusher is implemented by buffered writers such as *bufio.Writer.
type flusher interface {
	Flush() error
}

// Renderer writes the stack view for one stream to a single writer.
// It holds no stream state of its own; that lives in State.
type Renderer struct {
	w           io.Writer
	styles      Styles
	loc         *time.Location
	deltaWidth  int
	showReturns bool
	unknownFunc string
	log         debuglog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithStyles sets the styling palette. The default is PlainStyles.
func WithStyles(s Styles) Option {
	return func(r *Renderer) { r.styles = s }
}

// WithLocation sets the time zone for the absolute first-event timestamp.
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithDeltaWidth sets the display width deltas are right-aligned to.
func WithDeltaWidth(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.deltaWidth = n
		}
	}
}

// WithShowReturns renders native and interpreted exits as their own
// time-stamped lines instead of closing the scope silently.
func WithShowReturns(show bool) Option {
	return func(r *Renderer) { r.showReturns = show }
}

// WithUnknownFunction sets the placeholder for unresolved native symbols.
func WithUnknownFunction(s string) Option {
	return func(r *Renderer) {
		if s != "" {
			r.unknownFunc = s
		}
	}
}

// WithLogger routes anomalies (timestamp regressions) to l.
func WithLogger(l debuglog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRenderer creates a Renderer writing to w.
func NewRenderer(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		w:           w,
		styles:      PlainStyles(),
		loc:         time.Local,
		deltaWidth:  DefaultDeltaWidth,
		unknownFunc: DefaultUnknownFunction,
		log:         debuglog.NopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render writes the output for one classified event and updates st. The
// writer is flushed before returning so that output interleaves correctly
// with anything else writing to the same stream.
func (r *Renderer) Render(ev events.TraceEvent, kind events.Kind, st *State) error {
	var b strings.Builder

	switch kind {
	case events.KindNativeEntry:
		r.openScope(&b, ev, st)
		b.WriteString(r.styles.Native.Render(r.nativeName(ev)))
		b.WriteString("()\n")

	case events.KindInterpretedEntry:
		r.openScope(&b, ev, st)
		b.WriteString(r.styles.Interpreted.Render(ev.String(interpretedNameField)))
		b.WriteString("() [")
		b.WriteString(baseName(ev.String(interpretedFileField)))
		b.WriteString(":")
		b.WriteString(ev.String(interpretedLineField))
		b.WriteString("]\n")

	case events.KindSyscallEntry:
		r.openScope(&b, ev, st)
		b.WriteString(r.styles.Syscall.Render(syscallName(ev.Name)))
		b.WriteString("(")
		for i, f := range ev.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			b.WriteString(" = ")
			b.WriteString(r.styles.Value.Render(events.FormatValue(f.Value)))
		}
		// The line stays open until the matching exit appends the result.
		b.WriteString(")")

	case events.KindLogStatement:
		r.openScope(&b, ev, st)
		b.WriteString(r.styles.Log.Render(ev.String(logMessageField)))
		b.WriteString("\n")
		st.Exit()

	case events.KindNativeExit, events.KindInterpretedExit:
		if !st.Started() {
			return nil
		}
		st.Exit()
		if r.showReturns {
			r.writePrefix(&b, ev, st)
			b.WriteString("\n")
		}

	case events.KindSyscallExit:
		if !st.Started() {
			return nil
		}
		b.WriteString(r.syscallReturn(ev))
		b.WriteString("\n")
		st.Exit()

	default:
		return nil
	}

	return r.write(b.String())
}

// openScope pushes a scope and writes the time prefix plus indentation at
// the new depth.
func (r *Renderer) openScope(b *strings.Builder, ev events.TraceEvent, st *State) {
	st.Enter()
	r.writePrefix(b, ev, st)
}

// writePrefix writes the absolute time (first event) or the delta since the
// previous rendered event, followed by the indentation for st.Indent, and
// advances the last rendered timestamp.
func (r *Renderer) writePrefix(b *strings.Builder, ev events.TraceEvent, st *State) {
	last, seen := st.LastTimestamp()
	if !seen {
		b.WriteString(FormatAbsolute(ev.Timestamp, r.loc))
	} else {
		d := ComputeDelta(last, ev.Timestamp)
		if d.Regressed {
			r.log.LogRegression(ev, last)
		}
		text := runewidth.FillLeft(d.String(), r.deltaWidth)
		if style, ok := r.styles.delta(d.Severity); ok {
			text = style.Render(text)
		}
		b.WriteString(text)
	}
	b.WriteString(strings.Repeat(indentUnit, int(st.Indent)))
	st.advance(ev.Timestamp)
}

func (r *Renderer) nativeName(ev events.TraceEvent) string {
	name := ev.String(nativeFuncField)
	for i := 0; i < nativeFuncTrim && name != ""; i++ {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	if name == "" {
		return r.unknownFunc
	}
	return name
}

func (r *Renderer) syscallReturn(ev events.TraceEvent) string {
	v, ok := ev.Field(syscallReturnField)
	if !ok {
		return r.styles.Return.Render(" = ?")
	}
	text := " = " + events.FormatValue(v)
	if n, ok := events.AsInt64(v); ok && n < 0 {
		return r.styles.ReturnError.Render(text)
	}
	return r.styles.Return.Render(text)
}

func (r *Renderer) write(s string) error {
	if s != "" {
		if _, err := io.WriteString(r.w, s); err != nil {
			return err
		}
	}
	if f, ok := r.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// syscallName strips the 14-byte "syscall_entry_" namespace prefix.
func syscallName(family string) string {
	if len(family) < len(events.SyscallEntryPrefix) {
		return family
	}
	return family[len(events.SyscallEntryPrefix):]
}

// baseName returns the final slash-separated component of p.
func baseName(p string) string {
	return p[strings.LastIndex(p, "/")+1:]
}
