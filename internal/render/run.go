package render

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nixlim/stackview/internal/events"
)

// Source yields trace events one at a time. Next returns io.EOF once the
// stream is exhausted.
type Source interface {
	Next(ctx context.Context) (events.TraceEvent, error)
}

// Stats counts what a Run consumed.
type Stats struct {
	Events  int // records pulled from the source
	Ignored int // records classified as KindIgnored
}

// Run pulls events from src until it is exhausted or ctx is cancelled,
// rendering each one synchronously before pulling the next. Exhaustion is
// not an error.
func Run(ctx context.Context, src Source, cls *events.Classifier, r *Renderer, st *State) (Stats, error) {
	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("reading trace: %w", err)
		}
		stats.Events++

		kind := cls.Classify(ev.Name)
		if kind == events.KindIgnored {
			stats.Ignored++
			continue
		}
		if err := r.Render(ev, kind, st); err != nil {
			return stats, fmt.Errorf("rendering %s: %w", ev.Name, err)
		}
	}
}

// SliceSource replays a fixed list of events.
type SliceSource struct {
	events []events.TraceEvent
	pos    int
}

// NewSliceSource returns a Source over evs.
func NewSliceSource(evs ...events.TraceEvent) *SliceSource {
	return &SliceSource{events: evs}
}

// Next returns the next event or io.EOF.
func (s *SliceSource) Next(context.Context) (events.TraceEvent, error) {
	if s.pos >= len(s.events) {
		return events.TraceEvent{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}
