package render

// State is the renderer's mutable view of the stream: the current scope
// depth and the timestamp of the last rendered event. It is owned by the
// single loop consuming the stream and is never reset mid-stream.
type State struct {
	// Indent is the current nesting depth. It never goes below zero.
	Indent uint

	last uint64
	seen bool
}

// NewState returns the state for a stream that has not rendered anything.
func NewState() *State {
	return &State{}
}

// Enter opens a scope and returns the new depth.
func (s *State) Enter() uint {
	s.Indent++
	return s.Indent
}

// Exit closes a scope. Exiting at depth zero is a no-op so that exits for
// calls entered before the stream started are tolerated.
func (s *State) Exit() {
	if s.Indent > 0 {
		s.Indent--
	}
}

// LastTimestamp returns the timestamp of the last rendered event and
// whether any event has been rendered yet.
func (s *State) LastTimestamp() (uint64, bool) {
	return s.last, s.seen
}

// Started reports whether at least one event has been rendered.
func (s *State) Started() bool {
	return s.seen
}

// advance records ts as the last rendered timestamp. Called exactly once
// per rendered time prefix.
func (s *State) advance(ts uint64) {
	s.last = ts
	s.seen = true
}
