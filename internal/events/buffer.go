package events

import "sync"

// Line is one completed line of stack-view output.
type Line struct {
	Seq  uint64 // 1-based position in the rendered stream
	Text string // rendered text, including any ANSI styling, without newline
}

// RingBuffer is a fixed-capacity, thread-safe ring buffer of rendered lines.
// When the buffer is full, the oldest line is evicted to make room.
// All methods are safe for concurrent use.
type RingBuffer struct {
	mu    sync.RWMutex
	items []Line
	cap   int
	head  int // index of the oldest element
	count int // number of elements currently stored
	seq   uint64
}

// NewRingBuffer creates a new RingBuffer with the given capacity.
// Capacity must be at least 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		items: make([]Line, capacity),
		cap:   capacity,
	}
}

// Add appends a line, assigning it the next sequence number, and returns
// the stored Line. If the buffer is full, the oldest line is overwritten.
func (rb *RingBuffer) Add(text string) Line {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.seq++
	l := Line{Seq: rb.seq, Text: text}

	writePos := (rb.head + rb.count) % rb.cap
	if rb.count == rb.cap {
		// Full; overwrite oldest and advance head.
		rb.items[rb.head] = l
		rb.head = (rb.head + 1) % rb.cap
	} else {
		rb.items[writePos] = l
		rb.count++
	}
	return l
}

// ListAll returns all lines, oldest first.
func (rb *RingBuffer) ListAll() []Line {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.listLocked()
}

// Texts returns the text of every stored line, oldest first.
func (rb *RingBuffer) Texts() []string {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.count == 0 {
		return nil
	}
	out := make([]string, rb.count)
	for i := 0; i < rb.count; i++ {
		out[i] = rb.items[(rb.head+i)%rb.cap].Text
	}
	return out
}

// Recent returns at most limit of the newest lines, oldest first.
func (rb *RingBuffer) Recent(limit int) []Line {
	all := rb.ListAll()
	if limit < 0 || len(all) <= limit {
		return all
	}
	return all[len(all)-limit:]
}

// Len returns the number of lines currently in the buffer.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer) Cap() int {
	return rb.cap
}

// Total returns how many lines were ever added, including evicted ones.
func (rb *RingBuffer) Total() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.seq
}

// listLocked returns all lines in order.
// Caller must hold at least a read lock.
func (rb *RingBuffer) listLocked() []Line {
	if rb.count == 0 {
		return nil
	}
	result := make([]Line, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.items[(rb.head+i)%rb.cap]
	}
	return result
}
