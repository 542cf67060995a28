// Package snapshot publishes immutable values from one goroutine to another
// without locks.
package snapshot

import "sync/atomic"

// Handoff carries the latest published value from a single writer to its
// readers. Publish replaces the value atomically, so a reader sees either
// the previous value or the new one in full and never waits on the writer.
//
// Values must not be modified after they are published.
type Handoff[T any] struct {
	value atomic.Pointer[T]
	seq   atomic.Uint64
}

// New returns a Handoff holding initial.
func New[T any](initial *T) *Handoff[T] {
	h := &Handoff[T]{}
	h.value.Store(initial)
	return h
}

// Publish makes v the current value.
func (h *Handoff[T]) Publish(v *T) {
	h.value.Store(v)
	h.seq.Add(1)
}

// Load returns the current value.
func (h *Handoff[T]) Load() *T {
	return h.value.Load()
}

// Sequence returns how many values have been published. Readers compare it
// between ticks to tell whether anything changed.
func (h *Handoff[T]) Sequence() uint64 {
	return h.seq.Load()
}

// LoadWithSequence returns the current value together with its sequence
// number. The value may be newer than the number but never older.
func (h *Handoff[T]) LoadWithSequence() (*T, uint64) {
	seq := h.seq.Load()
	return h.value.Load(), seq
}
