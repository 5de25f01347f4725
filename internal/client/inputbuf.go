package client

import "github.com/orbcraft/server/internal/world"

// InputBuffer is a bounded ring of tick-tagged intents awaiting server
// acknowledgement. When full, the oldest entry is evicted: an input the
// server has not acknowledged after a full buffer of newer ones is lost to
// history anyway.
type InputBuffer struct {
	entries []world.TaggedIntent
	head    int // index of oldest
	size    int
}

func NewInputBuffer(capacity int) *InputBuffer {
	if capacity <= 0 {
		capacity = 128
	}
	return &InputBuffer{entries: make([]world.TaggedIntent, capacity)}
}

func (b *InputBuffer) Len() int { return b.size }
func (b *InputBuffer) Cap() int { return len(b.entries) }

// Push appends an intent, evicting the oldest when full.
func (b *InputBuffer) Push(ti world.TaggedIntent) {
	if b.size == len(b.entries) {
		b.entries[b.head] = ti
		b.head = (b.head + 1) % len(b.entries)
		return
	}
	b.entries[(b.head+b.size)%len(b.entries)] = ti
	b.size++
}

// DiscardThrough drops every intent with tick <= acked. Intents arrive in
// ascending tick order, so this pops from the front.
func (b *InputBuffer) DiscardThrough(acked uint64) {
	for b.size > 0 && b.entries[b.head].Tick <= acked {
		b.entries[b.head] = world.TaggedIntent{}
		b.head = (b.head + 1) % len(b.entries)
		b.size--
	}
}

// Each visits buffered intents oldest first.
func (b *InputBuffer) Each(fn func(world.TaggedIntent)) {
	for i := 0; i < b.size; i++ {
		fn(b.entries[(b.head+i)%len(b.entries)])
	}
}

// Oldest returns the oldest buffered tick, or ok=false when empty.
func (b *InputBuffer) Oldest() (uint64, bool) {
	if b.size == 0 {
		return 0, false
	}
	return b.entries[b.head].Tick, true
}
