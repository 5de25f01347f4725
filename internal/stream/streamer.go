// Package stream drives prioritized bulk chunk delivery to one client. Chunks
// near the player's interest center go first; chunks ahead of the facing
// direction get a small bonus; entries that sit deferred long enough age into
// better buckets so distant requests are never starved forever.
package stream

import (
	"container/heap"

	"github.com/orbcraft/server/internal/chunk"
	"github.com/orbcraft/server/internal/world"
)

const (
	// agingTicks is how many deferred ticks buy one bucket of priority boost.
	agingTicks = 64
	// facingBonus is subtracted from the bucket of chunks ahead of the
	// player's view direction.
	facingBonus = 1
)

type entry struct {
	id     chunk.ID
	bucket int
	seq    uint64 // insertion order, tie-break
	index  int
}

type chunkHeap []*entry

func (h chunkHeap) Len() int { return len(h) }
func (h chunkHeap) Less(i, j int) bool {
	if h[i].bucket != h[j].bucket {
		return h[i].bucket < h[j].bucket
	}
	return h[i].seq < h[j].seq
}
func (h chunkHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *chunkHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *chunkHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Streamer tracks which chunks one client has, wants, and is receiving.
// Owned by the tick loop goroutine.
type Streamer struct {
	radius     int32 // interest radius in chunks
	maxPending int

	queue   chunkHeap
	queued  map[chunk.ID]*entry
	pending map[chunk.ID]uint32 // enqueued into the send budget, by version
	sent    map[chunk.ID]uint32 // delivered, by version

	nextSeq   uint64
	agedAt    uint64
}

func NewStreamer(radiusChunks int32, maxPending int) *Streamer {
	return &Streamer{
		radius:     radiusChunks,
		maxPending: maxPending,
		queued:     make(map[chunk.ID]*entry),
		pending:    make(map[chunk.ID]uint32),
		sent:       make(map[chunk.ID]uint32),
	}
}

// chunkSpan is the world extent measured in chunks.
func chunkSpan(extent int64) int32 {
	return int32(extent / (chunk.Size * world.Milli))
}

// wrapChunk wraps a chunk coordinate onto [0, span).
func wrapChunk(c, span int32) int32 {
	c %= span
	if c < 0 {
		c += span
	}
	return c
}

// wrapChunkDelta returns the shortest signed chunk distance on the wrap.
func wrapChunkDelta(a, b, span int32) int32 {
	d := a - b
	half := span / 2
	if d > half {
		d -= span
	} else if d < -half {
		d += span
	}
	return d
}

// Refresh scans the interest square around center and queues every chunk the
// client is missing or holds a stale version of. Already queued, pending, or
// up-to-date chunks are skipped.
func (s *Streamer) Refresh(center world.Pos, yaw float32, extent int64, src chunk.Source) {
	span := chunkSpan(extent)
	if span <= 0 {
		return
	}
	ccx := wrapChunk(int32(center.X/(chunk.Size*world.Milli)), span)
	ccz := wrapChunk(int32(center.Z/(chunk.Size*world.Milli)), span)
	fx, fz := world.FacingXZ(yaw)

	for dz := -s.radius; dz <= s.radius; dz++ {
		for dx := -s.radius; dx <= s.radius; dx++ {
			id := chunk.ID{
				X: wrapChunk(ccx+dx, span),
				Z: wrapChunk(ccz+dz, span),
			}
			if _, ok := s.queued[id]; ok {
				continue
			}
			if _, ok := s.pending[id]; ok {
				continue
			}
			v := src.Version(id)
			if s.sent[id] == v {
				continue
			}
			bucket := int(dx*dx + dz*dz)
			if float64(dx)*fx+float64(dz)*fz > 0 {
				bucket -= facingBonus
				if bucket < 0 {
					bucket = 0
				}
			}
			e := &entry{id: id, bucket: bucket, seq: s.nextSeq}
			s.nextSeq++
			s.queued[id] = e
			heap.Push(&s.queue, e)
		}
	}
}

// Age applies the starvation boost: once per agingTicks ticks every queued
// entry moves one bucket closer to the front.
func (s *Streamer) Age(tick uint64) {
	if tick < s.agedAt+agingTicks {
		return
	}
	s.agedAt = tick
	for _, e := range s.queue {
		if e.bucket > 0 {
			e.bucket--
		}
	}
	heap.Init(&s.queue)
}

// Next pops the highest-priority queued chunk, or ok=false when the queue is
// empty or the pending cap is reached.
func (s *Streamer) Next() (chunk.ID, bool) {
	if len(s.pending) >= s.maxPending || s.queue.Len() == 0 {
		return chunk.ID{}, false
	}
	e := heap.Pop(&s.queue).(*entry)
	delete(s.queued, e.id)
	return e.id, true
}

// MarkPending records that a frame for id at version was handed to the send
// budget.
func (s *Streamer) MarkPending(id chunk.ID, version uint32) {
	s.pending[id] = version
}

// MarkSent confirms delivery: the budget actually flushed the frame.
func (s *Streamer) MarkSent(id chunk.ID, version uint32) {
	delete(s.pending, id)
	if s.sent[id] < version {
		s.sent[id] = version
	}
}

// Drop abandons a pending frame without recording delivery. Refresh will
// requeue the chunk if it is still in range.
func (s *Streamer) Drop(id chunk.ID) {
	delete(s.pending, id)
}

// Invalidate forgets any delivery record for id. Used when an edit bumps the
// chunk version so the next Refresh requeues it.
func (s *Streamer) Invalidate(id chunk.ID) {
	delete(s.sent, id)
	delete(s.pending, id)
}

// Sent reports whether the client holds the given version of id.
func (s *Streamer) Sent(id chunk.ID, version uint32) bool {
	return s.sent[id] == version
}

func (s *Streamer) QueueLen() int   { return s.queue.Len() }
func (s *Streamer) PendingLen() int { return len(s.pending) }
