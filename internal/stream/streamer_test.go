package stream

import (
	"testing"

	"github.com/orbcraft/server/internal/chunk"
	"github.com/orbcraft/server/internal/world"
)

// stubSource serves fixed-version chunks without generating terrain.
type stubSource struct {
	versions map[chunk.ID]uint32
}

func (s *stubSource) Version(id chunk.ID) uint32 {
	if v, ok := s.versions[id]; ok {
		return v
	}
	return 1
}

func (s *stubSource) Load(id chunk.ID) ([]byte, uint32, bool) {
	return make([]byte, 32), s.Version(id), true
}

// chunkCenter returns a world position in the middle of chunk (cx, cz).
func chunkCenter(cx, cz int32) world.Pos {
	return world.Pos{
		X: int64(cx)*chunk.Size*world.Milli + 8*world.Milli,
		Z: int64(cz)*chunk.Size*world.Milli + 8*world.Milli,
	}
}

// spanExtent builds a world extent in milliunits holding span chunks per axis.
func spanExtent(span int64) int64 {
	return span * chunk.Size * world.Milli
}

func TestNextOrdersByDistanceAndFacing(t *testing.T) {
	src := &stubSource{}
	st := NewStreamer(1, 64)
	extent := spanExtent(64)

	// Yaw 0 faces +Z: the chunk straight ahead gets the facing bonus.
	st.Refresh(chunkCenter(32, 32), 0, extent, src)
	if st.QueueLen() != 9 {
		t.Fatalf("expected 9 queued chunks, got %d", st.QueueLen())
	}

	first, ok := st.Next()
	if !ok || first != (chunk.ID{X: 32, Z: 32}) {
		t.Fatalf("expected the standing chunk first, got %v ok=%v", first, ok)
	}
	second, ok := st.Next()
	if !ok || second != (chunk.ID{X: 32, Z: 33}) {
		t.Fatalf("expected the chunk ahead second, got %v ok=%v", second, ok)
	}

	// The last two out are the diagonals behind the view direction.
	var rest []chunk.ID
	for {
		id, ok := st.Next()
		if !ok {
			break
		}
		rest = append(rest, id)
	}
	if len(rest) != 7 {
		t.Fatalf("expected 7 remaining chunks, got %d", len(rest))
	}
	behind := map[chunk.ID]bool{
		{X: 31, Z: 31}: true,
		{X: 33, Z: 31}: true,
	}
	if !behind[rest[5]] || !behind[rest[6]] {
		t.Fatalf("expected behind-diagonals last, got %v, %v", rest[5], rest[6])
	}
}

func TestNextRespectsPendingCap(t *testing.T) {
	src := &stubSource{}
	st := NewStreamer(1, 2)
	extent := spanExtent(64)
	st.Refresh(chunkCenter(32, 32), 0, extent, src)

	a, _ := st.Next()
	st.MarkPending(a, 1)
	b, _ := st.Next()
	st.MarkPending(b, 1)

	if _, ok := st.Next(); ok {
		t.Fatal("expected no chunk handed out at the pending cap")
	}
	st.MarkSent(a, 1)
	if _, ok := st.Next(); !ok {
		t.Fatal("expected a chunk once a pending slot freed up")
	}
}

func TestRefreshSkipsDeliveredChunks(t *testing.T) {
	src := &stubSource{}
	st := NewStreamer(1, 64)
	extent := spanExtent(64)
	st.Refresh(chunkCenter(32, 32), 0, extent, src)

	for {
		id, ok := st.Next()
		if !ok {
			break
		}
		st.MarkPending(id, 1)
		st.MarkSent(id, 1)
	}

	st.Refresh(chunkCenter(32, 32), 0, extent, src)
	if st.QueueLen() != 0 {
		t.Fatalf("expected nothing requeued for delivered chunks, got %d", st.QueueLen())
	}
}

func TestInvalidateRequeuesOnNextRefresh(t *testing.T) {
	src := &stubSource{}
	st := NewStreamer(0, 64)
	extent := spanExtent(64)
	center := chunk.ID{X: 32, Z: 32}

	st.Refresh(chunkCenter(32, 32), 0, extent, src)
	id, _ := st.Next()
	st.MarkPending(id, 1)
	st.MarkSent(id, 1)
	if !st.Sent(center, 1) {
		t.Fatal("expected chunk recorded as delivered at version 1")
	}

	st.Invalidate(center)
	st.Refresh(chunkCenter(32, 32), 0, extent, src)
	if st.QueueLen() != 1 {
		t.Fatalf("expected invalidated chunk requeued, got queue len %d", st.QueueLen())
	}
}

func TestStaleVersionRequeuesOnRefresh(t *testing.T) {
	src := &stubSource{versions: map[chunk.ID]uint32{}}
	st := NewStreamer(0, 64)
	extent := spanExtent(64)
	center := chunk.ID{X: 32, Z: 32}

	st.Refresh(chunkCenter(32, 32), 0, extent, src)
	id, _ := st.Next()
	st.MarkPending(id, 1)
	st.MarkSent(id, 1)

	src.versions[center] = 2
	st.Refresh(chunkCenter(32, 32), 0, extent, src)
	if st.QueueLen() != 1 {
		t.Fatalf("expected stale chunk requeued after version bump, got %d", st.QueueLen())
	}
}

func TestAgeBoostsStarvedChunks(t *testing.T) {
	src := &stubSource{}
	st := NewStreamer(1, 64)
	extent := spanExtent(64)

	// Queue a neighborhood, then starve it for two aging windows.
	st.Refresh(chunkCenter(10, 10), 0, extent, src)
	st.Age(agingTicks)
	st.Age(2 * agingTicks)

	// Move three chunks over and refresh a disjoint window. The starved
	// behind-diagonal from the first window has aged to bucket zero with
	// the lowest sequence number, so it beats every fresh entry.
	st.Refresh(chunkCenter(13, 10), 0, extent, src)
	first, ok := st.Next()
	if !ok {
		t.Fatal("expected a queued chunk")
	}
	if first != (chunk.ID{X: 9, Z: 9}) {
		t.Fatalf("expected the starved chunk to pop first, got %v", first)
	}
}

func TestRefreshWrapsAcrossSeam(t *testing.T) {
	src := &stubSource{}
	st := NewStreamer(1, 64)
	extent := spanExtent(8)

	st.Refresh(chunkCenter(0, 0), 0, extent, src)
	if st.QueueLen() != 9 {
		t.Fatalf("expected 9 queued chunks, got %d", st.QueueLen())
	}
	sawWrapped := false
	for {
		id, ok := st.Next()
		if !ok {
			break
		}
		if id.X == 7 && id.Z == 7 {
			sawWrapped = true
		}
		if id.X < 0 || id.X > 7 || id.Z < 0 || id.Z > 7 {
			t.Fatalf("expected wrapped chunk coordinates, got %v", id)
		}
	}
	if !sawWrapped {
		t.Fatal("expected the diagonal across the seam to be queued")
	}
}
