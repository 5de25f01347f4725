package budget

import (
	"testing"
	"time"
)

func entry(class Class, size int) Entry {
	return Entry{Class: class, Frame: make([]byte, size), Enqueued: time.Now()}
}

func TestDrainRespectsByteBudget(t *testing.T) {
	tr := NewTracker(10000, 500*time.Millisecond)
	for i := 0; i < 20; i++ {
		e := entry(ClassEntity, 1000)
		e.Key = uint64(i + 1)
		tr.Enqueue(e)
	}

	sent := 0
	stats := tr.Drain(time.Now(), func([]byte) { sent++ })

	if sent != 10 {
		t.Fatalf("expected 10 frames sent, got %d", sent)
	}
	if stats.Deferred != 10 {
		t.Fatalf("expected 10 frames deferred, got %d", stats.Deferred)
	}
	if tr.QueuedLen() != 10 {
		t.Fatalf("expected 10 frames still queued, got %d", tr.QueuedLen())
	}
}

func TestDrainOwnStateBypassesDeferralButCountsBytes(t *testing.T) {
	tr := NewTracker(5000, 500*time.Millisecond)
	tr.Enqueue(entry(ClassOwnState, 1000))
	for i := 0; i < 5; i++ {
		tr.Enqueue(entry(ClassBulk, 1000))
	}

	sent := 0
	tr.Drain(time.Now(), func([]byte) { sent++ })

	// Own state always goes, its 1000 bytes leave room for 4 of the 5 bulk
	// frames.
	if sent != 5 {
		t.Fatalf("expected 5 frames sent (own state + 4 bulk), got %d", sent)
	}
	if tr.QueuedLen() != 1 {
		t.Fatalf("expected 1 bulk frame deferred, got %d", tr.QueuedLen())
	}
}

func TestDrainPriorityOrder(t *testing.T) {
	tr := NewTracker(2000, 500*time.Millisecond)
	tr.Enqueue(entry(ClassChat, 1000))
	tr.Enqueue(entry(ClassBulk, 1000))
	e := entry(ClassEntity, 1000)
	e.Key = 7
	tr.Enqueue(e)

	sent := 0
	tr.Drain(time.Now(), func([]byte) { sent++ })

	// Budget fits two: entity (class 1) then bulk (class 3); chat defers.
	if sent != 2 {
		t.Fatalf("expected 2 frames sent, got %d", sent)
	}
	if tr.QueuedLen() != 1 {
		t.Fatalf("expected chat frame deferred, got %d queued", tr.QueuedLen())
	}
}

func TestEnqueueDedupesEntityUpdatesByKey(t *testing.T) {
	tr := NewTracker(100000, 500*time.Millisecond)
	e1 := entry(ClassEntity, 100)
	e1.Key = 42
	tr.Enqueue(e1)
	e2 := entry(ClassEntity, 200)
	e2.Key = 42
	tr.Enqueue(e2)

	if tr.QueuedLen() != 1 {
		t.Fatalf("expected dedupe to leave 1 entry, got %d", tr.QueuedLen())
	}

	var sizes []int
	tr.Drain(time.Now(), func(frame []byte) { sizes = append(sizes, len(frame)) })
	if len(sizes) != 1 || sizes[0] != 200 {
		t.Fatalf("expected only the newer 200-byte frame, got %v", sizes)
	}
}

func TestDrainDropsExpiredEntityUpdates(t *testing.T) {
	tr := NewTracker(10000, 500*time.Millisecond)
	old := Entry{Class: ClassEntity, Key: 1, Frame: make([]byte, 100), Enqueued: time.Now().Add(-time.Second), Expire: true}
	tr.Enqueue(old)

	stats := tr.Drain(time.Now(), func([]byte) { t.Fatal("expired update must not be sent") })
	if stats.Dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", stats.Dropped)
	}
	if tr.QueuedLen() != 0 {
		t.Fatalf("expected empty queue, got %d", tr.QueuedLen())
	}
}

func TestDrainNeverDropsLifecycleFrames(t *testing.T) {
	tr := NewTracker(10000, 500*time.Millisecond)
	// A spawn frame carries a Key but not Expire: no later update can
	// supersede it, so it waits out any congestion.
	spawn := Entry{Class: ClassEntity, Key: 1, Frame: make([]byte, 100), Enqueued: time.Now().Add(-time.Second)}
	tr.Enqueue(spawn)

	sent := 0
	stats := tr.Drain(time.Now(), func([]byte) { sent++ })
	if stats.Dropped != 0 {
		t.Fatalf("expected no drops for a lifecycle frame, got %d", stats.Dropped)
	}
	if sent != 1 {
		t.Fatalf("expected the stale spawn to still go out, sent %d", sent)
	}
}

func TestCancelPurgesQueuedEntityFrames(t *testing.T) {
	tr := NewTracker(10000, 500*time.Millisecond)
	e := entry(ClassEntity, 100)
	e.Key = 9
	tr.Enqueue(e)
	tr.Enqueue(entry(ClassBulk, 100))

	if !tr.Cancel(9) {
		t.Fatal("expected cancel to remove the queued entity frame")
	}
	if tr.Cancel(9) {
		t.Fatal("expected second cancel to find nothing")
	}
	if tr.QueuedLen() != 1 {
		t.Fatalf("expected only the bulk frame left, got %d", tr.QueuedLen())
	}
	sent := 0
	tr.Drain(time.Now(), func([]byte) { sent++ })
	if sent != 1 {
		t.Fatalf("expected 1 frame sent after cancel, got %d", sent)
	}
}

func TestDrainStopsAtFirstNonFitting(t *testing.T) {
	tr := NewTracker(1500, 500*time.Millisecond)
	tr.Enqueue(entry(ClassBulk, 1000)) // fits
	tr.Enqueue(entry(ClassBulk, 1000)) // does not fit
	tr.Enqueue(entry(ClassBulk, 100))  // would fit, but order is preserved

	sent := 0
	tr.Drain(time.Now(), func([]byte) { sent++ })
	if sent != 1 {
		t.Fatalf("expected drain to stop at the first non-fitting frame, sent %d", sent)
	}
	if tr.QueuedLen() != 2 {
		t.Fatalf("expected 2 deferred, got %d", tr.QueuedLen())
	}
}

func TestUpdateInterval(t *testing.T) {
	cases := []struct {
		rtt  time.Duration
		want int
	}{
		{50 * time.Millisecond, 1},
		{199 * time.Millisecond, 1},
		{200 * time.Millisecond, 2},
		{350 * time.Millisecond, 3},
		{500 * time.Millisecond, 4},
		{2 * time.Second, 4},
	}
	for _, c := range cases {
		if got := UpdateInterval(c.rtt); got != c.want {
			t.Fatalf("UpdateInterval(%v) = %d, want %d", c.rtt, got, c.want)
		}
	}
}

func TestRecentBytesTracksHistory(t *testing.T) {
	tr := NewTracker(10000, 500*time.Millisecond)
	tr.Enqueue(entry(ClassBulk, 400))
	tr.Drain(time.Now(), func([]byte) {})
	if got := tr.RecentBytes(); got != 400 {
		t.Fatalf("expected 400 recent bytes, got %d", got)
	}
}
