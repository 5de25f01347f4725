package budget

import (
	"fmt"
	"sort"
	"time"
)

// Class is a fixed outbound priority. Lower is more urgent.
type Class uint8

const (
	ClassOwnState Class = iota // the client's own authoritative state
	ClassEntity                // nearby entity updates
	ClassEdit                  // world edits
	ClassBulk                  // chunk data
	ClassChat                  // chat
	ClassMeta                  // metadata, probes
	numClasses
)

func (c Class) String() string {
	switch c {
	case ClassOwnState:
		return "own-state"
	case ClassEntity:
		return "entity"
	case ClassEdit:
		return "edit"
	case ClassBulk:
		return "bulk"
	case ClassChat:
		return "chat"
	case ClassMeta:
		return "meta"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(c))
	}
}

// Entry is one outbound message awaiting budget.
type Entry struct {
	Class Class
	// Key deduplicates entity updates: enqueueing a new update for the same
	// entity replaces the queued one (the old delta is superseded, the
	// shadow never advanced for it). Zero means no dedupe.
	Key      uint64
	Frame    []byte
	Enqueued time.Time
	// Expire marks a frame a fresher one will supersede: it may be dropped
	// after the update expiry instead of sent late. Lifecycle frames
	// (spawn, despawn) must never set it — nothing supersedes them.
	Expire bool
	// OnSend fires when the frame actually leaves — shadow commits and
	// sent-records hang off it. Deferred or dropped entries never fire it.
	OnSend func()
}

// DrainStats summarizes one tick's drain.
type DrainStats struct {
	Sent     int
	Deferred int
	Dropped  int
	Bytes    int
}

// Tracker enforces one connection's per-tick byte budget with priority
// ordered scheduling. Owned by the tick loop goroutine.
type Tracker struct {
	bytesPerTick int
	updateExpiry time.Duration

	queue   []Entry
	history [32]int // bytes actually sent, rolling per tick
	histIdx int
}

func NewTracker(bytesPerTick int, updateExpiry time.Duration) *Tracker {
	return &Tracker{
		bytesPerTick: bytesPerTick,
		updateExpiry: updateExpiry,
	}
}

// Enqueue adds an entry to the pending queue. An out-of-range class is a
// programmer error caught here, not a silent runtime branch.
func (t *Tracker) Enqueue(e Entry) {
	if e.Class >= numClasses {
		panic(fmt.Sprintf("invalid priority class %d", e.Class))
	}
	if e.Key != 0 && e.Class == ClassEntity {
		for i := range t.queue {
			if t.queue[i].Class == ClassEntity && t.queue[i].Key == e.Key {
				// Supersede the stale queued update in place.
				t.queue[i] = e
				return
			}
		}
	}
	t.queue = append(t.queue, e)
}

// QueuedLen returns the number of pending entries.
func (t *Tracker) QueuedLen() int { return len(t.queue) }

// Cancel removes every queued entity frame for key and reports whether any
// was removed. Used when an entity leaves interest while its spawn or update
// is still waiting on budget: delivering it afterwards would strand the
// client with state no despawn will ever clear.
func (t *Tracker) Cancel(key uint64) bool {
	if key == 0 {
		return false
	}
	removed := false
	keep := t.queue[:0]
	for _, e := range t.queue {
		if e.Class == ClassEntity && e.Key == key {
			removed = true
			continue
		}
		keep = append(keep, e)
	}
	for i := len(keep); i < len(t.queue); i++ {
		t.queue[i] = Entry{}
	}
	t.queue = keep
	return removed
}

// Drain sorts the queue by priority (stable, so FIFO within a class) and
// sends entries against the remaining budget. Own-state entries are sent
// unconditionally — a connection's own correction is never delayed by
// congestion — though their bytes still count against the budget. Draining
// stops at the first entry that does not fit, preserving queue order across
// ticks; the remainder is deferred. Entries marked Expire and older than the
// expiry are dropped in favor of the fresher update that supersedes them;
// everything else waits however long it takes.
func (t *Tracker) Drain(now time.Time, send func([]byte)) DrainStats {
	sort.SliceStable(t.queue, func(i, j int) bool {
		return t.queue[i].Class < t.queue[j].Class
	})

	var stats DrainStats
	remaining := t.bytesPerTick
	keep := t.queue[:0]
	blocked := false

	for _, e := range t.queue {
		if e.Expire && t.updateExpiry > 0 && now.Sub(e.Enqueued) > t.updateExpiry {
			stats.Dropped++
			continue
		}
		size := len(e.Frame)
		if e.Class == ClassOwnState {
			send(e.Frame)
			if e.OnSend != nil {
				e.OnSend()
			}
			remaining -= size
			stats.Sent++
			stats.Bytes += size
			continue
		}
		if blocked || size > remaining {
			blocked = true
			stats.Deferred++
			keep = append(keep, e)
			continue
		}
		send(e.Frame)
		if e.OnSend != nil {
			e.OnSend()
		}
		remaining -= size
		stats.Sent++
		stats.Bytes += size
	}

	// Zero the tail so dropped frames do not pin memory.
	for i := len(keep); i < len(t.queue); i++ {
		t.queue[i] = Entry{}
	}
	t.queue = keep

	t.history[t.histIdx] = stats.Bytes
	t.histIdx = (t.histIdx + 1) % len(t.history)
	return stats
}

// RecentBytes returns the total bytes sent over the rolling history window.
func (t *Tracker) RecentBytes() int {
	total := 0
	for _, b := range t.history {
		total += b
	}
	return total
}

// RTT thresholds for reducing non-critical update cadence under sustained
// high latency. Priority-0 traffic is unaffected by the interval.
const (
	slowRTT    = 200 * time.Millisecond
	slowerRTT  = 350 * time.Millisecond
	slowestRTT = 500 * time.Millisecond
)

// UpdateInterval maps a connection's smoothed RTT to a cadence divisor for
// non-critical entity updates: send every Nth tick.
func UpdateInterval(rtt time.Duration) int {
	switch {
	case rtt >= slowestRTT:
		return 4
	case rtt >= slowerRTT:
		return 3
	case rtt >= slowRTT:
		return 2
	default:
		return 1
	}
}
