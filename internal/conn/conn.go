// Package conn ties together the per-client replication state: session
// transport, shadow copy, interest set, chunk streamer, send budget, and
// clock probe bookkeeping. Everything here is owned by the tick loop.
package conn

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/budget"
	"github.com/orbcraft/server/internal/clock"
	"github.com/orbcraft/server/internal/core/ecs"
	"github.com/orbcraft/server/internal/net"
	"github.com/orbcraft/server/internal/replication"
	"github.com/orbcraft/server/internal/stream"
	"github.com/orbcraft/server/internal/world"
)

// Conn is one connected client as the tick loop sees it.
type Conn struct {
	Sess *net.Session
	ID   uint64 // session ID
	Name string

	// Entity is the player's network ID, zero until the join completes.
	Entity ecs.NetworkID

	Shadow   *replication.Shadow
	Interest *replication.InterestSet
	Streamer *stream.Streamer
	Budget   *budget.Tracker
	Clock    *clock.Sync
	Prober   *clock.Prober

	// Intents buffers inputs received this tick, applied at simulate phase.
	Intents []world.TaggedIntent

	// LastIntentTick is the newest client tick seen, for replay rejection.
	LastIntentTick uint64

	// DiffSkip counts ticks since the last entity diff pass, for RTT-scaled
	// update cadence.
	DiffSkip int
}

// Settings carries the per-connection knob values from config.
type Settings struct {
	InterestRadius float64
	StreamRadius   int32
	StreamPending  int
	BudgetBytes    int
	UpdateExpiry   int // milliseconds
	ClockWindow    int
	ClockMin       int
	TickMillis     int
}

func New(sess *net.Session, name string, cfg Settings, log *zap.Logger) *Conn {
	return &Conn{
		Sess:     sess,
		ID:       sess.ID,
		Name:     name,
		Shadow:   replication.NewShadow(log),
		Interest: replication.NewInterestSet(cfg.InterestRadius),
		Streamer: stream.NewStreamer(cfg.StreamRadius, cfg.StreamPending),
		Budget:   budget.NewTracker(cfg.BudgetBytes, millis(cfg.UpdateExpiry)),
		Clock:    clock.NewSync(cfg.ClockWindow, cfg.ClockMin, millis(cfg.TickMillis)),
		Prober:   clock.NewProber(),
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Store holds every connected client, keyed by session ID. Owned by the tick
// loop goroutine; no locking.
type Store struct {
	conns map[uint64]*Conn
}

func NewStore() *Store {
	return &Store{conns: make(map[uint64]*Conn)}
}

func (st *Store) Add(c *Conn) {
	st.conns[c.ID] = c
}

func (st *Store) Remove(id uint64) {
	delete(st.conns, id)
}

func (st *Store) Get(id uint64) (*Conn, bool) {
	c, ok := st.conns[id]
	return c, ok
}

// ByEntity finds the connection owning the given entity.
func (st *Store) ByEntity(id ecs.NetworkID) (*Conn, bool) {
	for _, c := range st.conns {
		if c.Entity == id {
			return c, true
		}
	}
	return nil, false
}

func (st *Store) Len() int { return len(st.conns) }

// Each visits connections in ascending session ID order so per-tick work is
// deterministic across runs.
func (st *Store) Each(fn func(*Conn)) {
	ids := make([]uint64, 0, len(st.conns))
	for id := range st.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(st.conns[id])
	}
}
