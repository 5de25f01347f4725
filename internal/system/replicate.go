package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/budget"
	"github.com/orbcraft/server/internal/conn"
	"github.com/orbcraft/server/internal/core/ecs"
	coresys "github.com/orbcraft/server/internal/core/system"
	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/world"
)

// ReplicateSystem builds this tick's outbound entity traffic per client:
// the client's own authoritative state, full spawns for entities entering
// interest, despawns for entities leaving it, and shadow-diffed updates for
// everything already visible. Frames go into the budget queue; nothing is
// written to the network here. Phase 3 (Replicate).
type ReplicateSystem struct {
	worldState *world.State
	conns      *conn.Store
	interest   *InterestSystem
	components *world.ComponentRegistry
	log        *zap.Logger
}

func NewReplicateSystem(
	worldState *world.State,
	conns *conn.Store,
	interest *InterestSystem,
	components *world.ComponentRegistry,
	log *zap.Logger,
) *ReplicateSystem {
	return &ReplicateSystem{
		worldState: worldState,
		conns:      conns,
		interest:   interest,
		components: components,
		log:        log,
	}
}

func (s *ReplicateSystem) Phase() coresys.Phase { return coresys.PhaseReplicate }

func (s *ReplicateSystem) Update(_ time.Duration) {
	now := time.Now()
	tick := s.worldState.Tick()

	s.conns.Each(func(cc *conn.Conn) {
		if cc.Sess.State() != protocol.StateInWorld || cc.Entity.IsZero() {
			return
		}
		e, ok := s.worldState.Get(cc.Entity)
		if !ok || e.Despawned() {
			return
		}

		s.enqueueOwnState(cc, e, tick, now)
		s.enqueueDespawns(cc, now)
		s.enqueueSpawns(cc, now)
		s.enqueueDiffs(cc, tick, now)
	})
}

// enqueueOwnState sends the client its authoritative body every tick. It
// rides priority 0: reconciliation cannot tolerate deferral.
func (s *ReplicateSystem) enqueueOwnState(cc *conn.Conn, e *world.Entity, tick uint64, now time.Time) {
	frame := protocol.MustEncode(protocol.OpOwnState, protocol.OwnState{
		Tick: tick,
		X:    e.Body.Pos.X, Y: e.Body.Pos.Y, Z: e.Body.Pos.Z,
		VX: e.Body.Vel.X, VY: e.Body.Vel.Y, VZ: e.Body.Vel.Z,
	})
	cc.Budget.Enqueue(budget.Entry{
		Class:    budget.ClassOwnState,
		Frame:    frame,
		Enqueued: now,
	})
}

// enqueueDespawns handles entities that left interest this tick. The shadow
// entry drops immediately: if the entity comes back it gets a fresh spawn.
func (s *ReplicateSystem) enqueueDespawns(cc *conn.Conn, now time.Time) {
	for _, id := range s.interest.Exited(cc.ID) {
		// A spawn or update still waiting on budget must not outlive the
		// exit: delivered later, it would show the client an entity no
		// despawn ever clears.
		cc.Budget.Cancel(uint64(id))
		if !cc.Shadow.Has(id) {
			continue
		}
		cc.Shadow.Drop(id)
		frame := protocol.MustEncode(protocol.OpDespawn, protocol.Despawn{NetworkID: uint64(id)})
		cc.Budget.Enqueue(budget.Entry{
			Class:    budget.ClassEntity,
			Key:      uint64(id),
			Frame:    frame,
			Enqueued: now,
		})
	}
}

// enqueueSpawns handles entities that entered interest this tick with their
// full component state. The shadow commits only when the frame actually
// leaves, so a deferred spawn is rebuilt fresh rather than diffed against
// state the client never saw.
func (s *ReplicateSystem) enqueueSpawns(cc *conn.Conn, now time.Time) {
	for _, id := range s.interest.Entered(cc.ID) {
		e, ok := s.worldState.Get(id)
		if !ok || e.Despawned() {
			continue
		}
		comps := cc.Shadow.FullState(e, s.components)
		if len(comps) == 0 {
			continue
		}
		frame := protocol.MustEncode(protocol.OpSpawn, protocol.Spawn{
			NetworkID:  uint64(id),
			Components: comps,
		})
		entityID := id
		cc.Budget.Enqueue(budget.Entry{
			Class:    budget.ClassEntity,
			Key:      uint64(id),
			Frame:    frame,
			Enqueued: now,
			OnSend:   func() { cc.Shadow.Commit(entityID, comps) },
		})
	}
}

// enqueueDiffs walks the interest set and queues per-entity deltas. The
// cadence stretches with the connection's RTT; skipped ticks accumulate into
// the next diff because the shadow only advances on send.
func (s *ReplicateSystem) enqueueDiffs(cc *conn.Conn, tick uint64, now time.Time) {
	interval := budget.UpdateInterval(cc.Clock.RTT())
	cc.DiffSkip++
	if cc.DiffSkip < interval {
		return
	}
	cc.DiffSkip = 0

	self := cc.Entity
	cc.Interest.Each(func(id ecs.NetworkID) {
		if id == self || !cc.Shadow.Has(id) {
			return
		}
		e, ok := s.worldState.Get(id)
		if !ok || e.Despawned() {
			return
		}
		changed := cc.Shadow.Diff(e, s.components)
		if len(changed) == 0 {
			return
		}
		frame := protocol.MustEncode(protocol.OpUpdate, protocol.Update{
			NetworkID: uint64(id),
			Tick:      tick,
			Changed:   changed,
		})
		entityID := id
		comps := changed
		cc.Budget.Enqueue(budget.Entry{
			Class:    budget.ClassEntity,
			Key:      uint64(id),
			Frame:    frame,
			Enqueued: now,
			Expire:   true, // a fresher diff supersedes this one
			OnSend:   func() { cc.Shadow.Commit(entityID, comps) },
		})
	})
}
