package system

import (
	"time"

	"github.com/orbcraft/server/internal/conn"
	"github.com/orbcraft/server/internal/core/ecs"
	coresys "github.com/orbcraft/server/internal/core/system"
	"github.com/orbcraft/server/internal/world"
)

// InterestSystem recomputes each client's interest set from the spatial grid
// and stashes the enter/exit transitions for the replicate phase. Phase 2
// (Interest).
type InterestSystem struct {
	worldState *world.State
	conns      *conn.Store

	// transitions from this tick, keyed by session, consumed by replicate.
	entered map[uint64][]ecs.NetworkID
	exited  map[uint64][]ecs.NetworkID
}

func NewInterestSystem(worldState *world.State, conns *conn.Store) *InterestSystem {
	return &InterestSystem{
		worldState: worldState,
		conns:      conns,
		entered:    make(map[uint64][]ecs.NetworkID),
		exited:     make(map[uint64][]ecs.NetworkID),
	}
}

func (s *InterestSystem) Phase() coresys.Phase { return coresys.PhaseInterest }

func (s *InterestSystem) Update(_ time.Duration) {
	clear(s.entered)
	clear(s.exited)

	s.conns.Each(func(cc *conn.Conn) {
		if cc.Entity.IsZero() {
			return
		}
		e, ok := s.worldState.Get(cc.Entity)
		if !ok || e.Despawned() {
			return
		}
		entered, exited := cc.Interest.Recompute(s.worldState, e.Body.Pos, cc.Entity)
		if len(entered) > 0 {
			s.entered[cc.ID] = entered
		}
		if len(exited) > 0 {
			s.exited[cc.ID] = exited
		}
	})
}

// Entered returns the entities that entered the session's interest this tick.
func (s *InterestSystem) Entered(sessionID uint64) []ecs.NetworkID { return s.entered[sessionID] }

// Exited returns the entities that left the session's interest this tick.
func (s *InterestSystem) Exited(sessionID uint64) []ecs.NetworkID { return s.exited[sessionID] }
