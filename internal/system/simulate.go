package system

import (
	"sort"
	"time"

	"github.com/orbcraft/server/internal/conn"
	"github.com/orbcraft/server/internal/core/event"
	coresys "github.com/orbcraft/server/internal/core/system"
	"github.com/orbcraft/server/internal/world"
)

// SimulateSystem advances the authoritative tick and applies buffered client
// intents in tick order. Phase 1 (Simulate).
type SimulateSystem struct {
	worldState *world.State
	conns      *conn.Store
	bus        *event.Bus
	dt         float64 // seconds per tick
}

func NewSimulateSystem(worldState *world.State, conns *conn.Store, bus *event.Bus, tickMillis int) *SimulateSystem {
	return &SimulateSystem{
		worldState: worldState,
		conns:      conns,
		bus:        bus,
		dt:         float64(tickMillis) / 1000,
	}
}

func (s *SimulateSystem) Phase() coresys.Phase { return coresys.PhaseSimulate }

func (s *SimulateSystem) Update(_ time.Duration) {
	tick := s.worldState.AdvanceTick()

	s.conns.Each(func(cc *conn.Conn) {
		if cc.Entity.IsZero() {
			cc.Intents = cc.Intents[:0]
			return
		}
		e, ok := s.worldState.Get(cc.Entity)
		if !ok || e.Despawned() {
			cc.Intents = cc.Intents[:0]
			return
		}
		before := e.Body

		if len(cc.Intents) == 0 {
			// No input this tick: entities still fall and glide to a stop.
			s.worldState.ApplyIntent(e, world.Intent{Yaw: e.Body.Yaw}, s.dt)
		} else {
			// Apply in tick order. Multiple intents in one server tick
			// happen when the client runs ahead or the network bunches
			// frames; each one gets a full step, matching the client's
			// own prediction.
			sort.Slice(cc.Intents, func(i, j int) bool {
				return cc.Intents[i].Tick < cc.Intents[j].Tick
			})
			for _, ti := range cc.Intents {
				s.worldState.ApplyIntent(e, ti.Intent, s.dt)
			}
			cc.Intents = cc.Intents[:0]
		}

		if s.bus != nil && e.Body != before {
			event.Emit(s.bus, event.EntityUpdated{EntityID: e.ID, Tick: tick})
		}
	})
}
