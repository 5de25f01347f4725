package system

import (
	"time"

	"github.com/orbcraft/server/internal/core/event"
	coresys "github.com/orbcraft/server/internal/core/system"
	"github.com/orbcraft/server/internal/world"
)

// CleanupSystem destroys entities marked for despawn this tick and flips the
// event buffers. Phase 7 (Cleanup).
type CleanupSystem struct {
	worldState *world.State
	bus        *event.Bus
}

func NewCleanupSystem(worldState *world.State, bus *event.Bus) *CleanupSystem {
	return &CleanupSystem{worldState: worldState, bus: bus}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.worldState.FlushDespawns()
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
