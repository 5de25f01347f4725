package world

import (
	"sort"

	"github.com/orbcraft/server/internal/core/ecs"
)

// State is the authoritative world: the entity table, the spatial grid, and
// the tick counter. Owned exclusively by the tick loop goroutine — no locks.
type State struct {
	alloc    *ecs.Allocator
	entities *ecs.Store[Entity]
	registry *ecs.Registry
	grid     *Grid

	tick    uint64
	extent  int64 // milliunits per wrapping axis
	despawn []ecs.NetworkID
}

// NewState builds a world with the given extent and grid cell size, both in
// world units.
func NewState(extentUnits, cellUnits int64) *State {
	extent := extentUnits * Milli
	s := &State{
		alloc:    ecs.NewAllocator(),
		entities: ecs.NewStore[Entity](),
		registry: ecs.NewRegistry(),
		grid:     NewGrid(extent, cellUnits*Milli),
		extent:   extent,
	}
	s.registry.Register(s.entities)
	return s
}

func (s *State) Tick() uint64  { return s.tick }
func (s *State) Extent() int64 { return s.extent }

// AdvanceTick increments the authoritative tick counter by exactly one.
func (s *State) AdvanceTick() uint64 {
	s.tick++
	return s.tick
}

// Spawn creates an entity and registers it in the spatial grid.
func (s *State) Spawn(kind, name string, pos Pos, owner uint64, maxHP int32) *Entity {
	e := &Entity{
		ID:    s.alloc.Next(),
		Kind:  kind,
		Name:  name,
		Owner: owner,
		HP:    maxHP,
		MaxHP: maxHP,
	}
	e.Body.Pos = pos.Wrap(s.extent)
	e.Body.OnGround = e.Body.Pos.Y <= 0
	s.entities.Set(e.ID, e)
	s.grid.Add(e.ID, e.Body.Pos)
	return e
}

// Despawn marks an entity dead: it leaves the spatial grid immediately (so
// interest recomputation this tick already excludes it) but its data stays
// readable until FlushDespawns at end of tick, because despawn messages for
// still-interested clients are built after the mark.
func (s *State) Despawn(id ecs.NetworkID) {
	e, ok := s.entities.Get(id)
	if !ok || e.despawned {
		return
	}
	e.despawned = true
	s.grid.Remove(id, e.Body.Pos)
	s.despawn = append(s.despawn, id)
}

// FlushDespawns destroys all entities marked this tick and returns their IDs.
func (s *State) FlushDespawns() []ecs.NetworkID {
	if len(s.despawn) == 0 {
		return nil
	}
	flushed := make([]ecs.NetworkID, len(s.despawn))
	copy(flushed, s.despawn)
	for _, id := range s.despawn {
		s.registry.RemoveAll(id)
	}
	s.despawn = s.despawn[:0]
	return flushed
}

// Get returns a live or despawning-this-tick entity.
func (s *State) Get(id ecs.NetworkID) (*Entity, bool) {
	return s.entities.Get(id)
}

// Each visits every entity, including ones marked for despawn this tick.
func (s *State) Each(fn func(*Entity)) {
	s.entities.Each(func(_ ecs.NetworkID, e *Entity) { fn(e) })
}

// Count returns the number of stored entities.
func (s *State) Count() int { return s.entities.Len() }

// ApplyIntent runs one simulation step for an entity and keeps the grid in
// sync with the resulting position.
func (s *State) ApplyIntent(e *Entity, in Intent, dt float64) {
	old := e.Body.Pos
	e.Body = Simulate(e.Body, in, dt, s.extent)
	if e.Body.Pos != old {
		s.grid.Move(e.ID, old, e.Body.Pos)
	}
}

// QueryRadius returns the IDs of live entities within radius world units of
// center, seam-aware, sorted ascending for deterministic processing.
func (s *State) QueryRadius(center Pos, radius float64) []ecs.NetworkID {
	r2 := radius * radius
	candidates := s.grid.Nearby(center, radius)
	result := candidates[:0]
	for _, id := range candidates {
		e, ok := s.entities.Get(id)
		if !ok || e.despawned {
			continue
		}
		if Dist2(e.Body.Pos, center, s.extent) <= r2 {
			result = append(result, id)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
