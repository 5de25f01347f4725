package world

import "github.com/orbcraft/server/internal/core/ecs"

// Body is the simulated physical state of an entity. It is the input and
// output of Simulate and must stay plain data: both sides of the wire run
// the exact same code over it.
type Body struct {
	Pos      Pos
	Vel      Vec3 // world units per second
	Yaw      float32
	OnGround bool
}

// Entity is one authoritative replicated object.
type Entity struct {
	ID    ecs.NetworkID
	Kind  string
	Name  string
	Body  Body
	HP    int32
	MaxHP int32

	// Owner is the session controlling this entity, 0 for world-owned.
	Owner uint64

	despawned bool
}

func (e *Entity) Despawned() bool { return e.despawned }
