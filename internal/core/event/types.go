package event

import "github.com/orbcraft/server/internal/core/ecs"

// Events consumed by the rendering/UI layer and by server-side observers.

type ClientJoined struct {
	SessionID uint64
	Name      string
	EntityID  ecs.NetworkID
}

type ClientLeft struct {
	SessionID uint64
	EntityID  ecs.NetworkID
}

type EntitySpawned struct {
	EntityID ecs.NetworkID
	Kind     string
}

type EntityDespawned struct {
	EntityID ecs.NetworkID
}

type EntityUpdated struct {
	EntityID ecs.NetworkID
	Tick     uint64
}
