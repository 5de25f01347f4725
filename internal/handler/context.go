// Package handler decodes client frames and applies them to authoritative
// state. All handlers run on the tick loop goroutine via the opcode registry.
package handler

import (
	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/chunk"
	"github.com/orbcraft/server/internal/config"
	"github.com/orbcraft/server/internal/conn"
	"github.com/orbcraft/server/internal/core/event"
	"github.com/orbcraft/server/internal/data"
	"github.com/orbcraft/server/internal/persist"
	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/scripting"
	"github.com/orbcraft/server/internal/world"
)

// Handlers holds the shared collaborators every message handler needs.
type Handlers struct {
	World      *world.State
	Conns      *conn.Store
	Chunks     *chunk.MemoryStore
	Script     *scripting.Engine
	Archetypes *data.ArchetypeTable
	Components *world.ComponentRegistry
	Cfg        *config.Config
	Bus        *event.Bus
	Log        *zap.Logger

	// Edits accumulates applied block edits for the persistence system,
	// which drains them each tick.
	Edits []persist.EditRow
}

// RegisterAll wires every opcode into the registry with its allowed states.
func (h *Handlers) RegisterAll(reg *protocol.Registry) {
	handshake := []protocol.SessionState{protocol.StateHandshake}
	inWorld := []protocol.SessionState{protocol.StateInWorld}
	anyLive := []protocol.SessionState{protocol.StateHandshake, protocol.StateInWorld}

	reg.Register(protocol.OpJoin, handshake, h.HandleJoin)
	reg.Register(protocol.OpIntent, inWorld, h.HandleIntent)
	reg.Register(protocol.OpPing, anyLive, h.HandlePing)
	reg.Register(protocol.OpPong, anyLive, h.HandlePong)
	reg.Register(protocol.OpBlockEdit, inWorld, h.HandleBlockEdit)
	reg.Register(protocol.OpChat, inWorld, h.HandleChat)
	reg.Register(protocol.OpLeave, anyLive, h.HandleLeave)
}

// asConn narrows the registry's opaque connection back to *conn.Conn.
func asConn(c any) *conn.Conn {
	return c.(*conn.Conn)
}
