package handler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/core/event"
	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/replication"
	"github.com/orbcraft/server/internal/world"
)

const maxNameLen = 32

// HandleJoin spawns the player's entity and acknowledges with everything the
// client needs to start its local clock.
func (h *Handlers) HandleJoin(c any, body []byte) {
	cc := asConn(c)

	var msg protocol.Join
	if err := protocol.Unmarshal(body, &msg); err != nil {
		h.Log.Warn("malformed join", zap.Uint64("session", cc.ID), zap.Error(err))
		cc.Sess.Close()
		return
	}

	name := msg.Name
	if name == "" {
		name = fmt.Sprintf("player-%d", cc.ID)
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}

	maxHP := int32(100)
	spawnY := int64(32)
	if arch := h.Archetypes.Get("player"); arch != nil {
		maxHP = arch.MaxHP
		spawnY = arch.SpawnY
		if arch.InterestRadius > 0 {
			// The archetype overrides the server-wide interest radius.
			cc.Interest = replication.NewInterestSet(arch.InterestRadius)
		}
	}

	// Scatter spawns on a small grid so simultaneous joins don't stack.
	pos := world.Pos{
		X: int64(cc.ID%16) * 2 * world.Milli,
		Y: spawnY * world.Milli,
		Z: int64((cc.ID/16)%16) * 2 * world.Milli,
	}

	e := h.World.Spawn("player", name, pos, cc.ID, maxHP)
	cc.Entity = e.ID
	cc.Name = name
	cc.Sess.SetState(protocol.StateInWorld)

	// The ack bypasses the budget: it is the handshake, not replication.
	cc.Sess.Send(protocol.MustEncode(protocol.OpJoinAck, protocol.JoinAck{
		SessionID:   cc.ID,
		NetworkID:   uint64(e.ID),
		Tick:        h.World.Tick(),
		TickMillis:  uint32(h.Cfg.Server.TickMillis),
		WorldExtent: h.World.Extent(),
	}))

	event.Emit(h.Bus, event.ClientJoined{SessionID: cc.ID, Name: name, EntityID: e.ID})
	event.Emit(h.Bus, event.EntitySpawned{EntityID: e.ID, Kind: "player"})

	h.Log.Info("player joined",
		zap.Uint64("session", cc.ID),
		zap.String("name", name),
		zap.Uint64("entity", uint64(e.ID)),
	)
}
