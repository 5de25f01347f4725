package handler

import (
	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/scripting"
	"github.com/orbcraft/server/internal/world"
)

// HandleIntent validates and buffers one tick-tagged input. Buffered intents
// are applied in tick order at the simulate phase.
func (h *Handlers) HandleIntent(c any, body []byte) {
	cc := asConn(c)

	var msg protocol.Intent
	if err := protocol.Unmarshal(body, &msg); err != nil {
		h.Log.Debug("malformed intent", zap.Uint64("session", cc.ID), zap.Error(err))
		return
	}

	// Replay rejection: an intent at or before one already accepted is
	// dropped. Ticks only move forward.
	if msg.Tick <= cc.LastIntentTick {
		return
	}
	// Far-future ticks are a broken or cheating client.
	if msg.Tick > h.World.Tick()+h.Cfg.Replication.IntentWindow {
		h.Log.Debug("intent too far ahead",
			zap.Uint64("session", cc.ID),
			zap.Uint64("intent_tick", msg.Tick),
			zap.Uint64("server_tick", h.World.Tick()),
		)
		return
	}

	in, err := world.DecodeIntent(msg.Payload)
	if err != nil {
		h.Log.Debug("undecodable intent", zap.Uint64("session", cc.ID), zap.Error(err))
		return
	}

	// Bounds check before scripting: magnitudes above 1 are never legal.
	if in.MoveX < -1 || in.MoveX > 1 || in.MoveZ < -1 || in.MoveZ > 1 {
		h.Log.Debug("intent out of bounds", zap.Uint64("session", cc.ID))
		return
	}

	if h.Script != nil && !h.Script.ValidateIntent(scripting.IntentContext{
		MoveX: float64(in.MoveX),
		MoveZ: float64(in.MoveZ),
		Jump:  in.Jump,
		Yaw:   float64(in.Yaw),
	}) {
		return
	}

	cc.LastIntentTick = msg.Tick
	cc.Intents = append(cc.Intents, world.TaggedIntent{Tick: msg.Tick, Intent: in})
}
