package handler

import (
	"time"

	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/protocol"
)

// HandlePing answers a client clock probe with the authoritative tick. The
// reply skips the budget: clock sync degrades badly under deferral.
func (h *Handlers) HandlePing(c any, body []byte) {
	cc := asConn(c)

	var msg protocol.Ping
	if err := protocol.Unmarshal(body, &msg); err != nil {
		h.Log.Debug("malformed ping", zap.Uint64("session", cc.ID), zap.Error(err))
		return
	}

	cc.Sess.Send(protocol.MustEncode(protocol.OpPong, protocol.Pong{
		Sequence: msg.Sequence,
		Tick:     h.World.Tick(),
	}))
}

// HandlePong resolves a server-issued probe and feeds the sample into the
// connection's clock filter. The server keeps its own RTT estimate to scale
// the entity update cadence per connection.
func (h *Handlers) HandlePong(c any, body []byte) {
	cc := asConn(c)

	var msg protocol.Pong
	if err := protocol.Unmarshal(body, &msg); err != nil {
		h.Log.Debug("malformed pong", zap.Uint64("session", cc.ID), zap.Error(err))
		return
	}

	rtt, ok := cc.Prober.Resolve(msg.Sequence, time.Now())
	if !ok {
		return // stale or duplicate probe
	}
	cc.Clock.AddSample(rtt, msg.Tick, h.World.Tick())
}
