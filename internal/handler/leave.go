package handler

import (
	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/protocol"
)

// HandleLeave begins a voluntary disconnect. Closing the session routes the
// connection through the same dead-session teardown as a dropped socket, so
// there is exactly one teardown path.
func (h *Handlers) HandleLeave(c any, body []byte) {
	cc := asConn(c)
	h.Log.Info("player leaving", zap.Uint64("session", cc.ID), zap.String("name", cc.Name))
	cc.Sess.SetState(protocol.StateDisconnecting)
	cc.Sess.Close()
}
