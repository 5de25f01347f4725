package handler

import (
	"time"

	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/budget"
	"github.com/orbcraft/server/internal/conn"
	"github.com/orbcraft/server/internal/protocol"
)

const maxChatLen = 256

// HandleChat relays a text message at chat priority to the sender and to
// every in-world client whose interest set contains the sender's entity.
// The sender name is authoritative, never client-supplied.
func (h *Handlers) HandleChat(c any, body []byte) {
	cc := asConn(c)

	var msg protocol.Chat
	if err := protocol.Unmarshal(body, &msg); err != nil {
		h.Log.Debug("malformed chat", zap.Uint64("session", cc.ID), zap.Error(err))
		return
	}
	if msg.Text == "" {
		return
	}
	if len(msg.Text) > maxChatLen {
		msg.Text = msg.Text[:maxChatLen]
	}
	msg.From = cc.Name

	frame := protocol.MustEncode(protocol.OpChatRelay, msg)
	now := time.Now()
	h.Conns.Each(func(oc *conn.Conn) {
		if oc.Sess.State() != protocol.StateInWorld {
			return
		}
		if oc.ID != cc.ID && !oc.Interest.Contains(cc.Entity) {
			return
		}
		oc.Budget.Enqueue(budget.Entry{
			Class:    budget.ClassChat,
			Frame:    frame,
			Enqueued: now,
		})
	})
}
