package handler

import (
	"time"

	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/budget"
	"github.com/orbcraft/server/internal/chunk"
	"github.com/orbcraft/server/internal/conn"
	"github.com/orbcraft/server/internal/persist"
	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/world"
)

// HandleBlockEdit applies one authoritative block edit, logs it for
// persistence, and fans the result out. Clients already holding the chunk
// get an incremental notify; everyone else gets the chunk requeued at its
// new version.
func (h *Handlers) HandleBlockEdit(c any, body []byte) {
	cc := asConn(c)

	var msg protocol.BlockEdit
	if err := protocol.Unmarshal(body, &msg); err != nil {
		h.Log.Debug("malformed block edit", zap.Uint64("session", cc.ID), zap.Error(err))
		return
	}

	span := int32(h.World.Extent() / (chunk.Size * world.Milli))
	if span <= 0 {
		return
	}
	id := chunk.ID{X: wrapChunkCoord(msg.ChunkX, span), Z: wrapChunkCoord(msg.ChunkZ, span)}
	msg.ChunkX, msg.ChunkZ = id.X, id.Z

	oldVer := h.Chunks.Version(id)
	newVer, changed := h.Chunks.SetBlock(id, msg.LocalX, msg.LocalY, msg.LocalZ, msg.Block)
	if !changed {
		return
	}

	h.Edits = append(h.Edits, persist.EditRow{
		Tick:   h.World.Tick(),
		ChunkX: id.X, ChunkZ: id.Z,
		LocalX: msg.LocalX, LocalY: msg.LocalY, LocalZ: msg.LocalZ,
		Block:  msg.Block,
		Editor: cc.ID,
	})

	notify := protocol.MustEncode(protocol.OpEditNotify, msg)
	now := time.Now()
	h.Conns.Each(func(oc *conn.Conn) {
		if oc.Sess.State() != protocol.StateInWorld {
			return
		}
		if oc.Streamer.Sent(id, oldVer) {
			// Incremental patch keeps the client's copy current at the
			// new version without restreaming the whole chunk.
			target := oc
			oc.Budget.Enqueue(budget.Entry{
				Class:    budget.ClassEdit,
				Frame:    notify,
				Enqueued: now,
				OnSend:   func() { target.Streamer.MarkSent(id, newVer) },
			})
		} else {
			oc.Streamer.Invalidate(id)
		}
	})
}

func wrapChunkCoord(c, span int32) int32 {
	c %= span
	if c < 0 {
		c += span
	}
	return c
}
