package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/budget"
	"github.com/orbcraft/server/internal/chunk"
	"github.com/orbcraft/server/internal/conn"
	coresys "github.com/orbcraft/server/internal/core/system"
	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/stream"
	"github.com/orbcraft/server/internal/world"
)

// StreamSystem feeds each client's chunk streamer: refresh the want-list
// from the current interest center, then pop, compress, and queue chunks at
// bulk priority until the pending cap is hit. Phase 4 (Stream).
type StreamSystem struct {
	worldState *world.State
	conns      *conn.Store
	chunks     chunk.Source
	log        *zap.Logger
}

func NewStreamSystem(worldState *world.State, conns *conn.Store, chunks chunk.Source, log *zap.Logger) *StreamSystem {
	return &StreamSystem{
		worldState: worldState,
		conns:      conns,
		chunks:     chunks,
		log:        log,
	}
}

func (s *StreamSystem) Phase() coresys.Phase { return coresys.PhaseStream }

func (s *StreamSystem) Update(_ time.Duration) {
	now := time.Now()
	tick := s.worldState.Tick()
	extent := s.worldState.Extent()

	s.conns.Each(func(cc *conn.Conn) {
		if cc.Sess.State() != protocol.StateInWorld || cc.Entity.IsZero() {
			return
		}
		e, ok := s.worldState.Get(cc.Entity)
		if !ok || e.Despawned() {
			return
		}

		cc.Streamer.Age(tick)
		cc.Streamer.Refresh(e.Body.Pos, e.Body.Yaw, extent, s.chunks)

		for {
			id, ok := cc.Streamer.Next()
			if !ok {
				break
			}
			raw, version, ok := s.chunks.Load(id)
			if !ok {
				continue
			}
			compressed, err := stream.Compress(raw)
			if err != nil {
				s.log.Error("chunk compress failed",
					zap.Int32("cx", id.X), zap.Int32("cz", id.Z), zap.Error(err))
				continue
			}
			frame := protocol.MustEncode(protocol.OpChunkData, protocol.ChunkData{
				ChunkX:     id.X,
				ChunkZ:     id.Z,
				Version:    version,
				Compressed: compressed,
				RawSize:    int32(len(raw)),
			})
			chunkID, chunkVer := id, version
			cc.Streamer.MarkPending(id, version)
			cc.Budget.Enqueue(budget.Entry{
				Class:    budget.ClassBulk,
				Frame:    frame,
				Enqueued: now,
				OnSend:   func() { cc.Streamer.MarkSent(chunkID, chunkVer) },
			})
		}
	})
}
