package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/conn"
	coresys "github.com/orbcraft/server/internal/core/system"
	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/world"
)

// OutputSystem drains each connection's budget into its session buffer,
// issues the server's own clock probes, and flushes everything to the write
// goroutines. Phase 5 (Output).
type OutputSystem struct {
	worldState *world.State
	conns      *conn.Store
	pingEvery  time.Duration
	lastPing   time.Time
	log        *zap.Logger
}

func NewOutputSystem(worldState *world.State, conns *conn.Store, pingEvery time.Duration, log *zap.Logger) *OutputSystem {
	return &OutputSystem{
		worldState: worldState,
		conns:      conns,
		pingEvery:  pingEvery,
		log:        log,
	}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	now := time.Now()
	probe := false
	if now.Sub(s.lastPing) >= s.pingEvery {
		s.lastPing = now
		probe = true
	}

	s.conns.Each(func(cc *conn.Conn) {
		if cc.Sess.IsClosed() {
			return
		}

		stats := cc.Budget.Drain(now, cc.Sess.Send)
		if stats.Dropped > 0 {
			s.log.Debug("stale updates dropped",
				zap.Uint64("session", cc.ID),
				zap.Int("dropped", stats.Dropped),
			)
		}

		// Server-side probes keep a per-connection RTT estimate for the
		// update cadence, independent of the client's own sync pings.
		if probe {
			cc.Sess.Send(protocol.MustEncode(protocol.OpPing, cc.Prober.NextPing(now)))
		}

		cc.Sess.FlushOutput()
	})
}
