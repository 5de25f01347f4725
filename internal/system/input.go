package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/conn"
	"github.com/orbcraft/server/internal/core/ecs"
	"github.com/orbcraft/server/internal/core/event"
	coresys "github.com/orbcraft/server/internal/core/system"
	"github.com/orbcraft/server/internal/net"
	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/world"
)

// InputSystem accepts new sessions, tears down dead ones, and drains frame
// queues through the opcode registry. Phase 0 (Input).
//
// Teardown runs here, before any diffing: a disconnected client's entity is
// despawned and its per-connection state dropped at the top of the tick, so
// no later phase ever diffs against a dead shadow.
type InputSystem struct {
	netServer  *net.Server
	registry   *protocol.Registry
	sessions   *net.SessionStore
	conns      *conn.Store
	worldState *world.State
	bus        *event.Bus
	settings   conn.Settings
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(
	netServer *net.Server,
	registry *protocol.Registry,
	sessions *net.SessionStore,
	conns *conn.Store,
	worldState *world.State,
	bus *event.Bus,
	settings conn.Settings,
	maxPerTick int,
	log *zap.Logger,
) *InputSystem {
	return &InputSystem{
		netServer:  netServer,
		registry:   registry,
		sessions:   sessions,
		conns:      conns,
		worldState: worldState,
		bus:        bus,
		settings:   settings,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	// Accept new sessions.
	for {
		select {
		case sess := <-s.netServer.NewSessions():
			s.sessions.Add(sess)
			s.conns.Add(conn.New(sess, "", s.settings, s.log))
		default:
			goto doneNew
		}
	}
doneNew:

	// Drain the dead channel; the authoritative check below is IsClosed.
	for {
		select {
		case <-s.netServer.DeadSessions():
		default:
			goto doneDead
		}
	}
doneDead:

	var dead []uint64
	s.conns.Each(func(cc *conn.Conn) {
		sess := cc.Sess
		if sess.IsClosed() {
			// Drain remaining frames first: a Leave or final intent sent
			// just before the socket dropped still counts.
			for i := 0; i < s.maxPerTick; i++ {
				select {
				case data := <-sess.InQueue:
					s.dispatch(cc, data)
				default:
					i = s.maxPerTick
				}
			}
			dead = append(dead, cc.ID)
			return
		}

		for i := 0; i < s.maxPerTick; i++ {
			select {
			case data := <-sess.InQueue:
				s.dispatch(cc, data)
			default:
				return
			}
		}
	})

	for _, id := range dead {
		s.teardown(id)
	}
}

func (s *InputSystem) dispatch(cc *conn.Conn, data []byte) {
	if err := s.registry.Dispatch(cc, cc.Sess.State(), data); err != nil {
		s.log.Debug("frame dispatch error", zap.Uint64("session", cc.ID), zap.Error(err))
	}
}

// teardown completes a disconnect: despawn the entity, emit the leave event,
// drop all per-connection state. Runs before simulate, so this tick's
// interest and diff passes never see the dead client.
func (s *InputSystem) teardown(id uint64) {
	cc, ok := s.conns.Get(id)
	if !ok {
		return
	}
	var entity ecs.NetworkID
	if !cc.Entity.IsZero() {
		entity = cc.Entity
		s.worldState.Despawn(cc.Entity)
		event.Emit(s.bus, event.EntityDespawned{EntityID: cc.Entity})
	}
	event.Emit(s.bus, event.ClientLeft{SessionID: id, EntityID: entity})
	s.conns.Remove(id)
	s.sessions.Remove(id)
	s.log.Info("session torn down", zap.Uint64("session", id), zap.Uint64("entity", uint64(entity)))
}
