package system

import (
	stdnet "net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/budget"
	"github.com/orbcraft/server/internal/conn"
	gonet "github.com/orbcraft/server/internal/net"
	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/world"
)

// blockerKey keeps the congestion frame's dedupe key clear of real entity IDs.
const blockerKey = uint64(1) << 40

func newTestConn(t *testing.T) *conn.Conn {
	t.Helper()
	client, server := stdnet.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	sess := gonet.NewSession(server, 1, 8, 8, 0, zap.NewNop())
	sess.SetState(protocol.StateInWorld)
	return conn.New(sess, "tester", conn.Settings{
		InterestRadius: 64,
		StreamRadius:   1,
		StreamPending:  1,
		BudgetBytes:    4096,
		UpdateExpiry:   500,
		ClockWindow:    16,
		ClockMin:       8,
		TickMillis:     50,
	}, zap.NewNop())
}

// congest wedges a frame larger than the whole budget at the head of the
// entity class so everything behind it defers.
func congest(cc *conn.Conn) {
	cc.Budget.Enqueue(budget.Entry{
		Class:    budget.ClassEntity,
		Key:      blockerKey,
		Frame:    make([]byte, 8192),
		Enqueued: time.Now(),
	})
}

func opcodes(frames [][]byte) []byte {
	var ops []byte
	for _, f := range frames {
		if len(f) > 0 {
			ops = append(ops, f[0])
		}
	}
	return ops
}

func TestDeferredSpawnSurvivesCongestion(t *testing.T) {
	ws := world.NewState(1024, 32)
	conns := conn.NewStore()
	cc := newTestConn(t)
	conns.Add(cc)

	player := ws.Spawn("player", "tester", world.Pos{X: 512 * world.Milli, Z: 512 * world.Milli}, cc.ID, 100)
	cc.Entity = player.ID
	drone := ws.Spawn("drone", "drone", world.Pos{X: 520 * world.Milli, Z: 512 * world.Milli}, 0, 40)

	interest := NewInterestSystem(ws, conns)
	replicate := NewReplicateSystem(ws, conns, interest, world.DefaultComponentRegistry(), zap.NewNop())

	congest(cc)
	interest.Update(0)
	replicate.Update(0)

	// Several congested ticks, all past the update expiry: the spawn must
	// defer, never drop.
	var dropped int
	for i := 0; i < 5; i++ {
		interest.Update(0)
		replicate.Update(0)
		stats := cc.Budget.Drain(time.Now().Add(600*time.Millisecond), func([]byte) {})
		dropped += stats.Dropped
	}
	if dropped != 0 {
		t.Fatalf("expected the deferred spawn to survive expiry, dropped %d", dropped)
	}
	if cc.Shadow.Has(drone.ID) {
		t.Fatal("expected no shadow commit while the spawn is deferred")
	}

	// Congestion clears: the spawn goes out and the shadow commits.
	cc.Budget.Cancel(blockerKey)
	var sent [][]byte
	cc.Budget.Drain(time.Now().Add(600*time.Millisecond), func(f []byte) {
		sent = append(sent, append([]byte(nil), f...))
	})

	sawSpawn := false
	for _, op := range opcodes(sent) {
		if op == protocol.OpSpawn {
			sawSpawn = true
		}
	}
	if !sawSpawn {
		t.Fatalf("expected the spawn to deliver once budget allowed, sent opcodes %v", opcodes(sent))
	}
	if !cc.Shadow.Has(drone.ID) {
		t.Fatal("expected shadow commit after the spawn delivered")
	}
}

func TestInterestExitCancelsDeferredSpawn(t *testing.T) {
	ws := world.NewState(1024, 32)
	conns := conn.NewStore()
	cc := newTestConn(t)
	conns.Add(cc)

	player := ws.Spawn("player", "tester", world.Pos{X: 512 * world.Milli, Z: 512 * world.Milli}, cc.ID, 100)
	cc.Entity = player.ID
	drone := ws.Spawn("drone", "drone", world.Pos{X: 520 * world.Milli, Z: 512 * world.Milli}, 0, 40)

	interest := NewInterestSystem(ws, conns)
	replicate := NewReplicateSystem(ws, conns, interest, world.DefaultComponentRegistry(), zap.NewNop())

	congest(cc)
	interest.Update(0)
	replicate.Update(0)

	// The drone leaves interest while its spawn is still stuck behind the
	// congestion frame. The observer walks away; the drone's grid cell is
	// untouched.
	player.Body.Pos = world.Pos{X: 100 * world.Milli, Z: 100 * world.Milli}
	interest.Update(0)
	replicate.Update(0)

	cc.Budget.Cancel(blockerKey)
	var sent [][]byte
	cc.Budget.Drain(time.Now(), func(f []byte) {
		sent = append(sent, append([]byte(nil), f...))
	})

	for _, op := range opcodes(sent) {
		if op == protocol.OpSpawn {
			t.Fatal("expected the stale spawn cancelled on interest exit")
		}
	}
	if cc.Shadow.Has(drone.ID) {
		t.Fatal("expected no shadow entry for an entity outside interest")
	}
	if cc.Interest.Contains(drone.ID) {
		t.Fatal("expected the drone outside the interest set")
	}
}
