package handler

import (
	stdnet "net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/conn"
	gonet "github.com/orbcraft/server/internal/net"
	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/world"
)

func newHandlerConn(t *testing.T, id uint64) *conn.Conn {
	t.Helper()
	client, server := stdnet.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	sess := gonet.NewSession(server, id, 8, 8, 0, zap.NewNop())
	sess.SetState(protocol.StateInWorld)
	cc := conn.New(sess, "", conn.Settings{
		InterestRadius: 64,
		StreamRadius:   1,
		StreamPending:  1,
		BudgetBytes:    4096,
		UpdateExpiry:   500,
		ClockWindow:    16,
		ClockMin:       8,
		TickMillis:     50,
	}, zap.NewNop())
	return cc
}

func TestChatRelaysOnlyWithinInterest(t *testing.T) {
	ws := world.NewState(1024, 32)
	conns := conn.NewStore()

	sender := newHandlerConn(t, 1)
	sender.Name = "alice"
	se := ws.Spawn("player", "alice", world.Pos{X: 512 * world.Milli, Z: 512 * world.Milli}, 1, 100)
	sender.Entity = se.ID
	conns.Add(sender)

	near := newHandlerConn(t, 2)
	ne := ws.Spawn("player", "bob", world.Pos{X: 520 * world.Milli, Z: 512 * world.Milli}, 2, 100)
	near.Entity = ne.ID
	near.Interest.Recompute(ws, ne.Body.Pos, ne.ID)
	conns.Add(near)

	far := newHandlerConn(t, 3)
	fe := ws.Spawn("player", "carol", world.Pos{X: 100 * world.Milli, Z: 100 * world.Milli}, 3, 100)
	far.Entity = fe.ID
	far.Interest.Recompute(ws, fe.Body.Pos, fe.ID)
	conns.Add(far)

	h := &Handlers{Conns: conns, Log: zap.NewNop()}
	body, err := protocol.Marshal(protocol.Chat{Text: "hello"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	h.HandleChat(sender, body)

	if sender.Budget.QueuedLen() != 1 {
		t.Fatalf("expected the sender to hear their own message, got %d queued", sender.Budget.QueuedLen())
	}
	if near.Budget.QueuedLen() != 1 {
		t.Fatalf("expected the nearby client to get the relay, got %d queued", near.Budget.QueuedLen())
	}
	if far.Budget.QueuedLen() != 0 {
		t.Fatalf("expected no relay outside interest, got %d queued", far.Budget.QueuedLen())
	}
}

func TestChatSenderNameIsAuthoritative(t *testing.T) {
	ws := world.NewState(1024, 32)
	conns := conn.NewStore()

	sender := newHandlerConn(t, 1)
	sender.Name = "alice"
	se := ws.Spawn("player", "alice", world.Pos{X: 512 * world.Milli, Z: 512 * world.Milli}, 1, 100)
	sender.Entity = se.ID
	conns.Add(sender)

	h := &Handlers{Conns: conns, Log: zap.NewNop()}
	body, _ := protocol.Marshal(protocol.Chat{From: "mallory", Text: "hi"})
	h.HandleChat(sender, body)

	var relayed protocol.Chat
	cnt := 0
	sender.Budget.Drain(time.Now(), func(frame []byte) {
		cnt++
		if frame[0] != protocol.OpChatRelay {
			t.Fatalf("expected chat relay opcode, got %d", frame[0])
		}
		if err := protocol.Unmarshal(frame[1:], &relayed); err != nil {
			t.Fatalf("unmarshal relay: %v", err)
		}
	})
	if cnt != 1 {
		t.Fatalf("expected 1 relay frame, got %d", cnt)
	}
	if relayed.From != "alice" {
		t.Fatalf("expected server-assigned sender name, got %q", relayed.From)
	}
}
