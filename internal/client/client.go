// Package client implements the game-side half of the protocol: prediction,
// reconciliation, clock sync, and chunk assembly. The orbbot binary drives
// it headless; a rendering frontend would sit on top of the same type.
package client

import (
	"context"
	"fmt"
	stdnet "net"
	"time"

	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/chunk"
	"github.com/orbcraft/server/internal/clock"
	"github.com/orbcraft/server/internal/net"
	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/stream"
	"github.com/orbcraft/server/internal/world"
)

// RemoteEntity is another entity as this client currently sees it.
type RemoteEntity struct {
	ID         uint64
	Components map[uint8][]byte
	LastTick   uint64
}

// IntentFunc produces the input for one local tick.
type IntentFunc func(tick uint64) world.Intent

// Client is one connection's full client state. Single-goroutine: Run owns
// everything, the reader goroutine only ferries raw frames.
type Client struct {
	conn     stdnet.Conn
	incoming chan []byte
	readErr  chan error

	SessionID uint64
	NetworkID uint64

	tick       uint64
	tickMillis uint32
	extent     int64

	sync   *clock.Sync
	prober *clock.Prober
	pred   *Predictor

	entities map[uint64]*RemoteEntity
	chunks   map[chunk.ID]uint32 // received chunk versions

	pingEvery time.Duration
	lastPing  time.Time

	log *zap.Logger
}

// Dial connects, joins, and blocks until the server acknowledges.
func Dial(addr, name string, log *zap.Logger) (*Client, error) {
	conn, err := stdnet.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if err := net.WriteFrame(conn, protocol.MustEncode(protocol.OpJoin, protocol.Join{Name: name})); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send join: %w", err)
	}

	// The ack is the first frame the server sends after a join.
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	frame, err := net.ReadFrame(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read join ack: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	if len(frame) == 0 || frame[0] != protocol.OpJoinAck {
		conn.Close()
		return nil, fmt.Errorf("unexpected first frame opcode %d", frame[0])
	}
	var ack protocol.JoinAck
	if err := protocol.Unmarshal(frame[1:], &ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("decode join ack: %w", err)
	}

	tickInterval := time.Duration(ack.TickMillis) * time.Millisecond
	c := &Client{
		conn:       conn,
		incoming:   make(chan []byte, 256),
		readErr:    make(chan error, 1),
		SessionID:  ack.SessionID,
		NetworkID:  ack.NetworkID,
		tick:       ack.Tick,
		tickMillis: ack.TickMillis,
		extent:     ack.WorldExtent,
		sync:       clock.NewSync(16, 8, tickInterval),
		prober:     clock.NewProber(),
		pred:       NewPredictor(ack.WorldExtent, int(ack.TickMillis), 128),
		entities:   make(map[uint64]*RemoteEntity),
		chunks:     make(map[chunk.ID]uint32),
		pingEvery:  time.Second,
		log:        log.With(zap.Uint64("session", ack.SessionID)),
	}
	go c.readLoop()

	c.log.Info("joined",
		zap.Uint64("entity", ack.NetworkID),
		zap.Uint64("tick", ack.Tick),
		zap.Int64("extent", ack.WorldExtent),
	)
	return c, nil
}

func (c *Client) readLoop() {
	for {
		frame, err := net.ReadFrame(c.conn)
		if err != nil {
			c.readErr <- err
			return
		}
		c.incoming <- frame
	}
}

func (c *Client) send(frame []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return net.WriteFrame(c.conn, frame)
}

// Tick returns the client's current predicted tick.
func (c *Client) Tick() uint64 { return c.tick }

// Predictor exposes the prediction state for the frontend.
func (c *Client) Predictor() *Predictor { return c.pred }

// Entities returns the visible remote entity map. Valid only between Run
// iterations (same goroutine).
func (c *Client) Entities() map[uint64]*RemoteEntity { return c.entities }

// ChunkCount returns how many chunks the client holds.
func (c *Client) ChunkCount() int { return len(c.chunks) }

// Converged reports whether clock sync has enough samples to steer ticks.
func (c *Client) Converged() bool { return c.sync.Converged() }

// Close tears down the connection.
func (c *Client) Close() error {
	c.send(protocol.MustEncode(protocol.OpLeave, protocol.Leave{}))
	return c.conn.Close()
}

// Run drives the local tick loop until ctx ends or the connection drops.
// intent is called once per advanced tick.
func (c *Client) Run(ctx context.Context, intent IntentFunc) error {
	ticker := time.NewTicker(time.Duration(c.tickMillis) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-c.readErr:
			return fmt.Errorf("connection lost: %w", err)
		case <-ticker.C:
			c.drainIncoming()
			c.step(intent)
		}
	}
}

func (c *Client) drainIncoming() {
	for {
		select {
		case frame := <-c.incoming:
			c.handle(frame)
		default:
			return
		}
	}
}

// step advances the local clock by whatever the sync filter dictates: the
// usual one tick, two to catch up, zero to let the server catch up, or a
// forward jump on hard reset.
func (c *Client) step(intent IntentFunc) {
	now := time.Now()

	adj := c.sync.Adjust(c.tick)
	if adj.HardReset {
		c.log.Warn("clock hard reset", zap.Uint64("from", c.tick), zap.Uint64("to", adj.Target))
		c.tick = adj.Target
	}
	for i := 0; i < adj.Steps; i++ {
		c.tick++
		in := intent(c.tick)
		c.pred.Predict(c.tick, in)
		payload, err := world.EncodeIntent(in)
		if err != nil {
			c.log.Error("encode intent", zap.Error(err))
			continue
		}
		if err := c.send(protocol.MustEncode(protocol.OpIntent, protocol.Intent{
			Tick:    c.tick,
			Payload: payload,
		})); err != nil {
			c.log.Debug("send intent", zap.Error(err))
		}
	}
	c.pred.Step()

	if now.Sub(c.lastPing) >= c.pingEvery {
		c.lastPing = now
		if err := c.send(protocol.MustEncode(protocol.OpPing, c.prober.NextPing(now))); err != nil {
			c.log.Debug("send ping", zap.Error(err))
		}
	}
}

func (c *Client) handle(frame []byte) {
	if len(frame) == 0 {
		return
	}
	op, body := frame[0], frame[1:]
	switch op {
	case protocol.OpPong:
		var msg protocol.Pong
		if protocol.Unmarshal(body, &msg) != nil {
			return
		}
		if rtt, ok := c.prober.Resolve(msg.Sequence, time.Now()); ok {
			c.sync.AddSample(rtt, msg.Tick, c.tick)
		}

	case protocol.OpPing:
		// Server probe: answer with our local tick.
		var msg protocol.Ping
		if protocol.Unmarshal(body, &msg) != nil {
			return
		}
		c.send(protocol.MustEncode(protocol.OpPong, protocol.Pong{
			Sequence: msg.Sequence,
			Tick:     c.tick,
		}))

	case protocol.OpOwnState:
		var msg protocol.OwnState
		if protocol.Unmarshal(body, &msg) != nil {
			return
		}
		c.pred.Reconcile(msg)

	case protocol.OpSpawn:
		var msg protocol.Spawn
		if protocol.Unmarshal(body, &msg) != nil {
			return
		}
		re := &RemoteEntity{ID: msg.NetworkID, Components: make(map[uint8][]byte, len(msg.Components))}
		for _, comp := range msg.Components {
			re.Components[comp.Tag] = comp.Data
		}
		c.entities[msg.NetworkID] = re

	case protocol.OpUpdate:
		var msg protocol.Update
		if protocol.Unmarshal(body, &msg) != nil {
			return
		}
		re, ok := c.entities[msg.NetworkID]
		if !ok {
			// Update before spawn should not happen; treat it as partial
			// knowledge rather than dropping state on the floor.
			re = &RemoteEntity{ID: msg.NetworkID, Components: make(map[uint8][]byte)}
			c.entities[msg.NetworkID] = re
		}
		for _, comp := range msg.Changed {
			re.Components[comp.Tag] = comp.Data
		}
		re.LastTick = msg.Tick

	case protocol.OpDespawn:
		var msg protocol.Despawn
		if protocol.Unmarshal(body, &msg) != nil {
			return
		}
		delete(c.entities, msg.NetworkID)

	case protocol.OpChunkData:
		var msg protocol.ChunkData
		if protocol.Unmarshal(body, &msg) != nil {
			return
		}
		if _, err := stream.Decompress(msg.Compressed, int(msg.RawSize)); err != nil {
			c.log.Warn("chunk decompress failed",
				zap.Int32("cx", msg.ChunkX), zap.Int32("cz", msg.ChunkZ), zap.Error(err))
			return
		}
		c.chunks[chunk.ID{X: msg.ChunkX, Z: msg.ChunkZ}] = msg.Version

	case protocol.OpEditNotify:
		var msg protocol.BlockEdit
		if protocol.Unmarshal(body, &msg) != nil {
			return
		}
		// The edit supersedes whatever version we hold; the streamer on the
		// server already bumped our record to match.
		if v, ok := c.chunks[chunk.ID{X: msg.ChunkX, Z: msg.ChunkZ}]; ok {
			c.chunks[chunk.ID{X: msg.ChunkX, Z: msg.ChunkZ}] = v + 1
		}

	case protocol.OpChatRelay:
		var msg protocol.Chat
		if protocol.Unmarshal(body, &msg) != nil {
			return
		}
		c.log.Info("chat", zap.String("from", msg.From), zap.String("text", msg.Text))
	}
}
