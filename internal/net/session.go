package net

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/orbcraft/server/internal/protocol"
)

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; game state is accessed only from the tick loop.
type Session struct {
	ID   uint64
	conn net.Conn

	state atomic.Int32 // protocol.SessionState stored as int32

	InQueue  chan []byte // tick loop reads frames from here
	OutQueue chan []byte // writer goroutine reads from here

	IP string

	outBuf [][]byte // buffered frames, flushed by OutputSystem (tick loop only)

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	limiter  *rate.Limiter // inbound frame rate (readLoop goroutine)
	lastRecv atomic.Int64  // unix nanos of last inbound frame, for heartbeat

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, inSize, outSize int, framesPerSec float64, log *zap.Logger) *Session {
	s := &Session{
		ID:       id,
		conn:     conn,
		InQueue:  make(chan []byte, inSize),
		OutQueue: make(chan []byte, outSize),
		IP:       conn.RemoteAddr().String(),
		closeCh:  make(chan struct{}),
		log:      log.With(zap.Uint64("session", id)),
	}
	if framesPerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(framesPerSec), int(framesPerSec))
	}
	s.state.Store(int32(protocol.StateHandshake))
	s.lastRecv.Store(time.Now().UnixNano())
	return s
}

func (s *Session) State() protocol.SessionState {
	return protocol.SessionState(s.state.Load())
}

func (s *Session) SetState(st protocol.SessionState) {
	s.state.Store(int32(st))
}

// LastRecv returns when the last inbound frame arrived.
func (s *Session) LastRecv() time.Time {
	return time.Unix(0, s.lastRecv.Load())
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a frame for sending. The frame is not written to TCP until
// FlushOutput is called by OutputSystem at the end of the tick.
// Called only from the tick loop goroutine — no lock needed on outBuf.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, data)
}

// FlushOutput drains the output buffer to OutQueue for the writeLoop goroutine.
// Non-blocking: if OutQueue is full, the session is disconnected (backpressure).
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, dropping slow connection")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(protocol.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop runs in its own goroutine. It reads frames from the TCP connection
// and pushes them onto InQueue for the tick loop to consume.
func (s *Session) readLoop() {
	defer s.Close()

	ctx := context.Background()
	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		payload, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		s.lastRecv.Store(time.Now().UnixNano())

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}

		// Block until InQueue has space or the session closes. Dropping
		// frames here would lose client intents, which the prediction layer
		// cannot recover from. Blocking is safe: the readLoop goroutine is
		// per-session, so it only stalls this client.
		select {
		case s.InQueue <- payload:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop runs in its own goroutine. It reads frames from OutQueue and
// writes them to the TCP connection.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.writeOneFrame(data) {
				return
			}
			for len(s.OutQueue) > 0 {
				select {
				case more := <-s.OutQueue:
					if !s.writeOneFrame(more) {
						return
					}
				case <-s.closeCh:
					return
				}
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeOneFrame(data []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := WriteFrame(s.conn, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
