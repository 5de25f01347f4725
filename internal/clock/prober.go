package clock

import (
	"time"

	"github.com/orbcraft/server/internal/protocol"
)

// Prober issues Ping probes and pairs Pong responses back to their send
// times. Outstanding probes that never get answered are aged out so a lossy
// peer cannot grow the map unboundedly.
type Prober struct {
	nextSeq     uint32
	outstanding map[uint32]time.Time
	maxAge      time.Duration
}

func NewProber() *Prober {
	return &Prober{
		outstanding: make(map[uint32]time.Time, 8),
		maxAge:      10 * time.Second,
	}
}

// NextPing builds the next probe, stamped with now.
func (p *Prober) NextPing(now time.Time) protocol.Ping {
	p.nextSeq++
	p.outstanding[p.nextSeq] = now
	// Drop stale probes.
	for seq, sent := range p.outstanding {
		if now.Sub(sent) > p.maxAge {
			delete(p.outstanding, seq)
		}
	}
	return protocol.Ping{SendTime: now.UnixNano(), Sequence: p.nextSeq}
}

// Resolve matches a Pong's sequence to its probe and returns the measured
// RTT. Unknown or duplicate sequences return false.
func (p *Prober) Resolve(seq uint32, now time.Time) (time.Duration, bool) {
	sent, ok := p.outstanding[seq]
	if !ok {
		return 0, false
	}
	delete(p.outstanding, seq)
	return now.Sub(sent), true
}
