package clock

import (
	"sort"
	"time"
)

// Sync estimates the round-trip time and the signed tick offset between the
// two clocks of one connection, from repeated probe/response exchanges.
// RTT is smoothed with an exponentially-weighted moving average; the tick
// offset uses the median of the sample window because bursty outliers skew
// a mean but barely move a median. State is owned by one goroutine.
type Sync struct {
	window       int
	minSamples   int
	tickInterval time.Duration

	samples  []sample
	smoothed time.Duration
	hasRTT   bool
}

type sample struct {
	rtt    time.Duration
	offset float64 // desired local tick − actual local tick, in ticks
}

// Adjustment tells the local tick loop what to do this frame.
type Adjustment struct {
	// Steps is how many local ticks to run this frame: 0 slows down,
	// 1 is nominal, 2 catches up.
	Steps int
	// HardReset is set when drift reached 2 ticks or more. Target is the
	// new local tick; it is never below the current one.
	HardReset bool
	Target    uint64
}

func NewSync(window, minSamples int, tickInterval time.Duration) *Sync {
	return &Sync{
		window:       window,
		minSamples:   minSamples,
		tickInterval: tickInterval,
	}
}

// AddSample records one completed probe: the measured RTT, the remote tick
// echoed in the response, and the local tick at receipt. The target local
// tick leads the remote tick by half the RTT in tick units, so intents
// arrive in time for the tick they name.
func (s *Sync) AddSample(rtt time.Duration, remoteTick, localTick uint64) {
	lead := float64(rtt/2) / float64(s.tickInterval)
	target := float64(remoteTick) + 2*lead // remote "now" ≈ remoteTick + rtt/2, plus the lead
	offset := target - float64(localTick)

	s.samples = append(s.samples, sample{rtt: rtt, offset: offset})
	if len(s.samples) > s.window {
		s.samples = s.samples[len(s.samples)-s.window:]
	}

	if !s.hasRTT {
		s.smoothed = rtt
		s.hasRTT = true
	} else {
		// EWMA with α = 1/8, the classic TCP smoothing constant.
		s.smoothed += (rtt - s.smoothed) / 8
	}
}

// Converged reports whether enough samples have accumulated for the
// estimate to be trusted.
func (s *Sync) Converged() bool {
	return len(s.samples) >= s.minSamples
}

// RTT returns the smoothed round-trip estimate.
func (s *Sync) RTT() time.Duration {
	return s.smoothed
}

// OffsetTicks returns the median signed tick offset of the sample window.
func (s *Sync) OffsetTicks() float64 {
	if len(s.samples) == 0 {
		return 0
	}
	offs := make([]float64, len(s.samples))
	for i, sm := range s.samples {
		offs[i] = sm.offset
	}
	sort.Float64s(offs)
	mid := len(offs) / 2
	if len(offs)%2 == 1 {
		return offs[mid]
	}
	return (offs[mid-1] + offs[mid]) / 2
}

// Adjust decides the local tick correction for this frame. Drift under 2
// ticks is absorbed by transiently running faster or slower; drift of 2
// ticks or more hard-resets. The returned target never decreases the local
// tick: a large negative drift is corrected by holding the counter still
// until the remote clock catches up.
func (s *Sync) Adjust(localTick uint64) Adjustment {
	if !s.Converged() {
		return Adjustment{Steps: 1}
	}
	off := s.OffsetTicks()
	switch {
	case off >= 2:
		target := localTick + uint64(off+0.5)
		s.clearSamples()
		return Adjustment{Steps: 1, HardReset: true, Target: target}
	case off <= -2:
		// Cannot jump backwards; freeze the counter instead.
		s.clearSamples()
		return Adjustment{Steps: 0, HardReset: true, Target: localTick}
	case off >= 0.5:
		return Adjustment{Steps: 2}
	case off <= -0.5:
		return Adjustment{Steps: 0}
	default:
		return Adjustment{Steps: 1}
	}
}

// Reset discards all state. Used on reconnect.
func (s *Sync) Reset() {
	s.samples = s.samples[:0]
	s.smoothed = 0
	s.hasRTT = false
}

// clearSamples drops the offset window after a hard reset — the samples
// were measured against the old counter and would fight the correction.
func (s *Sync) clearSamples() {
	s.samples = s.samples[:0]
}
