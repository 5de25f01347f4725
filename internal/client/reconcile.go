package client

import (
	"math"

	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/world"
)

const (
	// reconcileEpsilon is the squared error (world units) below which a
	// correction is considered rounding noise and ignored.
	reconcileEpsilon = 0.001 * 0.001
	// defaultSnapThreshold is the error (world units) at or beyond which
	// the client snaps instead of smoothing. Half a unit of visible
	// rubber-banding is worse than one discontinuity.
	defaultSnapThreshold = 0.5
	// smoothDecay is how much visual offset survives one tick. At 50ms
	// ticks the offset is effectively gone in about 100ms.
	smoothDecay = 0.5
)

// Predictor runs the shared simulation ahead of the server and folds
// authoritative corrections back in by rewind-and-replay.
type Predictor struct {
	Body   world.Body
	buf    *InputBuffer
	extent int64
	dt     float64
	snap   float64    // error at or beyond this snaps instead of smoothing
	smooth world.Vec3 // visual-only offset decayed toward zero
}

func NewPredictor(extent int64, tickMillis int, bufferCap int) *Predictor {
	return &Predictor{
		buf:    NewInputBuffer(bufferCap),
		extent: extent,
		dt:     float64(tickMillis) / 1000,
		snap:   defaultSnapThreshold,
	}
}

// SetSnapThreshold overrides the snap threshold, in world units.
func (p *Predictor) SetSnapThreshold(units float64) {
	if units > 0 {
		p.snap = units
	}
}

func (p *Predictor) Buffered() int { return p.buf.Len() }

// Predict applies one local input immediately and records it for replay.
func (p *Predictor) Predict(tick uint64, in world.Intent) {
	p.buf.Push(world.TaggedIntent{Tick: tick, Intent: in})
	p.Body = world.Simulate(p.Body, in, p.dt, p.extent)
}

// Reconcile folds one authoritative own-state frame in: rewind to the
// server's body, drop acknowledged inputs, replay the rest. The difference
// between the old and new prediction becomes a decaying visual offset so
// small corrections never pop on screen.
func (p *Predictor) Reconcile(st protocol.OwnState) {
	predicted := p.Body

	body := world.Body{
		Pos: world.Pos{X: st.X, Y: st.Y, Z: st.Z},
		Vel: world.Vec3{X: st.VX, Y: st.VY, Z: st.VZ},
		Yaw: predicted.Yaw,
	}
	body.OnGround = body.Pos.Y <= 0

	p.buf.DiscardThrough(st.Tick)
	p.buf.Each(func(ti world.TaggedIntent) {
		body = world.Simulate(body, ti.Intent, p.dt, p.extent)
	})
	p.Body = body

	errVec := world.LocalOffset(predicted.Pos, body.Pos, p.extent)
	err2 := errVec.Len2()
	switch {
	case err2 <= reconcileEpsilon:
		// Prediction held; nothing to hide.
	case math.Sqrt(err2) >= p.snap:
		p.smooth = world.Vec3{}
	default:
		p.smooth = p.smooth.Add(errVec)
	}
}

// Step decays the visual offset; call once per local tick.
func (p *Predictor) Step() {
	p.smooth = p.smooth.Scale(smoothDecay)
	if p.smooth.Len2() <= reconcileEpsilon {
		p.smooth = world.Vec3{}
	}
}

// RenderPos is the smoothed position for display: the true predicted body
// plus the decaying correction offset.
func (p *Predictor) RenderPos() world.Pos {
	return world.Pos{
		X: p.Body.Pos.X + int64(math.Round(p.smooth.X*world.Milli)),
		Y: p.Body.Pos.Y + int64(math.Round(p.smooth.Y*world.Milli)),
		Z: p.Body.Pos.Z + int64(math.Round(p.smooth.Z*world.Milli)),
	}.Wrap(p.extent)
}
