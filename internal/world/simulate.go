package world

import (
	"math"

	"github.com/orbcraft/server/internal/protocol"
)

// Intent is the decoded movement request for one tick. MoveX/MoveZ are a
// direction in [-1,1]; magnitudes above 1 are rejected by validation before
// they ever reach Simulate.
type Intent struct {
	MoveX float32 `codec:"x"`
	MoveZ float32 `codec:"z"`
	Jump  bool    `codec:"j"`
	Yaw   float32 `codec:"h"`
}

// TaggedIntent pairs an intent with the client tick it targets.
type TaggedIntent struct {
	Tick   uint64
	Intent Intent
}

// EncodeIntent/DecodeIntent are the opaque-payload boundary: the transport
// carries bytes, both simulation sites decode with the same code.

func EncodeIntent(in Intent) ([]byte, error) {
	return protocol.Marshal(in)
}

func DecodeIntent(data []byte) (Intent, error) {
	var in Intent
	err := protocol.Unmarshal(data, &in)
	return in, err
}

// Movement constants. Shared by server and client — changing one side only
// is the desync bug class this file exists to prevent.
const (
	moveSpeed   = 6.0  // units/s
	accelFactor = 0.4  // per-tick blend toward target velocity
	gravity     = 24.0 // units/s²
	jumpSpeed   = 8.0  // units/s
)

// Simulate advances a body by one fixed step under an intent. It is pure and
// deterministic: same body, same intent, same dt and extent give the same
// result on every call site. Terrain collision beyond the ground plane is an
// external concern.
func Simulate(b Body, in Intent, dt float64, extent int64) Body {
	// Blend horizontal velocity toward the intended direction.
	b.Vel.X += (float64(in.MoveX)*moveSpeed - b.Vel.X) * accelFactor
	b.Vel.Z += (float64(in.MoveZ)*moveSpeed - b.Vel.Z) * accelFactor
	b.Yaw = in.Yaw

	if in.Jump && b.OnGround {
		b.Vel.Y = jumpSpeed
		b.OnGround = false
	}
	if !b.OnGround {
		b.Vel.Y -= gravity * dt
	}

	// Integrate in milliunits with explicit rounding so both call sites
	// produce bit-identical positions.
	b.Pos.X += int64(math.Round(b.Vel.X * dt * Milli))
	b.Pos.Y += int64(math.Round(b.Vel.Y * dt * Milli))
	b.Pos.Z += int64(math.Round(b.Vel.Z * dt * Milli))
	b.Pos = b.Pos.Wrap(extent)

	if b.Pos.Y <= 0 {
		b.Pos.Y = 0
		b.Vel.Y = 0
		b.OnGround = true
	}
	return b
}
