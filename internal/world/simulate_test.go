package world

import "testing"

const simExtent = 256 * Milli

func TestSimulateDeterministic(t *testing.T) {
	in := Intent{MoveX: 0.7, MoveZ: -0.2, Yaw: 45}
	a := Body{Pos: Pos{X: 10 * Milli, Y: 5 * Milli, Z: 10 * Milli}}
	b := a
	for i := 0; i < 200; i++ {
		a = Simulate(a, in, 0.05, simExtent)
		b = Simulate(b, in, 0.05, simExtent)
	}
	if a != b {
		t.Fatalf("identical inputs diverged: %+v vs %+v", a, b)
	}
}

func TestSimulateWrapsAtExtent(t *testing.T) {
	b := Body{Pos: Pos{X: simExtent - 100, Y: 0, Z: 0}, OnGround: true}
	in := Intent{MoveX: 1}
	for i := 0; i < 10; i++ {
		b = Simulate(b, in, 0.05, simExtent)
	}
	if b.Pos.X < 0 || b.Pos.X >= simExtent {
		t.Fatalf("expected wrapped X in [0,%d), got %d", simExtent, b.Pos.X)
	}
	if b.Pos.X > simExtent/2 {
		t.Fatalf("expected position to have crossed the seam to the low side, got %d", b.Pos.X)
	}
}

func TestSimulateJumpAndLand(t *testing.T) {
	b := Body{OnGround: true}
	b = Simulate(b, Intent{Jump: true}, 0.05, simExtent)
	if b.OnGround {
		t.Fatal("expected airborne after jump")
	}
	if b.Pos.Y <= 0 {
		t.Fatalf("expected upward motion, got Y=%d", b.Pos.Y)
	}

	for i := 0; i < 100 && !b.OnGround; i++ {
		b = Simulate(b, Intent{}, 0.05, simExtent)
	}
	if !b.OnGround || b.Pos.Y != 0 {
		t.Fatalf("expected landing on the ground plane, got %+v", b)
	}
}

func TestSimulateIdleGlidesToStop(t *testing.T) {
	b := Body{Vel: Vec3{X: moveSpeed}, OnGround: true}
	for i := 0; i < 100; i++ {
		b = Simulate(b, Intent{}, 0.05, simExtent)
	}
	if b.Vel.X > 0.01 {
		t.Fatalf("expected velocity decayed to near zero, got %f", b.Vel.X)
	}
}
