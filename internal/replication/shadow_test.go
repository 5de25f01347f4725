package replication

import (
	"testing"

	"go.uber.org/zap"

	"github.com/orbcraft/server/internal/world"
)

func testEntity(t *testing.T) (*world.State, *world.Entity, *world.ComponentRegistry) {
	t.Helper()
	ws := world.NewState(1024, 32)
	e := ws.Spawn("drone", "scout", world.Pos{X: 100 * world.Milli, Y: 0, Z: 100 * world.Milli}, 0, 50)
	return ws, e, world.DefaultComponentRegistry()
}

func TestDiffBeforeAnyCommitReturnsEverything(t *testing.T) {
	_, e, reg := testEntity(t)
	sh := NewShadow(zap.NewNop())

	changed := sh.Diff(e, reg)
	if len(changed) != 4 {
		t.Fatalf("expected all 4 components changed for an unseen entity, got %d", len(changed))
	}
	// Ascending tag order is part of the contract.
	for i := 1; i < len(changed); i++ {
		if changed[i-1].Tag >= changed[i].Tag {
			t.Fatalf("expected ascending tag order, got %v then %v", changed[i-1].Tag, changed[i].Tag)
		}
	}
}

func TestDiffAfterCommitIsEmpty(t *testing.T) {
	_, e, reg := testEntity(t)
	sh := NewShadow(zap.NewNop())

	sh.Commit(e.ID, sh.FullState(e, reg))

	if changed := sh.Diff(e, reg); len(changed) != 0 {
		t.Fatalf("expected no diff against a committed shadow, got %d components", len(changed))
	}
}

func TestDiffDetectsOnlyChangedComponents(t *testing.T) {
	ws, e, reg := testEntity(t)
	sh := NewShadow(zap.NewNop())
	sh.Commit(e.ID, sh.FullState(e, reg))

	// Move the entity: transform and kinetics change, health and label don't.
	ws.ApplyIntent(e, world.Intent{MoveX: 1}, 0.05)

	changed := sh.Diff(e, reg)
	if len(changed) != 2 {
		t.Fatalf("expected transform+kinetics changed, got %d components", len(changed))
	}
	if changed[0].Tag != world.CompTransform || changed[1].Tag != world.CompKinetics {
		t.Fatalf("unexpected changed tags %d, %d", changed[0].Tag, changed[1].Tag)
	}
}

func TestUncommittedDiffAccumulates(t *testing.T) {
	ws, e, reg := testEntity(t)
	sh := NewShadow(zap.NewNop())
	sh.Commit(e.ID, sh.FullState(e, reg))

	// Two moves, no commit in between: the deferred first delta must not
	// advance the shadow, so the second diff still reports the full drift.
	ws.ApplyIntent(e, world.Intent{MoveX: 1}, 0.05)
	first := sh.Diff(e, reg)
	ws.ApplyIntent(e, world.Intent{MoveX: 1}, 0.05)
	second := sh.Diff(e, reg)

	if len(first) == 0 || len(second) == 0 {
		t.Fatal("expected both diffs non-empty")
	}
	// Committing the second and re-diffing must now be clean.
	sh.Commit(e.ID, second)
	if changed := sh.Diff(e, reg); len(changed) != 0 {
		t.Fatalf("expected clean diff after commit, got %d", len(changed))
	}
}

func TestDropForgetsEntity(t *testing.T) {
	_, e, reg := testEntity(t)
	sh := NewShadow(zap.NewNop())
	sh.Commit(e.ID, sh.FullState(e, reg))

	sh.Drop(e.ID)
	if sh.Has(e.ID) {
		t.Fatal("expected entity forgotten after drop")
	}
	if changed := sh.Diff(e, reg); len(changed) != 4 {
		t.Fatalf("expected full state diff after drop, got %d", len(changed))
	}
}
