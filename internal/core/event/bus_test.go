package event

import (
	"testing"

	"github.com/orbcraft/server/internal/core/ecs"
)

func TestBusDeliversAfterSwap(t *testing.T) {
	b := NewBus()

	var got []EntityUpdated
	Subscribe(b, func(ev EntityUpdated) { got = append(got, ev) })

	Emit(b, EntityUpdated{EntityID: ecs.NetworkID(1), Tick: 10})
	Emit(b, EntityUpdated{EntityID: ecs.NetworkID(2), Tick: 10})

	// Events sit in the back buffer until the next tick swaps it in.
	b.DispatchAll()
	if len(got) != 0 {
		t.Fatalf("expected no delivery before swap, got %d", len(got))
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 2 {
		t.Fatalf("expected 2 events after swap, got %d", len(got))
	}
	if got[0].EntityID != 1 || got[1].EntityID != 2 {
		t.Fatalf("expected emit order preserved, got %v", got)
	}
}

func TestBusSeparatesTicks(t *testing.T) {
	b := NewBus()

	var spawns []EntitySpawned
	Subscribe(b, func(ev EntitySpawned) { spawns = append(spawns, ev) })

	Emit(b, EntitySpawned{EntityID: 1, Kind: "drone"})
	b.SwapBuffers()
	Emit(b, EntitySpawned{EntityID: 2, Kind: "drone"})
	b.DispatchAll()

	if len(spawns) != 1 || spawns[0].EntityID != 1 {
		t.Fatalf("expected only the first tick's event, got %v", spawns)
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(spawns) != 2 || spawns[1].EntityID != 2 {
		t.Fatalf("expected the second tick's event next, got %v", spawns)
	}
}

func TestBusIgnoresUnsubscribedTypes(t *testing.T) {
	b := NewBus()
	Emit(b, ClientLeft{SessionID: 1})
	b.SwapBuffers()
	b.DispatchAll() // no handler registered; must not panic
}
