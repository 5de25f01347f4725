package data

import (
	"os"
	"path/filepath"
	"testing"
)

func loadTable(t *testing.T, body string) (*ArchetypeTable, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archetypes.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write archetypes: %v", err)
	}
	return LoadArchetypeTable(path)
}

func TestLoadArchetypeTable(t *testing.T) {
	table, err := loadTable(t, `
archetypes:
  - kind: player
    name: Player
    max_hp: 100
    spawn_y: 32
  - kind: beacon
    name: Beacon
    max_hp: 1000
    interest_radius: 96
`)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if table.Count() != 2 {
		t.Fatalf("expected 2 archetypes, got %d", table.Count())
	}
	b := table.Get("beacon")
	if b == nil || b.MaxHP != 1000 || b.InterestRadius != 96 {
		t.Fatalf("unexpected beacon archetype %+v", b)
	}
	if table.Get("ghost") != nil {
		t.Fatal("expected nil for an unknown kind")
	}
}

func TestLoadArchetypeTableRejectsDuplicates(t *testing.T) {
	_, err := loadTable(t, `
archetypes:
  - kind: drone
    name: Drone A
  - kind: drone
    name: Drone B
`)
	if err == nil {
		t.Fatal("expected duplicate kinds to fail the load")
	}
}

func TestEachVisitsKindsInOrder(t *testing.T) {
	table, err := loadTable(t, `
archetypes:
  - kind: zephyr
    name: Zephyr
  - kind: beacon
    name: Beacon
  - kind: moth
    name: Moth
`)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var kinds []string
	table.Each(func(a *Archetype) { kinds = append(kinds, a.Kind) })
	want := []string{"beacon", "moth", "zephyr"}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected ascending kind order %v, got %v", want, kinds)
		}
	}
}
