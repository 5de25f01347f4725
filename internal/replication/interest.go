package replication

import (
	"sort"

	"github.com/orbcraft/server/internal/core/ecs"
	"github.com/orbcraft/server/internal/world"
)

// InterestSet is one client's current set of relevant entities, recomputed
// each tick from the spatial grid.
type InterestSet struct {
	Radius  float64
	current map[ecs.NetworkID]struct{}
}

func NewInterestSet(radius float64) *InterestSet {
	return &InterestSet{
		Radius:  radius,
		current: make(map[ecs.NetworkID]struct{}),
	}
}

// Recompute queries the world for entities within the interest sphere around
// center, excluding the client's own entity, and replaces the set. It
// returns entered = current − previous and exited = previous − current, both
// sorted ascending by NetworkID so entry/exit processing order is fixed.
func (is *InterestSet) Recompute(ws *world.State, center world.Pos, self ecs.NetworkID) (entered, exited []ecs.NetworkID) {
	ids := ws.QueryRadius(center, is.Radius)

	next := make(map[ecs.NetworkID]struct{}, len(ids))
	for _, id := range ids {
		if id == self {
			continue
		}
		next[id] = struct{}{}
		if _, had := is.current[id]; !had {
			entered = append(entered, id)
		}
	}
	for id := range is.current {
		if _, still := next[id]; !still {
			exited = append(exited, id)
		}
	}
	is.current = next

	// QueryRadius already sorts, so entered is ascending; exited came from
	// map iteration and needs the sort.
	sort.Slice(exited, func(i, j int) bool { return exited[i] < exited[j] })
	return entered, exited
}

// Contains reports whether id is currently relevant to this client.
func (is *InterestSet) Contains(id ecs.NetworkID) bool {
	_, ok := is.current[id]
	return ok
}

// Each visits the current members in unspecified order.
func (is *InterestSet) Each(fn func(ecs.NetworkID)) {
	for id := range is.current {
		fn(id)
	}
}

// Len returns the current member count.
func (is *InterestSet) Len() int { return len(is.current) }
