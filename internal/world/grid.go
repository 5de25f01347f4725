package world

import "github.com/orbcraft/server/internal/core/ecs"

// Grid is a cell-based spatial index over the wrapping X/Z surface.
// Neighbourhood lookups wrap modulo the cell count, so a query shape
// straddling the world seam sees entities on the other side.
// Accessed only from the tick loop goroutine — no locks.

type cellKey struct {
	cx int32
	cz int32
}

type Grid struct {
	cellSize int64 // milliunits
	perAxis  int32 // cells per wrapping axis
	cells    map[cellKey]map[ecs.NetworkID]struct{}
}

// NewGrid builds a grid covering extent milliunits per wrapping axis.
// extent must be a multiple of cellSize.
func NewGrid(extent, cellSize int64) *Grid {
	return &Grid{
		cellSize: cellSize,
		perAxis:  int32(extent / cellSize),
		cells:    make(map[cellKey]map[ecs.NetworkID]struct{}),
	}
}

func (g *Grid) coord(v int64) int32 {
	c := int32((v / g.cellSize) % int64(g.perAxis))
	if c < 0 {
		c += g.perAxis
	}
	return c
}

func (g *Grid) wrapCell(c int32) int32 {
	c %= g.perAxis
	if c < 0 {
		c += g.perAxis
	}
	return c
}

func (g *Grid) key(p Pos) cellKey {
	return cellKey{cx: g.coord(p.X), cz: g.coord(p.Z)}
}

// Add places an entity into the grid.
func (g *Grid) Add(id ecs.NetworkID, p Pos) {
	k := g.key(p)
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[ecs.NetworkID]struct{})
		g.cells[k] = cell
	}
	cell[id] = struct{}{}
}

// Remove takes an entity out of the grid.
func (g *Grid) Remove(id ecs.NetworkID, p Pos) {
	k := g.key(p)
	cell := g.cells[k]
	if cell != nil {
		delete(cell, id)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
}

// Move updates an entity's cell when its position changes.
func (g *Grid) Move(id ecs.NetworkID, oldPos, newPos Pos) {
	oldK := g.key(oldPos)
	newK := g.key(newPos)
	if oldK == newK {
		return
	}
	g.Remove(id, oldPos)
	g.Add(id, newPos)
}

// Nearby returns all entity IDs in the cell neighbourhood covering a sphere
// of the given radius (world units) around center. Cell coordinates wrap, so
// the neighbourhood crosses the seam correctly. Caller does fine-grained
// distance filtering.
func (g *Grid) Nearby(center Pos, radius float64) []ecs.NetworkID {
	span := int32(int64(radius*Milli)/g.cellSize) + 1
	if span*2+1 >= g.perAxis {
		// Neighbourhood covers the whole axis — visit every cell once.
		var result []ecs.NetworkID
		for _, cell := range g.cells {
			for id := range cell {
				result = append(result, id)
			}
		}
		return result
	}
	cx := g.coord(center.X)
	cz := g.coord(center.Z)
	var result []ecs.NetworkID
	for dx := -span; dx <= span; dx++ {
		for dz := -span; dz <= span; dz++ {
			k := cellKey{cx: g.wrapCell(cx + dx), cz: g.wrapCell(cz + dz)}
			for id := range g.cells[k] {
				result = append(result, id)
			}
		}
	}
	return result
}
