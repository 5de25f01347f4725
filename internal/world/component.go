package world

import (
	"fmt"

	"github.com/orbcraft/server/internal/protocol"
)

// Component type tags. The set is closed; the registry exists so encode and
// decode stay table-driven and duplicate registration fails at startup.
const (
	CompTransform uint8 = 1
	CompKinetics  uint8 = 2
	CompHealth    uint8 = 3
	CompLabel     uint8 = 4
)

// Wire payloads for each component type.

type Transform struct {
	X   int64   `codec:"x"`
	Y   int64   `codec:"y"`
	Z   int64   `codec:"z"`
	Yaw float32 `codec:"h"`
}

type Kinetics struct {
	VX float64 `codec:"u"`
	VY float64 `codec:"v"`
	VZ float64 `codec:"w"`
}

type Health struct {
	HP    int32 `codec:"h"`
	MaxHP int32 `codec:"m"`
}

type Label struct {
	Kind string `codec:"k"`
	Name string `codec:"n"`
}

// Descriptor binds a component tag to its encode function over an Entity.
type Descriptor struct {
	Tag    uint8
	Name   string
	Encode func(*Entity) ([]byte, error)
}

// ComponentRegistry is the closed table of replicated component types,
// built once at startup.
type ComponentRegistry struct {
	byTag   map[uint8]*Descriptor
	ordered []*Descriptor // ascending tag, fixed iteration order
}

func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{byTag: make(map[uint8]*Descriptor)}
}

// Register adds a descriptor. A duplicate tag is a configuration error and
// fails fast.
func (r *ComponentRegistry) Register(d Descriptor) error {
	if _, dup := r.byTag[d.Tag]; dup {
		return fmt.Errorf("duplicate component tag %d (%s)", d.Tag, d.Name)
	}
	desc := d
	r.byTag[d.Tag] = &desc
	// keep ordered ascending by tag
	i := len(r.ordered)
	for i > 0 && r.ordered[i-1].Tag > d.Tag {
		i--
	}
	r.ordered = append(r.ordered, nil)
	copy(r.ordered[i+1:], r.ordered[i:])
	r.ordered[i] = &desc
	return nil
}

// Each visits descriptors in ascending tag order.
func (r *ComponentRegistry) Each(fn func(*Descriptor)) {
	for _, d := range r.ordered {
		fn(d)
	}
}

// Get returns the descriptor for a tag.
func (r *ComponentRegistry) Get(tag uint8) (*Descriptor, bool) {
	d, ok := r.byTag[tag]
	return d, ok
}

// DefaultComponentRegistry builds the standard closed component set.
func DefaultComponentRegistry() *ComponentRegistry {
	r := NewComponentRegistry()
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(r.Register(Descriptor{
		Tag:  CompTransform,
		Name: "transform",
		Encode: func(e *Entity) ([]byte, error) {
			return protocol.Marshal(Transform{
				X: e.Body.Pos.X, Y: e.Body.Pos.Y, Z: e.Body.Pos.Z,
				Yaw: e.Body.Yaw,
			})
		},
	}))
	must(r.Register(Descriptor{
		Tag:  CompKinetics,
		Name: "kinetics",
		Encode: func(e *Entity) ([]byte, error) {
			return protocol.Marshal(Kinetics{VX: e.Body.Vel.X, VY: e.Body.Vel.Y, VZ: e.Body.Vel.Z})
		},
	}))
	must(r.Register(Descriptor{
		Tag:  CompHealth,
		Name: "health",
		Encode: func(e *Entity) ([]byte, error) {
			return protocol.Marshal(Health{HP: e.HP, MaxHP: e.MaxHP})
		},
	}))
	must(r.Register(Descriptor{
		Tag:  CompLabel,
		Name: "label",
		Encode: func(e *Entity) ([]byte, error) {
			return protocol.Marshal(Label{Kind: e.Kind, Name: e.Name})
		},
	}))
	return r
}
