package replication

import (
	"bytes"

	"github.com/orbcraft/server/internal/core/ecs"
	"github.com/orbcraft/server/internal/protocol"
	"github.com/orbcraft/server/internal/world"
	"go.uber.org/zap"
)

// Shadow records, per entity, the component bytes this client is known to
// have received. Diff computes against it; Commit advances it. The two are
// deliberately separate: a message deferred by bandwidth budgeting has not
// been received, so the shadow must not advance until the bytes actually
// leave — otherwise the client silently misses the change forever.
type Shadow struct {
	sent map[ecs.NetworkID]map[uint8][]byte
	log  *zap.Logger
}

func NewShadow(log *zap.Logger) *Shadow {
	return &Shadow{
		sent: make(map[ecs.NetworkID]map[uint8][]byte),
		log:  log,
	}
}

// Has reports whether the client has ever received this entity.
func (s *Shadow) Has(id ecs.NetworkID) bool {
	_, ok := s.sent[id]
	return ok
}

// Len returns the number of shadowed entities.
func (s *Shadow) Len() int { return len(s.sent) }

// Diff returns the components of e whose encoded value differs from what the
// client last received, in ascending tag order. A per-component encode
// failure is logged and skipped; it never aborts the rest of the entity's
// update. An empty result means no message should be emitted.
func (s *Shadow) Diff(e *world.Entity, reg *world.ComponentRegistry) []protocol.Component {
	prev := s.sent[e.ID]
	var changed []protocol.Component
	reg.Each(func(d *world.Descriptor) {
		data, err := d.Encode(e)
		if err != nil {
			s.log.Warn("component encode failed, skipping",
				zap.Uint64("entity", uint64(e.ID)),
				zap.String("component", d.Name),
				zap.Error(err),
			)
			return
		}
		if prev != nil && bytes.Equal(prev[d.Tag], data) {
			return
		}
		changed = append(changed, protocol.Component{Tag: d.Tag, Data: data})
	})
	return changed
}

// FullState encodes every component of e for a Spawn message. Encode
// failures are isolated exactly as in Diff.
func (s *Shadow) FullState(e *world.Entity, reg *world.ComponentRegistry) []protocol.Component {
	var comps []protocol.Component
	reg.Each(func(d *world.Descriptor) {
		data, err := d.Encode(e)
		if err != nil {
			s.log.Warn("component encode failed, skipping",
				zap.Uint64("entity", uint64(e.ID)),
				zap.String("component", d.Name),
				zap.Error(err),
			)
			return
		}
		comps = append(comps, protocol.Component{Tag: d.Tag, Data: data})
	})
	return comps
}

// Commit advances the shadow to the transmitted values. Called only when a
// Spawn or Update actually left the connection.
func (s *Shadow) Commit(id ecs.NetworkID, comps []protocol.Component) {
	entry := s.sent[id]
	if entry == nil {
		entry = make(map[uint8][]byte, len(comps))
		s.sent[id] = entry
	}
	for _, c := range comps {
		entry[c.Tag] = c.Data
	}
}

// Drop removes an entity's shadow entry. Called on despawn transmission;
// after this no further deltas reference the entity.
func (s *Shadow) Drop(id ecs.NetworkID) {
	delete(s.sent, id)
}
