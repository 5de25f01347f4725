package ecs

// NetworkID is the stable identifier of a replicated entity. IDs are assigned
// monotonically and never reused: a client may hold a shadow or interest
// reference to an entity after it despawned, so recycling an ID would let a
// stale reference alias a new entity.
type NetworkID uint64

func (id NetworkID) IsZero() bool { return id == 0 }

// Allocator hands out NetworkIDs. Zero is never issued (it means "no entity").
type Allocator struct {
	next uint64
}

func NewAllocator() *Allocator {
	return &Allocator{next: 1}
}

func (a *Allocator) Next() NetworkID {
	id := NetworkID(a.next)
	a.next++
	return id
}

// Issued reports how many IDs have been handed out so far.
func (a *Allocator) Issued() uint64 {
	return a.next - 1
}
