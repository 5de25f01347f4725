package ecs

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on despawn.
type Removable interface {
	Remove(id NetworkID)
}

// Store is a generic typed map store keyed by NetworkID.
// No reflect, no interface{} — pure generics.
type Store[T any] struct {
	data map[NetworkID]*T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		data: make(map[NetworkID]*T, 256),
	}
}

func (s *Store[T]) Set(id NetworkID, c *T) {
	s.data[id] = c
}

func (s *Store[T]) Get(id NetworkID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *Store[T]) Remove(id NetworkID) {
	delete(s.data, id)
}

func (s *Store[T]) Has(id NetworkID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Len() int {
	return len(s.data)
}

func (s *Store[T]) Each(fn func(NetworkID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}

// Registry tracks all component stores and supports bulk cleanup on despawn.
type Registry struct {
	stores []Removable
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make([]Removable, 0, 16),
	}
}

// Register adds a component store to the registry.
func (r *Registry) Register(store Removable) {
	r.stores = append(r.stores, store)
}

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(id NetworkID) {
	for _, s := range r.stores {
		s.Remove(id)
	}
}
