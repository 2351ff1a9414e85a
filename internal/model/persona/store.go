package persona

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists Autama personas.
type Store interface {
	Create(ctx context.Context, name string, traits []string, creator string) (Persona, error)
	List(ctx context.Context) ([]Persona, error)
	FindByID(ctx context.Context, id string) (Persona, error)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{items: make([]Persona, 0, len(items))}
	for _, item := range items {
		s.items = append(s.items, item.clone())
	}
	return s
}

// Create stores a new persona with a fresh identifier.
func (s *MemoryStore) Create(_ context.Context, name string, traits []string, creator string) (Persona, error) {
	traits = NormalizeTraits(traits)
	if len(traits) == 0 {
		return Persona{}, ErrTraitsRequired
	}

	p := Persona{
		ID:        uuid.NewString(),
		Name:      name,
		Traits:    traits,
		Creator:   creator,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.items = append(s.items, p.clone())
	s.mu.Unlock()

	return p, nil
}

// List returns personas in creation order.
func (s *MemoryStore) List(_ context.Context) ([]Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Persona, len(s.items))
	for i, item := range s.items {
		out[i] = item.clone()
	}
	return out, nil
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(_ context.Context, id string) (Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.ID == id {
			return item.clone(), nil
		}
	}
	return Persona{}, ErrNotFound
}
