package user

import (
	"context"
	"strings"
	"sync"
)

// Store persists accounts and their API tokens.
type Store interface {
	Create(ctx context.Context, u User) (User, error)
	List(ctx context.Context) ([]User, error)
	FindByID(ctx context.Context, id string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	SaveToken(ctx context.Context, token Token) error
	TokenForUser(ctx context.Context, userID string) (Token, error)
	FindToken(ctx context.Context, key string) (Token, error)
}

// MemoryStore implements Store in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	users  []User
	tokens map[string]Token
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]Token)}
}

// Create stores u. Usernames are unique regardless of case.
func (s *MemoryStore) Create(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return User{}, ErrDuplicate
		}
	}
	s.users = append(s.users, u)
	return u, nil
}

// List returns users in sign-up order.
func (s *MemoryStore) List(_ context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]User(nil), s.users...), nil
}

// FindByID looks up a user by identifier.
func (s *MemoryStore) FindByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// FindByUsername looks up a user by name, ignoring case.
func (s *MemoryStore) FindByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// SaveToken replaces the user's token.
func (s *MemoryStore) SaveToken(_ context.Context, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, existing := range s.tokens {
		if existing.UserID == token.UserID {
			delete(s.tokens, key)
		}
	}
	s.tokens[token.Key] = token
	return nil
}

// TokenForUser returns the user's current token.
func (s *MemoryStore) TokenForUser(_ context.Context, userID string) (Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, token := range s.tokens {
		if token.UserID == userID {
			return token, nil
		}
	}
	return Token{}, ErrNotFound
}

// FindToken resolves an API key.
func (s *MemoryStore) FindToken(_ context.Context, key string) (Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[key]
	if !ok {
		return Token{}, ErrNotFound
	}
	return token, nil
}
