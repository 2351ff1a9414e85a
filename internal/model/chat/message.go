package chat

import (
	"context"
	"sync"
	"time"
)

const (
	SenderUser   = "user"
	SenderAutama = "autama"
)

// Message persists individual turns for the messages API.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	PersonaID string    `json:"personaId"`
	UserID    string    `json:"userId,omitempty"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageStore records conversation turns.
type MessageStore interface {
	Append(ctx context.Context, messages ...Message) error
	ListBySession(ctx context.Context, sessionID string) ([]Message, error)
	List(ctx context.Context) ([]Message, error)
}

// MemoryMessageStore implements MessageStore in memory.
type MemoryMessageStore struct {
	mu       sync.RWMutex
	messages []Message
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{}
}

func (s *MemoryMessageStore) Append(_ context.Context, messages ...Message) error {
	s.mu.Lock()
	s.messages = append(s.messages, messages...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryMessageStore) ListBySession(_ context.Context, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Message
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryMessageStore) List(_ context.Context) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...), nil
}
