package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autama/autama/backend/internal/model/chat"
	"github.com/autama/autama/backend/internal/model/persona"
	"github.com/autama/autama/backend/internal/nucleus"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrSessionNotFound = errors.New("session not found")
	ErrForbidden       = errors.New("session belongs to another user")
)

// SessionFactory builds a conversation engine session for a persona.
type SessionFactory interface {
	NewSession(p persona.Persona) (*nucleus.Session, error)
}

// Turn is one exchange: the stored user message and the Autama's reply.
type Turn struct {
	UserMessage chat.Message `json:"userMessage"`
	Reply       chat.Message `json:"reply"`
}

type liveSession struct {
	mu      sync.Mutex
	info    chat.Session
	persona persona.Persona
	convo   *nucleus.Session
}

// Service owns live conversations and records their messages.
type Service struct {
	personas persona.Store
	messages chat.MessageStore
	factory  SessionFactory
	timeout  time.Duration

	mu       sync.RWMutex
	sessions map[string]*liveSession
}

// NewService bootstraps the chat service. A zero timeout leaves model calls
// bounded only by the caller's context.
func NewService(personas persona.Store, messages chat.MessageStore, factory SessionFactory, timeout time.Duration) *Service {
	return &Service{
		personas: personas,
		messages: messages,
		factory:  factory,
		timeout:  timeout,
		sessions: make(map[string]*liveSession),
	}
}

// CreateSession binds a new conversation to a persona.
func (s *Service) CreateSession(ctx context.Context, personaID, userID string) (chat.Session, error) {
	if personaID == "" {
		return chat.Session{}, ErrPersonaRequired
	}

	p, err := s.personas.FindByID(ctx, personaID)
	if err != nil {
		return chat.Session{}, err
	}

	convo, err := s.factory.NewSession(p)
	if err != nil {
		return chat.Session{}, fmt.Errorf("failed to start conversation: %w", err)
	}

	info := chat.Session{
		ID:        uuid.NewString(),
		PersonaID: personaID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[info.ID] = &liveSession{info: info, persona: p, convo: convo}
	s.mu.Unlock()

	log.Printf("[chat] created session=%s persona=%s user=%s", info.ID, personaID, userID)
	return info, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	live, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return live.info, nil
}

// Authorize checks that userID may use the session. Anonymous sessions are
// open to everyone.
func (s *Service) Authorize(ctx context.Context, sessionID, userID string) (chat.Session, error) {
	info, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	if info.UserID != "" && info.UserID != userID {
		return chat.Session{}, ErrForbidden
	}
	return info, nil
}

// Converse runs one turn. Turns on the same session are serialized; the
// model call is bounded by the configured timeout.
func (s *Service) Converse(ctx context.Context, sessionID, text string) (Turn, error) {
	live, err := s.lookup(sessionID)
	if err != nil {
		return Turn{}, err
	}

	live.mu.Lock()
	defer live.mu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	reply, err := live.convo.Converse(ctx, text)
	if err != nil {
		log.Printf("[chat] turn failed session=%s: %v", sessionID, err)
		return Turn{}, err
	}

	now := time.Now().UTC()
	turn := Turn{
		UserMessage: s.newMessage(live.info, chat.SenderUser, text, now),
		Reply:       s.newMessage(live.info, chat.SenderAutama, reply, now),
	}
	if err := s.messages.Append(context.WithoutCancel(ctx), turn.UserMessage, turn.Reply); err != nil {
		log.Printf("[chat] failed to record turn session=%s: %v", sessionID, err)
	}

	log.Printf("[chat] session=%s persona=%s replied in %s, length=%d", sessionID, live.info.PersonaID, time.Since(started).Round(time.Millisecond), len(reply))
	return turn, nil
}

func (s *Service) newMessage(info chat.Session, sender, content string, at time.Time) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		SessionID: info.ID,
		PersonaID: info.PersonaID,
		UserID:    info.UserID,
		Sender:    sender,
		Content:   content,
		CreatedAt: at,
	}
}

// LoadTranscript returns stored messages for the session. Sessions that
// are no longer live still have their recorded messages.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	messages, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		if _, err := s.lookup(sessionID); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

// ListMessages returns every recorded message.
func (s *Service) ListMessages(ctx context.Context) ([]chat.Message, error) {
	return s.messages.List(ctx)
}

// History exposes the engine's bounded dialogue history for a session.
func (s *Service) History(_ context.Context, sessionID string) ([]nucleus.Utterance, error) {
	live, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	return live.convo.History(), nil
}

// CloseSession discards the live conversation. Recorded messages stay.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	log.Printf("[chat] closed session=%s", sessionID)
	return nil
}

func (s *Service) lookup(sessionID string) (*liveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	live, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return live, nil
}
