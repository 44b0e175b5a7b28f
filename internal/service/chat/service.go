package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-tavern/widget/internal/model/chat"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrSessionNotFound = errors.New("session not found")
	ErrNoTurns         = errors.New("conversation is empty")
	ErrNotEditable     = errors.New("last turn has no user message")
	ErrStaleTurn       = errors.New("last turn changed concurrently")
)

// Service encapsulates conversation state management.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	turns    map[string][]chat.Turn
	now      func() time.Time
}

// NewService bootstraps the in-memory chat service.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]chat.Session),
		turns:    make(map[string][]chat.Turn),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession provisions an anonymous session bound to a persona and stores
// the greeting as its first turn.
func (s *Service) CreateSession(_ context.Context, personaID, greeting string) (chat.Session, chat.Turn, error) {
	if personaID == "" {
		return chat.Session{}, chat.Turn{}, ErrPersonaRequired
	}

	now := s.now()
	session := chat.Session{
		ID:        uuid.NewString(),
		PersonaID: personaID,
		CreatedAt: now,
	}
	opener := chat.Turn{
		ID:              uuid.NewString(),
		ChatbotResponse: greeting,
		CreatedAt:       now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	turns := make([]chat.Turn, 0, 16)
	s.turns[session.ID] = append(turns, opener)
	s.mu.Unlock()

	return session, opener, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// AppendTurn adds a turn to the end of the session history and returns it
// with its assigned id.
func (s *Service) AppendTurn(_ context.Context, sessionID string, turn chat.Turn) (chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return chat.Turn{}, ErrSessionNotFound
	}

	turn.ID = uuid.NewString()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}
	s.turns[sessionID] = append(s.turns[sessionID], turn)
	return turn, nil
}

// ReplaceLastTurn swaps the most recent turn for turn, provided the last turn
// is still the one identified by expectedID. The replacement keeps that id.
func (s *Service) ReplaceLastTurn(_ context.Context, sessionID, expectedID string, turn chat.Turn) (chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, ok := s.turns[sessionID]
	if !ok {
		return chat.Turn{}, ErrSessionNotFound
	}
	if len(turns) == 0 {
		return chat.Turn{}, ErrNoTurns
	}
	last := len(turns) - 1
	if turns[last].ID != expectedID {
		return chat.Turn{}, ErrStaleTurn
	}
	if turns[last].IsGreeting() {
		return chat.Turn{}, ErrNotEditable
	}

	turn.ID = expectedID
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}
	turns[last] = turn
	return turn, nil
}

// DeleteLastTurn removes and returns the most recent turn. The greeting may be
// deleted like any other turn.
func (s *Service) DeleteLastTurn(_ context.Context, sessionID string) (chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, ok := s.turns[sessionID]
	if !ok {
		return chat.Turn{}, ErrSessionNotFound
	}
	if len(turns) == 0 {
		return chat.Turn{}, ErrNoTurns
	}
	last := turns[len(turns)-1]
	s.turns[sessionID] = turns[:len(turns)-1]
	return last, nil
}

// LoadTranscript returns stored turns for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.turns[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Turn, len(turns))
	copy(copied, turns)
	return copied, nil
}
