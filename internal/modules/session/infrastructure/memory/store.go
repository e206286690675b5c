package memory

import (
	"context"
	"sync"

	"github.com/fakenews/notifier/internal/modules/session/domain"
)

// Store keeps the session for the life of the process only.
type Store struct {
	mu      sync.Mutex
	session *domain.Session
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Save(_ context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &sess
	return nil
}

func (s *Store) Load(_ context.Context) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return domain.Session{}, domain.ErrNoSession
	}
	return *s.session, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
