package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fakenews/notifier/internal/modules/session/domain"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "fakenews:session:"

type Store struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
}

// NewStore stores the session for profile as JSON. A zero ttl keeps it until
// Clear.
func NewStore(client *goredis.Client, profile string, ttl time.Duration) *Store {
	return &Store{client: client, key: keyPrefix + profile, ttl: ttl}
}

func (s *Store) Save(ctx context.Context, sess domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving session %q: %w", s.key, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (domain.Session, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Session{}, domain.ErrNoSession
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("loading session %q: %w", s.key, err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domain.Session{}, fmt.Errorf("decoding session %q: %w", s.key, err)
	}
	return sess, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clearing session %q: %w", s.key, err)
	}
	return nil
}
