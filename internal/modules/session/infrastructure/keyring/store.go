package keyring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
	"github.com/fakenews/notifier/internal/modules/session/domain"
)

const serviceName = "fakenews"

// Open returns the system keyring, falling back to an encrypted file under dir.
func Open(dir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("fakenews-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Store keeps one keyring item per profile.
type Store struct {
	ring keyring.Keyring
	key  string
}

func NewStore(ring keyring.Keyring, profile string) *Store {
	return &Store{ring: ring, key: "session:" + profile}
}

func (s *Store) Save(_ context.Context, sess domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	err = s.ring.Set(keyring.Item{
		Key:         s.key,
		Data:        data,
		Label:       "FakeNews session",
		Description: "bearer token for " + sess.User.Username,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", s.key, err)
	}
	return nil
}

func (s *Store) Load(_ context.Context) (domain.Session, error) {
	item, err := s.ring.Get(s.key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return domain.Session{}, domain.ErrNoSession
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("getting credential %q: %w", s.key, err)
	}

	var sess domain.Session
	if err := json.Unmarshal(item.Data, &sess); err != nil {
		return domain.Session{}, fmt.Errorf("decoding credential %q: %w", s.key, err)
	}
	return sess, nil
}

func (s *Store) Clear(_ context.Context) error {
	err := s.ring.Remove(s.key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", s.key, err)
	}
	return nil
}
