package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fakenews/notifier/internal/modules/session/application"
	"github.com/fakenews/notifier/internal/modules/session/domain"
	sessionkeyring "github.com/fakenews/notifier/internal/modules/session/infrastructure/keyring"
	"github.com/fakenews/notifier/internal/modules/session/infrastructure/memory"
	sessionredis "github.com/fakenews/notifier/internal/modules/session/infrastructure/redis"
	"github.com/fakenews/notifier/internal/shared/infrastructure/config"
	"github.com/fakenews/notifier/internal/shared/infrastructure/database"
	goredis "github.com/redis/go-redis/v9"
)

const (
	BackendRedis   = "redis"
	BackendKeyring = "keyring"
	BackendMemory  = "memory"
)

type Module struct {
	service *application.Service
	redis   *goredis.Client
}

// NewModule opens the session store selected by SESSION_BACKEND.
func NewModule(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Module, error) {
	m := &Module{}

	var store domain.Store
	switch cfg.Session.Backend {
	case BackendRedis:
		client, err := database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		m.redis = client
		store = sessionredis.NewStore(client, cfg.Session.Profile, cfg.Session.TTL)
	case BackendKeyring:
		ring, err := sessionkeyring.Open(cfg.Session.KeyringDir)
		if err != nil {
			return nil, err
		}
		store = sessionkeyring.NewStore(ring, cfg.Session.Profile)
	case BackendMemory:
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	m.service = application.NewService(store, logger)
	return m, nil
}

func (m *Module) Service() *application.Service {
	return m.service
}

func (m *Module) Close() error {
	if m.redis != nil {
		return m.redis.Close()
	}
	return nil
}
