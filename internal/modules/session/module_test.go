package session_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fakenews/notifier/internal/modules/session"
	"github.com/fakenews/notifier/internal/modules/session/domain"
	"github.com/fakenews/notifier/internal/shared/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModule_Memory(t *testing.T) {
	cfg := config.Load()
	cfg.Session.Backend = session.BackendMemory

	m, err := session.NewModule(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Service().Current(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestNewModule_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Load()
	cfg.Session.Backend = session.BackendRedis
	cfg.Redis.Host = mr.Host()
	cfg.Redis.Port = mr.Port()

	m, err := session.NewModule(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, m.Close())
}

func TestNewModule_RedisUnreachable(t *testing.T) {
	cfg := config.Load()
	cfg.Session.Backend = session.BackendRedis
	cfg.Redis.Host = "127.0.0.1"
	cfg.Redis.Port = "1"

	_, err := session.NewModule(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewModule_UnknownBackend(t *testing.T) {
	cfg := config.Load()
	cfg.Session.Backend = "cookie-jar"

	_, err := session.NewModule(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "cookie-jar")
}
