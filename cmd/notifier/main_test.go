package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fakenews/notifier/internal/modules/session/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func useRedisSessions(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("SESSION_PROFILE", "test")
	t.Setenv("REDIS_HOST", mr.Host())
	t.Setenv("REDIS_PORT", mr.Port())
	return mr
}

func token(t *testing.T, exp time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "665f1c2e9b1e8a3d4c5b6a70",
		"exp":     exp.Unix(),
	}).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return s
}

func TestLoginStatusLogout(t *testing.T) {
	mr := useRedisSessions(t)
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	out, err := execute(t, "login", token(t, exp), "--username", "amine")
	require.NoError(t, err)
	assert.Contains(t, out, "signed in as amine (profile test)")
	assert.True(t, mr.Exists("fakenews:session:test"))

	out, err = execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "signed in as amine")
	assert.Contains(t, out, exp.UTC().Format(time.RFC3339))

	out, err = execute(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "signed out")

	out, err = execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not signed in")
}

func TestLoginRejectsExpiredToken(t *testing.T) {
	useRedisSessions(t)

	_, err := execute(t, "login", token(t, time.Now().Add(-time.Hour)))
	assert.Error(t, err)
}

func TestRunRequiresSession(t *testing.T) {
	useRedisSessions(t)

	_, err := execute(t, "run")
	assert.ErrorContains(t, err, "notifier login")
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PAGE_SIZE=42\nPOPUP_TIMEOUT=9s\n"), 0o600))
	t.Setenv("PAGE_SIZE", "")
	os.Unsetenv("PAGE_SIZE")
	t.Setenv("POPUP_TIMEOUT", "3s")

	require.NoError(t, loadEnv(path))
	assert.Equal(t, "42", os.Getenv("PAGE_SIZE"))
	assert.Equal(t, "3s", os.Getenv("POPUP_TIMEOUT"), "existing variables win")

	assert.NoError(t, loadEnv(filepath.Join(dir, "missing.env")))
	assert.NoError(t, loadEnv(""))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown", "component", "center")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"component":"center"`)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "unknown user", displayName(domain.User{}))
	assert.Equal(t, "id", displayName(domain.User{ID: "id"}))
	assert.Equal(t, "mail", displayName(domain.User{ID: "id", Email: "mail"}))
	assert.Equal(t, "name", displayName(domain.User{ID: "id", Username: "name", Email: "mail"}))
}
