package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fakenews/notifier/internal/modules/session/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Service remembers who is signed in. Tokens are parsed without verifying
// the signature: the backend is the authority, the client only needs the
// expiry and subject.
type Service struct {
	store  domain.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store domain.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "session"),
		now:    time.Now,
	}
}

// Login persists token and user. An empty user id is filled from the
// token's user_id claim.
func (s *Service) Login(ctx context.Context, token string, user domain.User) (domain.Session, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return domain.Session{}, err
	}
	if exp, _ := claims.GetExpirationTime(); exp != nil && !exp.After(s.now()) {
		return domain.Session{}, domain.ErrSessionExpired
	}
	if user.ID == "" {
		if id, ok := claims["user_id"].(string); ok {
			user.ID = id
		}
	}

	sess := domain.Session{Token: token, User: user, SavedAt: s.now().UTC()}
	if err := s.store.Save(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	s.logger.Info("signed in", "user_id", user.ID, "username", user.Username)
	return sess, nil
}

// Current returns the stored session, or ErrSessionExpired once the token's
// exp has passed. An expired session is cleared.
func (s *Service) Current(ctx context.Context) (domain.Session, error) {
	sess, err := s.store.Load(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	claims, err := parseClaims(sess.Token)
	if err != nil {
		return domain.Session{}, err
	}
	if exp, _ := claims.GetExpirationTime(); exp != nil && !exp.After(s.now()) {
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			s.logger.Warn("failed to clear expired session", "error", clearErr)
		}
		return domain.Session{}, domain.ErrSessionExpired
	}
	return sess, nil
}

// Token is a convenience for callers that only need the bearer credential.
func (s *Service) Token(ctx context.Context) (string, error) {
	sess, err := s.Current(ctx)
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}

func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("signed out")
	return nil
}

func parseClaims(token string) (jwt.MapClaims, error) {
	if token == "" {
		return nil, domain.ErrNoSession
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	return claims, nil
}

// IsSignedOut reports whether err means the user has to sign in again.
func IsSignedOut(err error) bool {
	return errors.Is(err, domain.ErrNoSession) || errors.Is(err, domain.ErrSessionExpired)
}
