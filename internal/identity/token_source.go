package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RefreshLeeway is how close to expiry an ID token may get before it is refreshed.
const RefreshLeeway = time.Minute

// refreshTimeout bounds a shared refresh, which outlives any single caller.
const refreshTimeout = 30 * time.Second

var errNoRefreshToken = errors.New("identity: credential has no refresh token")

// TokenSourceConfig configures a TokenSource.
type TokenSourceConfig struct {
	Provider   Provider
	Credential Credential
	Clock      func() time.Time
	Logger     *zap.Logger
	// OnRefresh receives every refreshed credential, typically to persist it.
	OnRefresh func(Credential)
}

// TokenSource hands out a fresh ID token for the signed-in credential.
type TokenSource struct {
	provider  Provider
	clock     func() time.Time
	logger    *zap.Logger
	onRefresh func(Credential)

	mu         sync.Mutex
	credential Credential
	refreshes  singleflight.Group
}

// NewTokenSource constructs a TokenSource seeded with credential.
func NewTokenSource(cfg TokenSourceConfig) *TokenSource {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenSource{
		provider:   cfg.Provider,
		clock:      clock,
		logger:     logger,
		onRefresh:  cfg.OnRefresh,
		credential: cfg.Credential,
	}
}

// Credential returns the current credential snapshot.
func (s *TokenSource) Credential() Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

// Token returns an ID token valid for at least RefreshLeeway.
// Concurrent callers share a single refresh.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	current := s.Credential()
	if current.IDToken != "" && s.clock().Add(RefreshLeeway).Before(current.ExpiresAt) {
		return current.IDToken, nil
	}
	refreshed, err := s.sharedRefresh(ctx)
	if err != nil {
		return "", err
	}
	return refreshed.IDToken, nil
}

// Refresh forces a token refresh and returns the updated credential.
func (s *TokenSource) Refresh(ctx context.Context) (Credential, error) {
	return s.sharedRefresh(ctx)
}

// sharedRefresh joins the refresh in flight or starts one. The refresh runs
// detached from ctx so one caller giving up does not fail the others.
func (s *TokenSource) sharedRefresh(ctx context.Context) (Credential, error) {
	results := s.refreshes.DoChan("refresh", func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(refreshCtx)
	})
	select {
	case result := <-results:
		if result.Err != nil {
			return Credential{}, result.Err
		}
		return result.Val.(Credential), nil
	case <-ctx.Done():
		return Credential{}, ctx.Err()
	}
}

func (s *TokenSource) refresh(ctx context.Context) (Credential, error) {
	current := s.Credential()
	if s.provider == nil || current.RefreshToken == "" {
		return Credential{}, apperr.Auth(apperr.CodeUnauthenticated, errNoRefreshToken)
	}
	update, err := s.provider.Refresh(ctx, current.RefreshToken)
	if err != nil {
		s.logger.Warn("token refresh failed", zap.String("user_id", current.UserID), zap.Error(err))
		return Credential{}, err
	}

	s.mu.Lock()
	s.credential = s.credential.Merge(update)
	refreshed := s.credential
	s.mu.Unlock()

	if s.onRefresh != nil {
		s.onRefresh(refreshed)
	}
	return refreshed, nil
}
