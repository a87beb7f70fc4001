package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/identity"
	"go.uber.org/zap"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// WeakPasswordMessage is reported when a registration password is too short.
const WeakPasswordMessage = "Password must be at least 6 characters long."

// CredentialStore persists the signed-in credential between runs.
type CredentialStore interface {
	Load() (identity.Credential, error)
	Save(identity.Credential) error
	Clear() error
}

// Config describes the dependencies of a session Context.
type Config struct {
	Provider identity.Provider
	Store    CredentialStore
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Context is the single authority on who is signed in. It is safe for concurrent use.
type Context struct {
	provider identity.Provider
	store    CredentialStore
	clock    func() time.Time
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	subscribers map[int64]*subscriber
	nextID      int64
}

type subscriber struct {
	id     int64
	stream chan State
}

// New constructs a Context in its initial loading state.
func New(cfg Config) (*Context, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("session: identity provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		provider:    cfg.Provider,
		store:       cfg.Store,
		clock:       clock,
		logger:      logger,
		state:       State{Loading: true},
		subscribers: make(map[int64]*subscriber),
	}, nil
}

// Start restores the persisted credential, if any, and publishes the first observation.
func (c *Context) Start(ctx context.Context) error {
	if c.store == nil {
		c.publish(State{})
		return nil
	}
	credential, err := c.store.Load()
	if errors.Is(err, identity.ErrNoCredential) {
		c.publish(State{})
		return nil
	}
	if err != nil {
		c.logger.Warn("credential restore failed", zap.Error(err))
		c.publish(State{})
		return nil
	}

	source := c.tokenSource(credential)
	if _, err := source.Token(ctx); err != nil {
		if apperr.IsKind(err, apperr.KindAuth) {
			c.logger.Info("stored credential rejected", zap.String("user_id", credential.UserID))
			c.clearStore()
		} else {
			c.logger.Warn("credential refresh failed", zap.String("user_id", credential.UserID), zap.Error(err))
		}
		c.publish(State{})
		return nil
	}
	c.publish(State{Principal: principalFrom(source.Credential(), source)})
	return nil
}

// Current returns the latest state.
func (c *Context) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe delivers the current state immediately and then every change.
// A slow subscriber only sees the latest state. Cancelling ctx or calling the
// returned func unsubscribes and closes the stream.
func (c *Context) Subscribe(ctx context.Context) (<-chan State, func()) {
	c.mu.Lock()
	c.nextID++
	sub := &subscriber{id: c.nextID, stream: make(chan State, 1)}
	c.subscribers[sub.id] = sub
	sub.stream <- c.state
	c.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cleanup := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, sub.id)
			close(sub.stream)
			c.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cleanup()
		case <-done:
		}
	}()
	return sub.stream, cleanup
}

// SignIn authenticates with email and password.
func (c *Context) SignIn(ctx context.Context, email, password string) (*Principal, error) {
	previous := c.beginLoading()
	credential, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		c.fail(previous, "sign in", err)
		return nil, err
	}
	return c.establish(credential), nil
}

// SignUp registers a new account and sets its profile before publishing the principal.
// A blank photoURL leaves the account without a photo.
func (c *Context) SignUp(ctx context.Context, email, password, displayName, photoURL string) (*Principal, error) {
	if len(password) < MinPasswordLength {
		return nil, apperr.Validation(WeakPasswordMessage)
	}
	previous := c.beginLoading()
	credential, err := c.provider.SignUp(ctx, email, password)
	if err != nil {
		c.fail(previous, "sign up", err)
		return nil, err
	}
	requested := identity.Profile{DisplayName: strings.TrimSpace(displayName), PhotoURL: strings.TrimSpace(photoURL)}
	profile, err := c.provider.UpdateProfile(ctx, credential.IDToken, requested)
	if err != nil {
		c.fail(previous, "profile update", err)
		return nil, err
	}
	credential = credential.Merge(profile)
	return c.establish(credential), nil
}

// FederatedSignIn runs flow and exchanges the resulting ID token for a session.
func (c *Context) FederatedSignIn(ctx context.Context, flow identity.FederatedFlow) (*Principal, error) {
	previous := c.beginLoading()
	idToken, err := flow.IDToken(ctx)
	if err != nil {
		if apperr.KindOf(err) == "" {
			err = apperr.Auth(apperr.CodeNetworkOrUnknown, err)
		}
		c.fail(previous, "federated flow", err)
		return nil, err
	}
	credential, err := c.provider.SignInWithIDToken(ctx, flow.ProviderID(), idToken)
	if err != nil {
		c.fail(previous, "federated sign in", err)
		return nil, err
	}
	return c.establish(credential), nil
}

// SignOut forgets the current principal. The in-memory session is cleared even
// when the persisted credential cannot be removed.
func (c *Context) SignOut(ctx context.Context) error {
	c.beginLoading()
	var err error
	if c.store != nil {
		if clearErr := c.store.Clear(); clearErr != nil {
			c.logger.Warn("credential clear failed", zap.Error(clearErr))
			err = apperr.Auth(apperr.CodeNetworkOrUnknown, clearErr)
		}
	}
	c.publish(State{})
	return err
}

func (c *Context) establish(credential identity.Credential) *Principal {
	source := c.tokenSource(credential)
	if c.store != nil {
		if err := c.store.Save(credential); err != nil {
			c.logger.Warn("credential persist failed", zap.String("user_id", credential.UserID), zap.Error(err))
		}
	}
	principal := principalFrom(credential, source)
	c.publish(State{Principal: principal})
	c.logger.Info("signed in", zap.String("user_id", principal.ID))
	return principal
}

func (c *Context) tokenSource(credential identity.Credential) *identity.TokenSource {
	return identity.NewTokenSource(identity.TokenSourceConfig{
		Provider:   c.provider,
		Credential: credential,
		Clock:      c.clock,
		Logger:     c.logger,
		OnRefresh: func(refreshed identity.Credential) {
			if c.store == nil {
				return
			}
			if err := c.store.Save(refreshed); err != nil {
				c.logger.Warn("credential persist failed", zap.String("user_id", refreshed.UserID), zap.Error(err))
			}
		},
	})
}

func (c *Context) clearStore() {
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("credential clear failed", zap.Error(err))
	}
}

func (c *Context) beginLoading() *Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous := c.state.Principal
	c.setLocked(State{Principal: previous, Loading: true})
	return previous
}

func (c *Context) fail(previous *Principal, operation string, err error) {
	c.logger.Warn("session operation failed",
		zap.String("operation", operation),
		zap.String("code", string(apperr.CodeOf(err))),
		zap.Error(err),
	)
	c.publish(State{Principal: previous})
}

func (c *Context) publish(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(state)
}

func (c *Context) setLocked(state State) {
	c.state = state
	for _, sub := range c.subscribers {
		select {
		case <-sub.stream:
		default:
		}
		sub.stream <- state
	}
}

func principalFrom(credential identity.Credential, tokens TokenProvider) *Principal {
	return NewPrincipal(credential.UserID, credential.Email, credential.DisplayName, credential.PhotoURL, tokens)
}
