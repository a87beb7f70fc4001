// Package session holds the process-wide record of who is signed in.
package session

import (
	"context"
	"errors"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
)

var errNoTokenSource = errors.New("session: principal has no token source")

// TokenProvider yields a bearer token for the signed-in principal.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Principal is the currently authenticated user.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string

	tokens TokenProvider
}

// NewPrincipal constructs a Principal backed by tokens. tokens may be nil.
func NewPrincipal(id, email, displayName, avatarURL string, tokens TokenProvider) *Principal {
	return &Principal{
		ID:          id,
		Email:       email,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		tokens:      tokens,
	}
}

// Token returns a bearer token for authenticated requests.
func (p *Principal) Token(ctx context.Context) (string, error) {
	if p == nil || p.tokens == nil {
		return "", apperr.Auth(apperr.CodeUnauthenticated, errNoTokenSource)
	}
	return p.tokens.Token(ctx)
}

// State is one observation of the session.
type State struct {
	Principal *Principal
	Loading   bool
}

// SignedIn reports whether the state carries a principal.
func (s State) SignedIn() bool {
	return s.Principal != nil
}
