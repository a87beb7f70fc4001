// Package identity talks to the identity service that authenticates Book Haven users.
package identity

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ProviderGoogle is the federated provider id used for Google sign-in.
const ProviderGoogle = "google.com"

// Credential is the identity service's answer to a successful authentication.
type Credential struct {
	UserID       string
	Email        string
	DisplayName  string
	PhotoURL     string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Merge overlays the non-empty fields of update on c.
func (c Credential) Merge(update Credential) Credential {
	if update.UserID != "" {
		c.UserID = update.UserID
	}
	if update.Email != "" {
		c.Email = update.Email
	}
	if update.DisplayName != "" {
		c.DisplayName = update.DisplayName
	}
	if update.PhotoURL != "" {
		c.PhotoURL = update.PhotoURL
	}
	if update.IDToken != "" {
		c.IDToken = update.IDToken
		c.ExpiresAt = update.ExpiresAt
	}
	if update.RefreshToken != "" {
		c.RefreshToken = update.RefreshToken
	}
	return c
}

// Profile is the mutable part of an account. An empty PhotoURL clears the photo.
type Profile struct {
	DisplayName string
	PhotoURL    string
}

// Provider is the capability surface the session relies on.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (Credential, error)
	SignUp(ctx context.Context, email, password string) (Credential, error)
	UpdateProfile(ctx context.Context, idToken string, profile Profile) (Credential, error)
	SignInWithIDToken(ctx context.Context, providerID, idToken string) (Credential, error)
	Refresh(ctx context.Context, refreshToken string) (Credential, error)
	Lookup(ctx context.Context, idToken string) (Credential, error)
}

// FederatedFlow is the interactive, provider-driven step of a federated sign-in.
// It yields an ID token minted by the external provider.
type FederatedFlow interface {
	ProviderID() string
	IDToken(ctx context.Context) (string, error)
}

// expiryFor reads the exp claim of idToken without verifying it; the identity
// service already did. When the token carries no exp, expiresIn seconds are used.
func expiryFor(idToken, expiresIn string, now time.Time) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	seconds, err := strconv.ParseInt(strings.TrimSpace(expiresIn), 10, 64)
	if err != nil || seconds <= 0 {
		return now
	}
	return now.Add(time.Duration(seconds) * time.Second)
}
