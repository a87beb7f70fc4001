package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	errKeyNotFound  = errors.New("signing key not found in JWKS")
	errNoUsableKeys = errors.New("jwks document contained no usable keys")
)

// keySet caches the RSA signing keys published at a JWKS endpoint.
// Concurrent misses share one fetch.
type keySet struct {
	url        string
	httpClient *http.Client
	ttl        time.Duration
	clock      func() time.Time
	logger     *zap.Logger

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
	fetches   singleflight.Group
}

func (s *keySet) key(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	if key, fresh := s.cached(keyID); key != nil && fresh {
		return key, nil
	}
	if _, err, _ := s.fetches.Do(s.url, func() (interface{}, error) {
		return nil, s.fetch(ctx)
	}); err != nil {
		return nil, err
	}
	if key, _ := s.cached(keyID); key != nil {
		return key, nil
	}
	return nil, errKeyNotFound
}

func (s *keySet) cached(keyID string) (*rsa.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.keys == nil {
		return nil, false
	}
	return s.keys[keyID], s.clock().Before(s.expiresAt)
}

func (s *keySet) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks request returned status %d", resp.StatusCode)
	}

	var document struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&document); err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(document.Keys))
	for _, candidate := range document.Keys {
		if candidate.KeyType != "RSA" || (candidate.Use != "" && candidate.Use != "sig") {
			continue
		}
		publicKey, err := candidate.rsaPublicKey()
		if err != nil {
			s.logger.Debug("skipping jwk", zap.String("kid", candidate.KeyID), zap.Error(err))
			continue
		}
		keys[candidate.KeyID] = publicKey
	}
	if len(keys) == 0 {
		return errNoUsableKeys
	}

	s.mu.Lock()
	s.keys = keys
	s.expiresAt = s.clock().Add(s.ttl)
	s.mu.Unlock()
	s.logger.Debug("jwks refreshed", zap.Int("keys", len(keys)))
	return nil
}

type jsonWebKey struct {
	KeyType  string `json:"kty"`
	KeyID    string `json:"kid"`
	Use      string `json:"use"`
	Modulus  string `json:"n"`
	Exponent string `json:"e"`
}

func (k jsonWebKey) rsaPublicKey() (*rsa.PublicKey, error) {
	modulus, err := base64.RawURLEncoding.DecodeString(k.Modulus)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus encoding: %w", err)
	}
	exponentBytes, err := base64.RawURLEncoding.DecodeString(k.Exponent)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent encoding: %w", err)
	}
	exponent := new(big.Int).SetBytes(exponentBytes)
	if exponent.Sign() == 0 || !exponent.IsInt64() || exponent.Int64() > 1<<31-1 {
		return nil, errors.New("invalid exponent value")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(modulus), E: int(exponent.Int64())}, nil
}
