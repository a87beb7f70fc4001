package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadClientDefaults(t *testing.T) {
	cfg, err := LoadClient(NewViper())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.CatalogBaseURL != "http://localhost:5000" || cfg.IdentityBaseURL != "http://localhost:5000/identity" {
		t.Fatalf("unexpected base urls %#v", cfg)
	}
	if cfg.CatalogTimeout != 10*time.Second || cfg.IdentityTimeout != 5*time.Second {
		t.Fatalf("unexpected timeouts %#v", cfg)
	}
	if cfg.FeedbackTimeout != 3*time.Second || cfg.RedirectDelay != 1500*time.Millisecond {
		t.Fatalf("unexpected ui timings %#v", cfg)
	}
	if cfg.SessionStorePath != "bookhaven-session.db" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
}

func TestLoadClientReadsEnvironment(t *testing.T) {
	t.Setenv("BOOKHAVEN_CATALOG_BASE_URL", "https://books.example.com/api")
	t.Setenv("BOOKHAVEN_UI_REDIRECT_DELAY", "2s")

	cfg, err := LoadClient(NewViper())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.CatalogBaseURL != "https://books.example.com/api" || cfg.RedirectDelay != 2*time.Second {
		t.Fatalf("unexpected config %#v", cfg)
	}
}

func TestLoadClientRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "relative-catalog", key: "catalog.base_url", value: "/books", wantErr: "catalog.base_url"},
		{name: "ftp-identity", key: "identity.base_url", value: "ftp://id.example.com", wantErr: "identity.base_url"},
		{name: "zero-timeout", key: "catalog.timeout", value: "0s", wantErr: "catalog.timeout"},
		{name: "empty-store", key: "session.store_path", value: " ", wantErr: "session.store_path"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			configViper.Set(testCase.key, testCase.value)
			_, err := LoadClient(configViper)
			if err == nil || !strings.Contains(err.Error(), testCase.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestLoadServerRequiresSigningSecret(t *testing.T) {
	if _, err := LoadServer(NewViper()); err == nil || !strings.Contains(err.Error(), "server.signing_secret") {
		t.Fatalf("expected signing secret error, got %v", err)
	}

	configViper := NewViper()
	configViper.Set("server.signing_secret", "secret")
	cfg, err := LoadServer(configViper)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:5000" || cfg.DatabasePath != "bookhaven.db" || cfg.TokenTTL != time.Hour {
		t.Fatalf("unexpected server defaults %#v", cfg)
	}
	if cfg.GoogleJWKSURL != "https://www.googleapis.com/oauth2/v3/certs" {
		t.Fatalf("unexpected jwks url %q", cfg.GoogleJWKSURL)
	}
}
