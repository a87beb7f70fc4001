package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "BOOKHAVEN"
	defaultCatalogBaseURL   = "http://localhost:5000"
	defaultCatalogTimeout   = 10 * time.Second
	defaultIdentityBaseURL  = "http://localhost:5000/identity"
	defaultIdentityTimeout  = 5 * time.Second
	defaultSessionStorePath = "bookhaven-session.db"
	defaultFeedbackTimeout  = 3 * time.Second
	defaultRedirectDelay    = 1500 * time.Millisecond
	defaultLogLevel         = "info"
	defaultHTTPAddress      = "0.0.0.0:5000"
	defaultDatabasePath     = "bookhaven.db"
	defaultTokenTTL         = time.Hour
	defaultGoogleJWKSURL    = "https://www.googleapis.com/oauth2/v3/certs"
)

// ClientConfig captures runtime configuration for the Book Haven client.
type ClientConfig struct {
	CatalogBaseURL   string
	CatalogTimeout   time.Duration
	IdentityBaseURL  string
	IdentityAPIKey   string
	IdentityTimeout  time.Duration
	SessionStorePath string
	FeedbackTimeout  time.Duration
	RedirectDelay    time.Duration
	LogLevel         string
}

// ServerConfig captures runtime configuration for the development stand-in server.
type ServerConfig struct {
	HTTPAddress    string
	DatabasePath   string
	SigningSecret  string
	TokenTTL       time.Duration
	GoogleClientID string
	GoogleJWKSURL  string
	LogLevel       string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("catalog.base_url", defaultCatalogBaseURL)
	configViper.SetDefault("catalog.timeout", defaultCatalogTimeout)
	configViper.SetDefault("identity.base_url", defaultIdentityBaseURL)
	configViper.SetDefault("identity.api_key", "")
	configViper.SetDefault("identity.timeout", defaultIdentityTimeout)
	configViper.SetDefault("session.store_path", defaultSessionStorePath)
	configViper.SetDefault("ui.feedback_timeout", defaultFeedbackTimeout)
	configViper.SetDefault("ui.redirect_delay", defaultRedirectDelay)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("server.http_address", defaultHTTPAddress)
	configViper.SetDefault("server.database_path", defaultDatabasePath)
	configViper.SetDefault("server.signing_secret", "")
	configViper.SetDefault("server.token_ttl", defaultTokenTTL)
	configViper.SetDefault("google.client_id", "")
	configViper.SetDefault("google.jwks_url", defaultGoogleJWKSURL)
}

// LoadClient parses client configuration from viper.
func LoadClient(configViper *viper.Viper) (ClientConfig, error) {
	cfg := ClientConfig{
		CatalogBaseURL:   strings.TrimSpace(configViper.GetString("catalog.base_url")),
		CatalogTimeout:   configViper.GetDuration("catalog.timeout"),
		IdentityBaseURL:  strings.TrimSpace(configViper.GetString("identity.base_url")),
		IdentityAPIKey:   strings.TrimSpace(configViper.GetString("identity.api_key")),
		IdentityTimeout:  configViper.GetDuration("identity.timeout"),
		SessionStorePath: strings.TrimSpace(configViper.GetString("session.store_path")),
		FeedbackTimeout:  configViper.GetDuration("ui.feedback_timeout"),
		RedirectDelay:    configViper.GetDuration("ui.redirect_delay"),
		LogLevel:         configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return ClientConfig{}, err
	}

	return cfg, nil
}

// LoadServer parses stand-in server configuration from viper.
func LoadServer(configViper *viper.Viper) (ServerConfig, error) {
	cfg := ServerConfig{
		HTTPAddress:    strings.TrimSpace(configViper.GetString("server.http_address")),
		DatabasePath:   strings.TrimSpace(configViper.GetString("server.database_path")),
		SigningSecret:  configViper.GetString("server.signing_secret"),
		TokenTTL:       configViper.GetDuration("server.token_ttl"),
		GoogleClientID: strings.TrimSpace(configViper.GetString("google.client_id")),
		GoogleJWKSURL:  strings.TrimSpace(configViper.GetString("google.jwks_url")),
		LogLevel:       configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return ServerConfig{}, err
	}

	return cfg, nil
}

func (c ClientConfig) validate() error {
	if err := validateBaseURL("catalog.base_url", c.CatalogBaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("identity.base_url", c.IdentityBaseURL); err != nil {
		return err
	}
	if c.CatalogTimeout <= 0 {
		return fmt.Errorf("catalog.timeout must be positive")
	}
	if c.IdentityTimeout <= 0 {
		return fmt.Errorf("identity.timeout must be positive")
	}
	if c.SessionStorePath == "" {
		return fmt.Errorf("session.store_path is required")
	}
	if c.FeedbackTimeout <= 0 {
		return fmt.Errorf("ui.feedback_timeout must be positive")
	}
	if c.RedirectDelay < 0 {
		return fmt.Errorf("ui.redirect_delay must not be negative")
	}
	return nil
}

func (c ServerConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("server.signing_secret is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("server.database_path is required")
	}
	if c.HTTPAddress == "" {
		return fmt.Errorf("server.http_address is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("server.token_ttl must be positive")
	}
	return nil
}

func validateBaseURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) url", key)
	}
	return nil
}
