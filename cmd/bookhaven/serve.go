package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/accounts"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/auth"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/config"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/database"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/logging"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/server"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/shelf"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	tokenIssuer     = "bookhaven-identity"
	shutdownTimeout = 10 * time.Second
)

func newServeCommand(configViper *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local catalog and identity service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), configViper)
		},
	}

	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.String("http-address", defaults.GetString("server.http_address"), "HTTP listen address")
	flags.String("database-path", defaults.GetString("server.database_path"), "SQLite database path")
	flags.String("signing-secret", "", "ID token signing secret (overrides env)")
	flags.Duration("token-ttl", defaults.GetDuration("server.token_ttl"), "ID token lifetime")
	flags.String("google-client-id", defaults.GetString("google.client_id"), "Google OAuth client ID; empty disables Google sign-in")
	flags.String("google-jwks-url", defaults.GetString("google.jwks_url"), "Google JWKS URL")

	bindFlag(configViper, cmd, "server.http_address", "http-address")
	bindFlag(configViper, cmd, "server.database_path", "database-path")
	bindFlag(configViper, cmd, "server.signing_secret", "signing-secret")
	bindFlag(configViper, cmd, "server.token_ttl", "token-ttl")
	bindFlag(configViper, cmd, "google.client_id", "google-client-id")
	bindFlag(configViper, cmd, "google.jwks_url", "google-jwks-url")
	return cmd
}

func runServer(ctx context.Context, configViper *viper.Viper) error {
	appConfig, err := config.LoadServer(configViper)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        tokenIssuer,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	var googleVerifier server.GoogleVerifier
	if appConfig.GoogleClientID != "" {
		verifier, err := auth.NewGoogleVerifier(auth.GoogleVerifierConfig{
			Audience: appConfig.GoogleClientID,
			JWKSURL:  appConfig.GoogleJWKSURL,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		googleVerifier = verifier
	} else {
		logger.Info("google sign-in disabled: no client id configured")
	}

	shelfService, err := shelf.NewService(shelf.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	accountService, err := accounts.NewService(accounts.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		GoogleVerifier: googleVerifier,
		TokenManager:   tokenManager,
		ShelfService:   shelfService,
		Accounts:       accountService,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
