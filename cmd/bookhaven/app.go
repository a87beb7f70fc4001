package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/catalog"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/config"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/identity"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/logging"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/session"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/views"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// shownError marks a failure whose user-facing message was already printed.
type shownError struct {
	err error
}

func (e shownError) Error() string {
	return e.err.Error()
}

func (e shownError) Unwrap() error {
	return e.err
}

// clientApp is the client stack one command invocation runs against.
type clientApp struct {
	out       io.Writer
	in        *bufio.Reader
	logger    *zap.Logger
	store     *identity.CredentialStore
	session   *session.Context
	scheduler *views.ManualScheduler
	deps      views.Deps

	assumeYes bool
}

// openClientApp wires the catalog client, the identity provider and the
// session, and restores the persisted credential.
func openClientApp(cmd *cobra.Command, configViper *viper.Viper) (*clientApp, error) {
	cfg, err := config.LoadClient(configViper)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewConsoleLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	catalogClient, err := catalog.NewClient(catalog.Config{
		BaseURL: cfg.CatalogBaseURL,
		Timeout: cfg.CatalogTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	provider, err := identity.NewHTTPProvider(identity.HTTPProviderConfig{
		BaseURL: cfg.IdentityBaseURL,
		APIKey:  cfg.IdentityAPIKey,
		Timeout: cfg.IdentityTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	store, err := identity.OpenCredentialStore(cfg.SessionStorePath)
	if err != nil {
		return nil, err
	}
	sessionContext, err := session.New(session.Config{
		Provider: provider,
		Store:    store,
		Logger:   logger,
	})
	if err != nil {
		store.Close() //nolint:errcheck
		return nil, err
	}
	if err := sessionContext.Start(cmd.Context()); err != nil {
		store.Close() //nolint:errcheck
		return nil, err
	}

	app := &clientApp{
		out:       cmd.OutOrStdout(),
		in:        bufio.NewReader(cmd.InOrStdin()),
		logger:    logger,
		store:     store,
		session:   sessionContext,
		scheduler: &views.ManualScheduler{},
	}
	app.deps = views.Deps{
		Catalog:         catalogClient,
		Session:         sessionContext,
		Auth:            sessionContext,
		Navigator:       views.NavigatorFunc(app.navigate),
		Confirmer:       views.ConfirmerFunc(app.confirm),
		Scheduler:       app.scheduler,
		Logger:          logger,
		FeedbackTimeout: cfg.FeedbackTimeout,
		RedirectDelay:   cfg.RedirectDelay,
	}
	return app, nil
}

// Close runs deferred navigation and releases the credential store.
func (a *clientApp) Close() {
	a.scheduler.Flush()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("credential store close failed", zap.Error(err))
	}
	a.logger.Sync() //nolint:errcheck
}

func (a *clientApp) navigate(route string) {
	fmt.Fprintf(a.out, "-> %s\n", route)
}

func (a *clientApp) confirm(_ context.Context, prompt string) bool {
	if a.assumeYes {
		return true
	}
	fmt.Fprintf(a.out, "%s [y/N] ", prompt)
	answer, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (a *clientApp) printLine(text string) {
	fmt.Fprintln(a.out, text)
}

// readLine returns one trimmed line from the command's input.
func (a *clientApp) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// outcome turns a view error into the command result. When the view already
// printed feedback the error is not reported again.
func outcome(err error, feedback *views.Feedback) error {
	if err == nil {
		return nil
	}
	if feedback != nil && feedback.Kind == views.FeedbackError {
		return shownError{err: err}
	}
	return err
}

// runClient opens the client stack, runs fn and closes the stack.
func runClient(cmd *cobra.Command, configViper *viper.Viper, fn func(ctx context.Context, app *clientApp) error) error {
	app, err := openClientApp(cmd, configViper)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(cmd.Context(), app)
}
