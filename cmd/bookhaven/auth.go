package main

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/identity"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/views"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const stdinMarker = "-"

var errMissingIDToken = errors.New("an --id-token is required")

// idTokenFlow is a federated flow whose provider token was obtained outside
// the CLI, for example from a browser sign-in.
type idTokenFlow struct {
	providerID string
	token      string
}

func (f idTokenFlow) ProviderID() string {
	return f.providerID
}

func (f idTokenFlow) IDToken(context.Context) (string, error) {
	if strings.TrimSpace(f.token) == "" {
		return "", errMissingIDToken
	}
	return f.token, nil
}

func newLoginCommand(configViper *viper.Viper) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, configViper, func(ctx context.Context, app *clientApp) error {
				form := views.NewLoginForm(app.deps)
				err := form.Submit(ctx, email, password)
				snapshot := form.Snapshot()
				printAuth(app.out, snapshot)
				if err == nil {
					printPrincipal(app.out, app.session.Current())
				}
				return outcome(err, snapshot.Feedback)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.AddCommand(newLoginGoogleCommand(configViper))
	return cmd
}

func newLoginGoogleCommand(configViper *viper.Viper) *cobra.Command {
	var idToken string
	cmd := &cobra.Command{
		Use:   "google",
		Short: "Sign in with a Google ID token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, configViper, func(ctx context.Context, app *clientApp) error {
				token := idToken
				if token == stdinMarker {
					line, err := app.readLine()
					if err != nil {
						return err
					}
					token = line
				}
				form := views.NewLoginForm(app.deps)
				err := form.GoogleSignIn(ctx, idTokenFlow{providerID: identity.ProviderGoogle, token: token})
				snapshot := form.Snapshot()
				printAuth(app.out, snapshot)
				if err == nil {
					printPrincipal(app.out, app.session.Current())
				}
				return outcome(err, snapshot.Feedback)
			})
		},
	}
	cmd.Flags().StringVar(&idToken, "id-token", "", "Google ID token, or - to read it from stdin")
	return cmd
}

func newRegisterCommand(configViper *viper.Viper) *cobra.Command {
	var registration views.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, configViper, func(ctx context.Context, app *clientApp) error {
				form := views.NewRegisterForm(app.deps)
				err := form.Submit(ctx, registration)
				snapshot := form.Snapshot()
				printAuth(app.out, snapshot)
				return outcome(err, snapshot.Feedback)
			})
		},
	}
	cmd.Flags().StringVar(&registration.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&registration.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&registration.Password, "password", "", "Account password")
	cmd.Flags().StringVar(&registration.PhotoURL, "photo-url", "", "Profile photo URL")
	return cmd
}

func newLogoutCommand(configViper *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, configViper, func(ctx context.Context, app *clientApp) error {
				if err := app.session.SignOut(ctx); err != nil {
					return err
				}
				app.printLine("Signed out.")
				app.navigate(views.RouteHome)
				return nil
			})
		},
	}
}

func newWhoAmICommand(configViper *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, configViper, func(ctx context.Context, app *clientApp) error {
				printPrincipal(app.out, app.session.Current())
				return nil
			})
		},
	}
}
