package views

import (
	"context"
	"fmt"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/identity"
	"go.uber.org/zap"
)

const (
	msgInvalidCredentials  = "Invalid email or password. Please try again."
	msgUserNotFound        = "No user found with this email."
	msgLoginFailed         = "Login failed. Please check your network or try again."
	msgGoogleFailed        = "Google Sign-in failed. Please try again."
	msgEmailInUse          = "This email is already in use. Please log in."
	msgInvalidEmail        = "Please enter a valid email address."
	msgWeakPassword        = "Password must be at least 6 characters long."
	msgRegistrationFailed  = "Registration failed. Please check your credentials."
	msgRegistrationWelcome = "Welcome, %s! Your account has been created."
)

// LoginMessage maps a sign-in failure onto its user-facing message.
func LoginMessage(err error) string {
	switch apperr.CodeOf(err) {
	case apperr.CodeInvalidCredentials:
		return msgInvalidCredentials
	case apperr.CodeUserNotFound:
		return msgUserNotFound
	case apperr.CodeInvalidEmail:
		return msgInvalidEmail
	default:
		return msgLoginFailed
	}
}

// RegisterMessage maps a registration failure onto its user-facing message.
func RegisterMessage(err error) string {
	if apperr.IsKind(err, apperr.KindValidation) {
		if message := apperr.MessageOf(err); message != "" {
			return message
		}
	}
	switch apperr.CodeOf(err) {
	case apperr.CodeEmailAlreadyInUse:
		return msgEmailInUse
	case apperr.CodeInvalidEmail:
		return msgInvalidEmail
	case apperr.CodeWeakPassword:
		return msgWeakPassword
	default:
		return msgRegistrationFailed
	}
}

// AuthSnapshot is the renderable state of a sign-in or registration form.
type AuthSnapshot struct {
	Submitting bool
	Feedback   *Feedback
}

type authForm struct {
	base
	submitting bool
}

func (f *authForm) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitting {
		return ErrInFlight
	}
	f.submitting = true
	f.clearFeedbackLocked()
	return nil
}

func (f *authForm) finish(err error, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if err != nil && f.aliveLocked() {
		f.pinLocked(FeedbackError, message)
	}
}

// Snapshot returns the current renderable state.
func (f *authForm) Snapshot() AuthSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return AuthSnapshot{Submitting: f.submitting, Feedback: f.feedbackLocked()}
}

// LoginForm signs in with email and password or with Google.
type LoginForm struct {
	authForm
}

// NewLoginForm constructs a LoginForm.
func NewLoginForm(deps Deps) *LoginForm {
	return &LoginForm{authForm{base: newBase(deps)}}
}

// Submit signs in with email and password and navigates home on success.
func (f *LoginForm) Submit(ctx context.Context, email, password string) error {
	if err := f.begin(); err != nil {
		return err
	}
	_, err := f.deps.Auth.SignIn(ctx, email, password)
	f.finish(err, LoginMessage(err))
	if err != nil {
		f.deps.Logger.Warn("login failed", zap.String("code", string(apperr.CodeOf(err))), zap.Error(err))
		return err
	}
	f.deps.Navigator.Navigate(RouteHome)
	return nil
}

// GoogleSignIn runs the federated flow and navigates home on success.
func (f *LoginForm) GoogleSignIn(ctx context.Context, flow identity.FederatedFlow) error {
	if err := f.begin(); err != nil {
		return err
	}
	_, err := f.deps.Auth.FederatedSignIn(ctx, flow)
	f.finish(err, msgGoogleFailed)
	if err != nil {
		f.deps.Logger.Warn("google sign-in failed", zap.Error(err))
		return err
	}
	f.deps.Navigator.Navigate(RouteHome)
	return nil
}

// Registration is the input of the registration form.
type Registration struct {
	Name     string
	Email    string
	Password string
	PhotoURL string
}

// RegisterForm creates an account and signs it in.
type RegisterForm struct {
	authForm
}

// NewRegisterForm constructs a RegisterForm.
func NewRegisterForm(deps Deps) *RegisterForm {
	return &RegisterForm{authForm{base: newBase(deps)}}
}

// Submit registers the account, welcomes the user and navigates home.
func (f *RegisterForm) Submit(ctx context.Context, registration Registration) error {
	if err := f.begin(); err != nil {
		return err
	}
	_, err := f.deps.Auth.SignUp(ctx, registration.Email, registration.Password, registration.Name, registration.PhotoURL)
	f.finish(err, RegisterMessage(err))
	if err != nil {
		if !apperr.IsKind(err, apperr.KindValidation) {
			f.deps.Logger.Warn("registration failed", zap.String("code", string(apperr.CodeOf(err))), zap.Error(err))
		}
		return err
	}
	f.mu.Lock()
	f.showLocked(FeedbackSuccess, fmt.Sprintf(msgRegistrationWelcome, registration.Name))
	f.mu.Unlock()
	f.deps.Navigator.Navigate(RouteHome)
	return nil
}
