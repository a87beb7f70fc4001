package views

import (
	"context"
	"errors"
	"testing"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/identity"
)

type stubFlow struct{}

func (stubFlow) ProviderID() string { return identity.ProviderGoogle }

func (stubFlow) IDToken(context.Context) (string, error) { return "google-token", nil }

func TestLoginMessages(t *testing.T) {
	testCases := []struct {
		code apperr.Code
		want string
	}{
		{code: apperr.CodeInvalidCredentials, want: msgInvalidCredentials},
		{code: apperr.CodeUserNotFound, want: msgUserNotFound},
		{code: apperr.CodeInvalidEmail, want: msgInvalidEmail},
		{code: apperr.CodeNetworkOrUnknown, want: msgLoginFailed},
	}
	for _, testCase := range testCases {
		t.Run(string(testCase.code), func(t *testing.T) {
			if got := LoginMessage(apperr.Auth(testCase.code, nil)); got != testCase.want {
				t.Fatalf("unexpected message %q", got)
			}
		})
	}
}

func TestRegisterMessages(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want string
	}{
		{name: "email-in-use", err: apperr.Auth(apperr.CodeEmailAlreadyInUse, nil), want: msgEmailInUse},
		{name: "invalid-email", err: apperr.Auth(apperr.CodeInvalidEmail, nil), want: msgInvalidEmail},
		{name: "weak-password", err: apperr.Auth(apperr.CodeWeakPassword, nil), want: msgWeakPassword},
		{name: "local-validation", err: apperr.Validation(msgWeakPassword), want: msgWeakPassword},
		{name: "other", err: apperr.Network(errors.New("down")), want: msgRegistrationFailed},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := RegisterMessage(testCase.err); got != testCase.want {
				t.Fatalf("unexpected message %q", got)
			}
		})
	}
}

func TestLoginFormSubmit(t *testing.T) {
	harness := newHarness()
	form := NewLoginForm(harness.deps())
	if err := form.Submit(context.Background(), "x@y.com", "secret1"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if harness.navigator.last() != RouteHome {
		t.Fatalf("expected navigation home")
	}

	failing := newHarness()
	failing.auth.signInErr = apperr.Auth(apperr.CodeInvalidCredentials, errors.New("INVALID_PASSWORD"))
	failed := NewLoginForm(failing.deps())
	if err := failed.Submit(context.Background(), "x@y.com", "nope"); err == nil {
		t.Fatalf("expected error")
	}
	snapshot := failed.Snapshot()
	if snapshot.Submitting || feedbackText(snapshot.Feedback) != msgInvalidCredentials {
		t.Fatalf("unexpected snapshot %#v", snapshot)
	}
	if failing.navigator.last() != "" {
		t.Fatalf("failed login must not navigate")
	}
}

func TestLoginFormGoogleSignIn(t *testing.T) {
	harness := newHarness()
	harness.auth.federatedErr = apperr.Auth(apperr.CodeNetworkOrUnknown, errors.New("popup closed"))
	form := NewLoginForm(harness.deps())
	if err := form.GoogleSignIn(context.Background(), stubFlow{}); err == nil {
		t.Fatalf("expected error")
	}
	if feedbackText(form.Snapshot().Feedback) != msgGoogleFailed {
		t.Fatalf("unexpected feedback %#v", form.Snapshot().Feedback)
	}

	harness.auth.federatedErr = nil
	if err := form.GoogleSignIn(context.Background(), stubFlow{}); err != nil {
		t.Fatalf("google sign-in failed: %v", err)
	}
	if harness.navigator.last() != RouteHome || form.Snapshot().Feedback != nil {
		t.Fatalf("expected navigation home with cleared feedback")
	}
}

func TestRegisterFormSubmit(t *testing.T) {
	harness := newHarness()
	form := NewRegisterForm(harness.deps())
	registration := Registration{Name: "New Reader", Email: "new@y.com", Password: "secret1", PhotoURL: ""}
	if err := form.Submit(context.Background(), registration); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if len(harness.auth.signUps) != 1 || harness.auth.signUps[0] != registration {
		t.Fatalf("unexpected sign up %#v", harness.auth.signUps)
	}
	if feedbackText(form.Snapshot().Feedback) != "Welcome, New Reader! Your account has been created." {
		t.Fatalf("unexpected feedback %#v", form.Snapshot().Feedback)
	}
	if harness.navigator.last() != RouteHome {
		t.Fatalf("expected navigation home")
	}
}
