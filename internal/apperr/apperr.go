// Package apperr defines the error taxonomy shared by the Book Haven client.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how callers must react to it.
type Kind string

const (
	// KindValidation is a client-side rule violation; it never reaches the network.
	KindValidation Kind = "validation"
	// KindAuth covers identity failures and ownership rejections.
	KindAuth Kind = "auth"
	// KindNetwork covers transport failures and requests the service rejected.
	KindNetwork Kind = "network"
	// KindNotFound reports an absent resource.
	KindNotFound Kind = "not_found"
)

// Code narrows an auth failure.
type Code string

const (
	CodeNone               Code = ""
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeUserNotFound       Code = "user_not_found"
	CodeEmailAlreadyInUse  Code = "email_already_in_use"
	CodeInvalidEmail       Code = "invalid_email"
	CodeWeakPassword       Code = "weak_password"
	CodeUnauthenticated    Code = "unauthenticated"
	CodeUnauthorized       Code = "unauthorized"
	CodeNetworkOrUnknown   Code = "network_or_unknown"
)

// Error is the concrete error type for every classified failure.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	label := string(e.Kind)
	if e.Code != CodeNone {
		label = fmt.Sprintf("%s.%s", e.Kind, e.Code)
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", label, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", label, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", label, e.Err)
	default:
		return label
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a client-side validation error carrying a user-facing message.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// Auth returns an auth error with the given code.
func Auth(code Code, cause error) error {
	return &Error{Kind: KindAuth, Code: code, Err: cause}
}

// Network returns a network error wrapping the transport or service failure.
func Network(cause error) error {
	return &Error{Kind: KindNetwork, Code: CodeNetworkOrUnknown, Err: cause}
}

// NotFound returns a not-found error wrapping cause.
func NotFound(cause error) error {
	return &Error{Kind: KindNotFound, Err: cause}
}

// KindOf reports the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}

// CodeOf reports the code of err, or CodeNone when err is not classified.
func CodeOf(err error) Code {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Code
	}
	return CodeNone
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the user-facing message attached to err, if any.
func MessageOf(err error) string {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Message
	}
	return ""
}
