// Package views holds the page-level state machines of the Book Haven client:
// the catalog list, my-books, home, book detail, the add/update forms and the
// sign-in forms. Views own no rendering; callers read a Snapshot after each action.
package views

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/identity"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/session"
	"go.uber.org/zap"
)

// Routes the views navigate to.
const (
	RouteHome     = "/"
	RouteLogin    = "/login"
	RouteRegister = "/register"
	RouteAllBooks = "/all-books"
	RouteMyBooks  = "/my-books"
	RouteAddBook  = "/add-book"
)

const (
	defaultFeedbackTimeout = 3 * time.Second
	defaultRedirectDelay   = 1500 * time.Millisecond
)

var (
	// ErrInFlight rejects a second submit or delete while one is outstanding.
	ErrInFlight = errors.New("views: action already in flight")
	// ErrNotEditable rejects edits and submits outside the editing phase.
	ErrNotEditable = errors.New("views: form is not editable")

	errSignedOut       = errors.New("views: no signed-in principal")
	errUnknownBook     = errors.New("views: book is not in the current list")
	errNotLoaded       = errors.New("views: book not loaded")
	errIncompleteID    = errors.New("views: principal is missing an id or email")
	errNotAcknowledged = errors.New("views: comment was not acknowledged")
)

// RouteBook is the detail route of a book.
func RouteBook(id string) string {
	return "/book/" + id
}

// RouteUpdateBook is the edit route of a book.
func RouteUpdateBook(id string) string {
	return "/update-book/" + id
}

// Catalog is the catalog service surface the views consume.
type Catalog interface {
	ListBooks(ctx context.Context) ([]books.Book, error)
	GetBook(ctx context.Context, id books.BookID) (books.Book, error)
	AddBook(ctx context.Context, token string, input books.Input) (books.Book, error)
	UpdateBook(ctx context.Context, token string, id books.BookID, input books.Input) (books.Book, error)
	DeleteBook(ctx context.Context, token string, id books.BookID) error
	PostComment(ctx context.Context, token string, id books.BookID, comment books.CommentInput) (bool, error)
}

// SessionReader exposes the current session state and its changes.
type SessionReader interface {
	Current() session.State
	Subscribe(ctx context.Context) (<-chan session.State, func())
}

// Authenticator is the part of the session the sign-in forms drive.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*session.Principal, error)
	SignUp(ctx context.Context, email, password, displayName, photoURL string) (*session.Principal, error)
	FederatedSignIn(ctx context.Context, flow identity.FederatedFlow) (*session.Principal, error)
}

// Navigator moves the user to another route.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

// Navigate calls f(route).
func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, prompt string) bool

// Confirm calls f(ctx, prompt).
func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// Deps are the collaborators shared by every view.
type Deps struct {
	Catalog   Catalog
	Session   SessionReader
	Auth      Authenticator
	Navigator Navigator
	Confirmer Confirmer
	Scheduler Scheduler
	Clock     func() time.Time
	Logger    *zap.Logger

	FeedbackTimeout time.Duration
	RedirectDelay   time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Navigator == nil {
		d.Navigator = NavigatorFunc(func(string) {})
	}
	if d.Confirmer == nil {
		d.Confirmer = ConfirmerFunc(func(context.Context, string) bool { return false })
	}
	if d.Scheduler == nil {
		d.Scheduler = TimerScheduler{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.FeedbackTimeout <= 0 {
		d.FeedbackTimeout = defaultFeedbackTimeout
	}
	if d.RedirectDelay <= 0 {
		d.RedirectDelay = defaultRedirectDelay
	}
	return d
}
