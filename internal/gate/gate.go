// Package gate decides whether a principal may mutate a book.
package gate

import (
	"errors"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/session"
)

var (
	errNoPrincipal  = errors.New("gate: no signed-in principal")
	errNotBookOwner = errors.New("gate: principal does not own the book")
)

// CanMutate reports whether principal owns book. An absent principal, or one
// without an email, owns nothing.
func CanMutate(principal *session.Principal, book books.Book) bool {
	return principal != nil && principal.Email != "" && principal.Email == book.OwnerEmail
}

// Authorize returns nil when principal may mutate book, otherwise an auth error:
// unauthenticated without a principal, unauthorized for anyone but the owner.
func Authorize(principal *session.Principal, book books.Book) error {
	if principal == nil {
		return apperr.Auth(apperr.CodeUnauthenticated, errNoPrincipal)
	}
	if !CanMutate(principal, book) {
		return apperr.Auth(apperr.CodeUnauthorized, errNotBookOwner)
	}
	return nil
}
