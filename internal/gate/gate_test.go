package gate

import (
	"testing"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/session"
)

func TestCanMutate(t *testing.T) {
	owner := session.NewPrincipal("u1", "x@y.com", "X", "", nil)
	anonymousEmail := session.NewPrincipal("u2", "", "", "", nil)

	testCases := []struct {
		name      string
		principal *session.Principal
		book      books.Book
		want      bool
	}{
		{name: "owner", principal: owner, book: books.Book{ID: "1", OwnerEmail: "x@y.com"}, want: true},
		{name: "other-owner", principal: owner, book: books.Book{ID: "2", OwnerEmail: "z@y.com"}, want: false},
		{name: "no-principal", principal: nil, book: books.Book{ID: "1", OwnerEmail: "x@y.com"}, want: false},
		{name: "no-principal-unowned", principal: nil, book: books.Book{ID: "3"}, want: false},
		{name: "empty-email-unowned", principal: anonymousEmail, book: books.Book{ID: "3"}, want: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := CanMutate(testCase.principal, testCase.book); got != testCase.want {
				t.Fatalf("expected %v, got %v", testCase.want, got)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	owner := session.NewPrincipal("u1", "x@y.com", "X", "", nil)
	book := books.Book{ID: "1", OwnerEmail: "x@y.com"}

	if err := Authorize(owner, book); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Authorize(nil, book); apperr.CodeOf(err) != apperr.CodeUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if err := Authorize(owner, books.Book{ID: "2", OwnerEmail: "z@y.com"}); apperr.CodeOf(err) != apperr.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
