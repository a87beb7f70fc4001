package views

import (
	"context"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/gate"
	"go.uber.org/zap"
)

const (
	msgMyBooksLoadFailed   = "Failed to load your books. Please check your connection."
	msgMyBooksDeleteFailed = "Deletion failed. Please try again."
)

// MyBooksSnapshot is the renderable state of a MyBooksView.
type MyBooksSnapshot struct {
	Loading       bool
	AccessDenied  bool
	Cards         []Card
	PendingDelete *books.Book
	Feedback      *Feedback
}

// MyBooksView lists the signed-in principal's books. Deletion is two-step:
// RequestDelete opens the confirmation, ConfirmDelete or CancelDelete closes it.
type MyBooksView struct {
	base
	loading      bool
	accessDenied bool
	list         []books.Book
	deleting     map[string]bool
	pending      *books.Book
}

// NewMyBooksView constructs a MyBooksView.
func NewMyBooksView(deps Deps) *MyBooksView {
	return &MyBooksView{base: newBase(deps), loading: true, deleting: make(map[string]bool)}
}

// Load fetches the principal's books. While the session is still loading the
// view stays in its loading state. Without a principal the view shows an
// access-denied state and the catalog is not queried.
func (v *MyBooksView) Load(ctx context.Context) error {
	v.mu.Lock()
	v.loading = true
	v.mu.Unlock()

	principal, err := v.settledPrincipal(ctx)
	if err != nil {
		return err
	}

	v.mu.Lock()
	generation := v.nextGenerationLocked()
	if principal == nil {
		v.loading = false
		v.accessDenied = true
		v.list = nil
		v.pending = nil
		v.mu.Unlock()
		return nil
	}
	v.loading = true
	v.accessDenied = false
	v.mu.Unlock()

	list, err := v.deps.Catalog.ListBooks(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.currentLocked(generation) {
		return nil
	}
	v.loading = false
	if err != nil {
		v.deps.Logger.Warn("my books load failed", zap.Error(err))
		v.pinLocked(FeedbackError, msgMyBooksLoadFailed)
		return err
	}
	v.clearFeedbackLocked()
	v.list = v.withoutRemovedLocked(books.OwnedBy(list, principal.Email), generation)
	return nil
}

// RequestDelete opens the confirmation for id.
func (v *MyBooksView) RequestDelete(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	book, ok := books.Find(v.list, id)
	if !ok {
		return apperr.NotFound(errUnknownBook)
	}
	v.pending = &book
	return nil
}

// CancelDelete closes the confirmation without deleting.
func (v *MyBooksView) CancelDelete() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = nil
}

// ConfirmDelete deletes the book awaiting confirmation. With nothing pending it
// returns (false, nil).
func (v *MyBooksView) ConfirmDelete(ctx context.Context) (bool, error) {
	principal, err := v.settledPrincipal(ctx)
	if err != nil {
		return false, err
	}

	v.mu.Lock()
	if v.pending == nil {
		v.mu.Unlock()
		return false, nil
	}
	book := *v.pending
	v.pending = nil
	if err := gate.Authorize(principal, book); err != nil {
		v.mu.Unlock()
		return false, err
	}
	if v.deleting[book.ID] {
		v.mu.Unlock()
		return false, ErrInFlight
	}
	v.deleting[book.ID] = true
	v.clearFeedbackLocked()
	v.mu.Unlock()

	err = v.deps.Catalog.DeleteBook(ctx, v.bearer(ctx, principal), books.BookID(book.ID))

	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.deleting, book.ID)
	if err != nil {
		v.deps.Logger.Warn("book delete failed", zap.String("book_id", book.ID), zap.Error(err))
		if v.aliveLocked() {
			v.pinLocked(FeedbackError, msgMyBooksDeleteFailed)
		}
		return false, err
	}
	if v.aliveLocked() {
		v.list = books.RemoveBook(v.list, book.ID)
		v.markRemovedLocked(book.ID)
	}
	return true, nil
}

// Snapshot returns the current renderable state.
func (v *MyBooksView) Snapshot() MyBooksSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	cards := make([]Card, 0, len(v.list))
	for _, book := range v.list {
		cards = append(cards, Card{Book: book, IsOwner: true, Deleting: v.deleting[book.ID]})
	}
	var pending *books.Book
	if v.pending != nil {
		copied := *v.pending
		pending = &copied
	}
	return MyBooksSnapshot{
		Loading:       v.loading,
		AccessDenied:  v.accessDenied,
		Cards:         cards,
		PendingDelete: pending,
		Feedback:      v.feedbackLocked(),
	}
}
