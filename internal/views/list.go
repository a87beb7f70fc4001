package views

import (
	"context"
	"fmt"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/gate"
	"go.uber.org/zap"
)

const (
	msgListLoadFailed   = "Failed to load books. Please check your connection."
	msgLoginToDelete    = "Please login first to delete books."
	msgDeleteNotOwner   = "You can only delete your own books."
	msgDeleteFailed     = "Failed to delete the book. Please try again."
	msgDeleteSucceeded  = "Book deleted successfully."
	deleteConfirmPrompt = "Are you sure you want to delete the book: %q?"
)

// Card is one book as a list renders it.
type Card struct {
	Book     books.Book
	IsOwner  bool
	Deleting bool
}

// ListSnapshot is the renderable state of a ListView.
type ListSnapshot struct {
	Loading  bool
	Sort     books.SortOrder
	Cards    []Card
	Feedback *Feedback
}

// ListView is the full catalog with rating sort and owner-only deletion.
type ListView struct {
	base
	loading  bool
	sort     books.SortOrder
	list     []books.Book
	deleting map[string]bool
}

// NewListView constructs a ListView. Call Load to fetch the catalog.
func NewListView(deps Deps) *ListView {
	return &ListView{base: newBase(deps), loading: true, deleting: make(map[string]bool)}
}

// Load fetches the catalog, replacing the current list. The active sort is reapplied.
func (v *ListView) Load(ctx context.Context) error {
	v.mu.Lock()
	generation := v.nextGenerationLocked()
	v.loading = true
	v.mu.Unlock()

	list, err := v.deps.Catalog.ListBooks(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.currentLocked(generation) {
		return nil
	}
	v.loading = false
	if err != nil {
		v.deps.Logger.Warn("catalog load failed", zap.Error(err))
		v.showLocked(FeedbackError, msgListLoadFailed)
		return err
	}
	v.list = books.SortByRating(v.withoutRemovedLocked(list, generation), v.sort)
	return nil
}

// Sort reorders the current list by rating without contacting the service.
func (v *ListView) Sort(order books.SortOrder) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sort = order
	v.list = books.SortByRating(v.list, order)
}

// Delete removes the book after the owner confirms. It reports whether the
// book was deleted; a declined confirmation is (false, nil). A session that is
// still loading is waited for before ownership is checked.
func (v *ListView) Delete(ctx context.Context, id string) (bool, error) {
	principal, err := v.settledPrincipal(ctx)
	if err != nil {
		return false, err
	}
	if principal == nil {
		v.mu.Lock()
		v.showLocked(FeedbackError, msgLoginToDelete)
		v.mu.Unlock()
		v.deps.Navigator.Navigate(RouteLogin)
		return false, apperr.Auth(apperr.CodeUnauthenticated, errSignedOut)
	}

	v.mu.Lock()
	book, ok := books.Find(v.list, id)
	if !ok {
		v.mu.Unlock()
		return false, apperr.NotFound(errUnknownBook)
	}
	if err := gate.Authorize(principal, book); err != nil {
		v.showLocked(FeedbackError, msgDeleteNotOwner)
		v.mu.Unlock()
		return false, err
	}
	if v.deleting[id] {
		v.mu.Unlock()
		return false, ErrInFlight
	}
	v.mu.Unlock()

	if !v.deps.Confirmer.Confirm(ctx, fmt.Sprintf(deleteConfirmPrompt, book.Title)) {
		return false, nil
	}

	v.mu.Lock()
	if v.deleting[id] {
		v.mu.Unlock()
		return false, ErrInFlight
	}
	v.deleting[id] = true
	v.mu.Unlock()

	err = v.deps.Catalog.DeleteBook(ctx, v.bearer(ctx, principal), books.BookID(id))

	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.deleting, id)
	if err != nil {
		v.deps.Logger.Warn("book delete failed", zap.String("book_id", id), zap.Error(err))
		if v.aliveLocked() {
			v.showLocked(FeedbackError, msgDeleteFailed)
		}
		return false, err
	}
	if v.aliveLocked() {
		v.list = books.RemoveBook(v.list, id)
		v.markRemovedLocked(id)
		v.showLocked(FeedbackSuccess, msgDeleteSucceeded)
	}
	return true, nil
}

// Snapshot returns the current renderable state.
func (v *ListView) Snapshot() ListSnapshot {
	principal := v.principal()
	v.mu.Lock()
	defer v.mu.Unlock()
	cards := make([]Card, 0, len(v.list))
	for _, book := range v.list {
		cards = append(cards, Card{
			Book:     book,
			IsOwner:  gate.CanMutate(principal, book),
			Deleting: v.deleting[book.ID],
		})
	}
	return ListSnapshot{Loading: v.loading, Sort: v.sort, Cards: cards, Feedback: v.feedbackLocked()}
}
