package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/gate"
	"go.uber.org/zap"
)

// Phase is the position of a form in its workflow.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseEditing    Phase = "editing"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseTerminal   Phase = "terminal"
)

const (
	msgAddSignedOut       = "You must be logged in to add a book."
	msgAddSucceeded       = "Book added successfully! Redirecting..."
	msgAddFailed          = "Failed to add book. Please try again."
	msgEditSignedOut      = "Authentication required to edit books."
	msgEditNotOwner       = "Unauthorized access. You can only edit your own books."
	msgEditLoadFailed     = "Failed to load book details for editing. It may have been deleted."
	msgUpdateSucceededFmt = "Book %q updated successfully! Redirecting to My Books..."
	msgUpdateFailed       = "Failed to update book. Check details and try again."
)

// FormSnapshot is the renderable state of an add or update form.
type FormSnapshot struct {
	Phase    Phase
	Draft    books.Draft
	Book     *books.Book
	Feedback *Feedback
}

// form is the editing and validation core shared by AddForm and UpdateForm.
type form struct {
	base
	phase Phase
	draft books.Draft
}

// Edit applies mutate to the draft. Editing a rating clears a rating error.
func (f *form) Edit(mutate func(*books.Draft)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.phase {
	case PhaseEditing:
	case PhaseSubmitting:
		return ErrInFlight
	default:
		return ErrNotEditable
	}
	previousRating := f.draft.Rating
	mutate(&f.draft)
	if f.draft.Rating != previousRating && f.feedback != nil && strings.HasPrefix(f.feedback.Text, "Rating") {
		f.clearFeedbackLocked()
	}
	return nil
}

// beginSubmitLocked validates the draft and moves to submitting.
func (f *form) beginSubmitLocked() error {
	switch f.phase {
	case PhaseEditing:
	case PhaseSubmitting:
		return ErrInFlight
	default:
		return ErrNotEditable
	}
	f.clearFeedbackLocked()
	if err := f.draft.Validate(); err != nil {
		f.pinLocked(FeedbackError, apperr.MessageOf(err))
		return err
	}
	f.phase = PhaseSubmitting
	return nil
}

func (f *form) snapshotLocked(book *books.Book) FormSnapshot {
	return FormSnapshot{Phase: f.phase, Draft: f.draft, Book: book, Feedback: f.feedbackLocked()}
}

// AddForm creates a book owned by the signed-in principal.
type AddForm struct {
	form
}

// NewAddForm constructs an AddForm in the editing phase with an empty draft.
func NewAddForm(deps Deps) *AddForm {
	return &AddForm{form: form{base: newBase(deps), phase: PhaseEditing, draft: books.NewDraft()}}
}

// Submit validates the draft and creates the book. Owner attribution is taken
// from the principal signed in at submit time. On success the draft is reset
// and the form navigates to the catalog after the redirect delay.
func (f *AddForm) Submit(ctx context.Context) error {
	principal, err := f.settledPrincipal(ctx)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if principal == nil && f.phase == PhaseEditing {
		f.pinLocked(FeedbackError, msgAddSignedOut)
		f.mu.Unlock()
		return apperr.Auth(apperr.CodeUnauthenticated, errSignedOut)
	}
	if err := f.beginSubmitLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	input := f.draft.Input(principal.Email, principal.DisplayName)
	f.mu.Unlock()

	_, err = f.deps.Catalog.AddBook(ctx, f.bearer(ctx, principal), input)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.aliveLocked() {
		return err
	}
	if err != nil {
		f.deps.Logger.Warn("book add failed", zap.Error(err))
		f.phase = PhaseEditing
		f.pinLocked(FeedbackError, msgAddFailed)
		return err
	}
	f.phase = PhaseSucceeded
	f.draft = books.NewDraft()
	f.pinLocked(FeedbackSuccess, msgAddSucceeded)
	f.scheduleLocked(f.deps.RedirectDelay, func() {
		f.deps.Navigator.Navigate(RouteAllBooks)
	})
	return nil
}

// Snapshot returns the current renderable state.
func (f *AddForm) Snapshot() FormSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked(nil)
}

// UpdateForm edits a book the signed-in principal owns.
type UpdateForm struct {
	form
	book *books.Book
}

// NewUpdateForm constructs an UpdateForm in the loading phase.
func NewUpdateForm(deps Deps) *UpdateForm {
	return &UpdateForm{form: form{base: newBase(deps), phase: PhaseLoading}}
}

// Load fetches the book and authorizes the principal. The form stays in the
// loading phase until the session settles. Without a principal the catalog is
// not queried. Any failure ends in the terminal phase and the edit fields are
// never populated.
func (f *UpdateForm) Load(ctx context.Context, id books.BookID) error {
	f.mu.Lock()
	generation := f.nextGenerationLocked()
	f.phase = PhaseLoading
	f.book = nil
	f.draft = books.Draft{}
	f.clearFeedbackLocked()
	f.mu.Unlock()

	principal, err := f.settledPrincipal(ctx)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if !f.currentLocked(generation) {
		f.mu.Unlock()
		return nil
	}
	if principal == nil {
		f.phase = PhaseTerminal
		f.pinLocked(FeedbackError, msgEditSignedOut)
		f.mu.Unlock()
		return apperr.Auth(apperr.CodeUnauthenticated, errSignedOut)
	}
	f.mu.Unlock()

	book, err := f.deps.Catalog.GetBook(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.currentLocked(generation) {
		return nil
	}
	if err != nil {
		f.deps.Logger.Warn("book load for edit failed", zap.String("book_id", id.String()), zap.Error(err))
		f.phase = PhaseTerminal
		f.pinLocked(FeedbackError, msgEditLoadFailed)
		return err
	}
	if err := gate.Authorize(principal, book); err != nil {
		f.phase = PhaseTerminal
		f.pinLocked(FeedbackError, msgEditNotOwner)
		return err
	}
	f.book = &book
	f.draft = book.Draft()
	f.phase = PhaseEditing
	return nil
}

// Submit validates the draft and updates the book, re-sending the fetched owner
// attribution. On success the form navigates to my-books after the redirect delay.
func (f *UpdateForm) Submit(ctx context.Context) error {
	principal, err := f.settledPrincipal(ctx)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.book == nil {
		f.mu.Unlock()
		return ErrNotEditable
	}
	if err := gate.Authorize(principal, *f.book); err != nil && f.phase == PhaseEditing {
		f.pinLocked(FeedbackError, msgEditNotOwner)
		f.mu.Unlock()
		return err
	}
	if err := f.beginSubmitLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	book := *f.book
	input := f.draft.Input(book.OwnerEmail, book.OwnerName)
	f.mu.Unlock()

	updated, err := f.deps.Catalog.UpdateBook(ctx, f.bearer(ctx, principal), books.BookID(book.ID), input)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.aliveLocked() {
		return err
	}
	if err != nil {
		f.deps.Logger.Warn("book update failed", zap.String("book_id", book.ID), zap.Error(err))
		f.phase = PhaseEditing
		f.pinLocked(FeedbackError, msgUpdateFailed)
		return err
	}
	if updated.ID != "" {
		f.book = &updated
	}
	f.phase = PhaseSucceeded
	f.pinLocked(FeedbackSuccess, fmt.Sprintf(msgUpdateSucceededFmt, input.Title))
	f.scheduleLocked(f.deps.RedirectDelay, func() {
		f.deps.Navigator.Navigate(RouteMyBooks)
	})
	return nil
}

// Snapshot returns the current renderable state.
func (f *UpdateForm) Snapshot() FormSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	var book *books.Book
	if f.book != nil {
		copied := *f.book
		book = &copied
	}
	return f.snapshotLocked(book)
}
