package views

import (
	"context"
	"strings"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/gate"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/session"
	"go.uber.org/zap"
)

const (
	msgCommentEmpty       = "Comment cannot be empty!"
	msgCommentSignedOut   = "You must be logged in to comment."
	msgCommentIncomplete  = "User information is incomplete. Please re-login."
	msgCommentPosted      = "Comment posted successfully!"
	msgCommentRejected    = "Failed to post comment."
	msgCommentReauthorize = "Authentication failed. Please log in again."
	msgCommentFailed      = "An error occurred while submitting the comment."
)

// DetailSnapshot is the renderable state of a DetailView.
type DetailSnapshot struct {
	Loading      bool
	NotFound     bool
	Book         *books.Book
	CanEdit      bool
	SignedIn     bool
	CommentDraft string
	Posting      bool
	Feedback     *Feedback
}

// DetailView shows one book with its comments and accepts new comments.
type DetailView struct {
	base
	loading  bool
	notFound bool
	book     *books.Book
	draft    string
	posting  bool
}

// NewDetailView constructs a DetailView.
func NewDetailView(deps Deps) *DetailView {
	return &DetailView{base: newBase(deps), loading: true}
}

// Load fetches the book. A newer Load or Close discards this one's response.
func (v *DetailView) Load(ctx context.Context, id books.BookID) error {
	v.mu.Lock()
	generation := v.nextGenerationLocked()
	v.loading = true
	v.mu.Unlock()

	book, err := v.deps.Catalog.GetBook(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.currentLocked(generation) {
		return nil
	}
	v.loading = false
	if err != nil {
		v.book = nil
		v.notFound = true
		if !apperr.IsKind(err, apperr.KindNotFound) {
			v.deps.Logger.Warn("book load failed", zap.String("book_id", id.String()), zap.Error(err))
		}
		return err
	}
	v.notFound = false
	v.book = &book
	return nil
}

// SetCommentDraft replaces the comment input.
func (v *DetailView) SetCommentDraft(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draft = text
}

// CanEdit reports whether the current principal owns the loaded book.
func (v *DetailView) CanEdit() bool {
	principal := v.principal()
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.book != nil && gate.CanMutate(principal, *v.book)
}

// SubmitComment posts the draft. Preconditions are checked in order: non-empty
// text, a signed-in principal, a principal with both id and email. On
// acknowledgment the comment is appended locally and the draft cleared.
func (v *DetailView) SubmitComment(ctx context.Context) error {
	principal, err := v.settledPrincipal(ctx)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if v.book == nil {
		v.mu.Unlock()
		return apperr.NotFound(errNotLoaded)
	}
	if v.posting {
		v.mu.Unlock()
		return ErrInFlight
	}
	text := strings.TrimSpace(v.draft)
	if text == "" {
		v.showLocked(FeedbackError, msgCommentEmpty)
		v.mu.Unlock()
		return apperr.Validation(msgCommentEmpty)
	}
	if principal == nil {
		v.showLocked(FeedbackError, msgCommentSignedOut)
		v.mu.Unlock()
		return apperr.Auth(apperr.CodeUnauthenticated, errSignedOut)
	}
	if principal.ID == "" || principal.Email == "" {
		v.showLocked(FeedbackError, msgCommentIncomplete)
		v.mu.Unlock()
		return &apperr.Error{Kind: apperr.KindValidation, Message: msgCommentIncomplete, Err: errIncompleteID}
	}
	bookID := v.book.ID
	v.posting = true
	v.mu.Unlock()

	input := books.CommentInput{
		Text:         text,
		AuthorID:     principal.ID,
		AuthorName:   principal.DisplayName,
		AuthorEmail:  principal.Email,
		AuthorAvatar: principal.AvatarURL,
	}
	acknowledged, err := v.postComment(ctx, principal, bookID, input)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.posting = false
	if !v.aliveLocked() {
		return err
	}
	if err != nil {
		v.deps.Logger.Warn("comment submission failed", zap.String("book_id", bookID), zap.Error(err))
		if apperr.CodeOf(err) == apperr.CodeUnauthenticated {
			v.showLocked(FeedbackError, msgCommentReauthorize)
		} else {
			v.showLocked(FeedbackError, msgCommentFailed)
		}
		return err
	}
	if !acknowledged {
		v.showLocked(FeedbackError, msgCommentRejected)
		return apperr.Network(errNotAcknowledged)
	}
	if v.book != nil && v.book.ID == bookID {
		updated := books.AppendComment(*v.book, input.Comment(v.deps.Clock()))
		v.book = &updated
	}
	v.draft = ""
	v.showLocked(FeedbackSuccess, msgCommentPosted)
	return nil
}

func (v *DetailView) postComment(ctx context.Context, principal *session.Principal, bookID string, input books.CommentInput) (bool, error) {
	token, err := principal.Token(ctx)
	if err != nil {
		return false, err
	}
	return v.deps.Catalog.PostComment(ctx, token, books.BookID(bookID), input)
}

// Snapshot returns the current renderable state.
func (v *DetailView) Snapshot() DetailSnapshot {
	principal := v.principal()
	v.mu.Lock()
	defer v.mu.Unlock()
	snapshot := DetailSnapshot{
		Loading:      v.loading,
		NotFound:     v.notFound,
		SignedIn:     principal != nil,
		CommentDraft: v.draft,
		Posting:      v.posting,
		Feedback:     v.feedbackLocked(),
	}
	if v.book != nil {
		copied := *v.book
		copied.Comments = append([]books.Comment(nil), v.book.Comments...)
		snapshot.Book = &copied
		snapshot.CanEdit = gate.CanMutate(principal, copied)
	}
	return snapshot
}
