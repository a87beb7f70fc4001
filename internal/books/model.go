// Package books models catalog records and the pure state transitions the client applies to them.
package books

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxIdentifierLength = 190

// ErrInvalidBookID indicates that a book identifier is empty or exceeds storage bounds.
var ErrInvalidBookID = errors.New("books: invalid book id")

// BookID represents a validated, service-assigned book identifier.
type BookID string

// NewBookID validates raw input and returns a BookID.
func NewBookID(rawInput string) (BookID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBookID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidBookID, maxIdentifierLength)
	}
	if strings.ContainsAny(trimmed, "/?#") {
		return "", fmt.Errorf("%w: contains reserved characters", ErrInvalidBookID)
	}
	return BookID(trimmed), nil
}

// String returns the underlying identifier.
func (id BookID) String() string {
	return string(id)
}

// Book is a catalog entry as served by the catalog service.
type Book struct {
	ID         string    `json:"_id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	Genre      string    `json:"genre"`
	Rating     Rating    `json:"rating"`
	Summary    string    `json:"summary"`
	CoverImage string    `json:"coverImage"`
	OwnerEmail string    `json:"userEmail"`
	OwnerName  string    `json:"userName"`
	Comments   []Comment `json:"comments,omitempty"`
}

// Input is the create/update payload: a Book without its identifier or comments.
// Owner attribution is always re-sent so updates preserve it.
type Input struct {
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Genre      string  `json:"genre"`
	Rating     float64 `json:"rating"`
	Summary    string  `json:"summary"`
	CoverImage string  `json:"coverImage"`
	OwnerEmail string  `json:"userEmail"`
	OwnerName  string  `json:"userName"`
}

// Comment is a reader comment embedded in a Book.
type Comment struct {
	Text         string    `json:"text"`
	AuthorID     string    `json:"userId,omitempty"`
	AuthorName   string    `json:"userName"`
	AuthorEmail  string    `json:"userEmail"`
	AuthorAvatar string    `json:"userAvatar"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CommentInput is the comment payload posted to the catalog service.
type CommentInput struct {
	Text         string `json:"text"`
	AuthorID     string `json:"userId"`
	AuthorName   string `json:"userName"`
	AuthorEmail  string `json:"userEmail"`
	AuthorAvatar string `json:"userAvatar"`
}

// Comment stamps the input with createdAt, producing the locally appended form.
func (in CommentInput) Comment(createdAt time.Time) Comment {
	return Comment{
		Text:         in.Text,
		AuthorID:     in.AuthorID,
		AuthorName:   in.AuthorName,
		AuthorEmail:  in.AuthorEmail,
		AuthorAvatar: in.AuthorAvatar,
		CreatedAt:    createdAt,
	}
}

// Draft returns the editable fields of b.
func (b Book) Draft() Draft {
	return Draft{
		Title:      b.Title,
		Author:     b.Author,
		Genre:      b.Genre,
		Rating:     b.Rating.Float64(),
		Summary:    b.Summary,
		CoverImage: b.CoverImage,
	}
}
