// Package shelf stores catalog records for the development catalog service.
package shelf

import (
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
)

// Book is the persisted catalog record.
type Book struct {
	BookID           string  `gorm:"column:book_id;primaryKey;size:190;not null"`
	Title            string  `gorm:"column:title;size:512;not null"`
	Author           string  `gorm:"column:author;size:512;not null;default:''"`
	Genre            string  `gorm:"column:genre;size:190;not null;default:''"`
	Rating           float64 `gorm:"column:rating;not null;default:0"`
	Summary          string  `gorm:"column:summary;type:text;not null;default:''"`
	CoverImage       string  `gorm:"column:cover_image;size:2048;not null;default:''"`
	OwnerEmail       string  `gorm:"column:user_email;size:320;not null;default:'';index"`
	OwnerName        string  `gorm:"column:user_name;size:320;not null;default:''"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null;index"`
	UpdatedAtSeconds int64   `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Book) TableName() string {
	return "books"
}

// Comment is a persisted reader comment. Comment ids are UUIDv7, so ordering by
// id preserves insertion order within the same second.
type Comment struct {
	CommentID        string `gorm:"column:comment_id;primaryKey;size:190;not null"`
	BookID           string `gorm:"column:book_id;size:190;not null;index:idx_comments_book_time,priority:1"`
	Text             string `gorm:"column:text;type:text;not null"`
	UserID           string `gorm:"column:user_id;size:190;not null;default:''"`
	UserName         string `gorm:"column:user_name;size:320;not null;default:''"`
	UserEmail        string `gorm:"column:user_email;size:320;not null;default:''"`
	UserAvatar       string `gorm:"column:user_avatar;size:2048;not null;default:''"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_comments_book_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "book_comments"
}

func (b Book) toBook(comments []Comment) books.Book {
	out := books.Book{
		ID:         b.BookID,
		Title:      b.Title,
		Author:     b.Author,
		Genre:      b.Genre,
		Rating:     books.Rating(b.Rating),
		Summary:    b.Summary,
		CoverImage: b.CoverImage,
		OwnerEmail: b.OwnerEmail,
		OwnerName:  b.OwnerName,
	}
	if len(comments) > 0 {
		out.Comments = make([]books.Comment, 0, len(comments))
		for _, comment := range comments {
			out.Comments = append(out.Comments, comment.toComment())
		}
	}
	return out
}

func (c Comment) toComment() books.Comment {
	return books.Comment{
		Text:         c.Text,
		AuthorID:     c.UserID,
		AuthorName:   c.UserName,
		AuthorEmail:  c.UserEmail,
		AuthorAvatar: c.UserAvatar,
		CreatedAt:    time.Unix(c.CreatedAtSeconds, 0).UTC(),
	}
}
