package shelf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrBookNotFound indicates that no record carries the requested id.
	ErrBookNotFound = errors.New("shelf: book not found")
	// ErrInvalidBook indicates that a create or update payload is unusable.
	ErrInvalidBook = errors.New("shelf: invalid book")
	// ErrEmptyComment indicates that a comment has no text.
	ErrEmptyComment = errors.New("shelf: comment text required")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError carries an "<operation>.<reason>" code alongside its cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew    = "shelf.service.new"
	opListBooks     = "shelf.list_books"
	opGetBook       = "shelf.get_book"
	opCreateBook    = "shelf.create_book"
	opUpdateBook    = "shelf.update_book"
	opDeleteBook    = "shelf.delete_book"
	opAppendComment = "shelf.append_comment"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// NewUUIDv7 issues time-ordered UUIDv7 identifiers.
func NewUUIDv7() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// ServiceConfig describes the dependencies of a Service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	// NewID issues record identifiers; NewUUIDv7 when nil.
	NewID  func() (string, error)
	Logger *zap.Logger
}

// Service implements the catalog operations over gorm.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	newID  func() (string, error)
	logger *zap.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = NewUUIDv7
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, newID: newID, logger: logger}, nil
}

// List returns every record in creation order, comments included.
func (s *Service) List(ctx context.Context) ([]books.Book, error) {
	var rows []Book
	if err := s.db.WithContext(ctx).Order("created_at_s ASC, book_id ASC").Find(&rows).Error; err != nil {
		s.logError(opListBooks, "query_failed", err)
		return nil, newServiceError(opListBooks, "query_failed", err)
	}
	var comments []Comment
	if err := s.db.WithContext(ctx).Order("created_at_s ASC, comment_id ASC").Find(&comments).Error; err != nil {
		s.logError(opListBooks, "comment_query_failed", err)
		return nil, newServiceError(opListBooks, "comment_query_failed", err)
	}
	byBook := make(map[string][]Comment, len(rows))
	for _, comment := range comments {
		byBook[comment.BookID] = append(byBook[comment.BookID], comment)
	}
	result := make([]books.Book, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toBook(byBook[row.BookID]))
	}
	return result, nil
}

// Get returns a single record with its comments.
func (s *Service) Get(ctx context.Context, bookID string) (books.Book, error) {
	row, err := s.find(ctx, s.db, opGetBook, bookID)
	if err != nil {
		return books.Book{}, err
	}
	comments, err := s.comments(ctx, opGetBook, bookID)
	if err != nil {
		return books.Book{}, err
	}
	return row.toBook(comments), nil
}

// Create stores a new record attributed to the input's owner.
func (s *Service) Create(ctx context.Context, input books.Input) (books.Book, error) {
	if err := validateInput(input); err != nil {
		return books.Book{}, newServiceError(opCreateBook, "invalid_input", err)
	}
	bookID, err := s.newID()
	if err != nil {
		s.logError(opCreateBook, "id_generation_failed", err)
		return books.Book{}, newServiceError(opCreateBook, "id_generation_failed", err)
	}
	now := s.clock().UTC().Unix()
	row := Book{
		BookID:           bookID,
		OwnerEmail:       strings.TrimSpace(input.OwnerEmail),
		OwnerName:        strings.TrimSpace(input.OwnerName),
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	row.apply(input)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logError(opCreateBook, "insert_failed", err, zap.String("book_id", bookID))
		return books.Book{}, newServiceError(opCreateBook, "insert_failed", err)
	}
	return row.toBook(nil), nil
}

// Update replaces the editable fields of a record. Owner attribution never changes.
func (s *Service) Update(ctx context.Context, bookID string, input books.Input) (books.Book, error) {
	if err := validateInput(input); err != nil {
		return books.Book{}, newServiceError(opUpdateBook, "invalid_input", err)
	}
	var updated Book
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.find(ctx, tx, opUpdateBook, bookID)
		if err != nil {
			return err
		}
		row.apply(input)
		row.UpdatedAtSeconds = s.clock().UTC().Unix()
		if err := tx.Save(&row).Error; err != nil {
			s.logError(opUpdateBook, "save_failed", err, zap.String("book_id", bookID))
			return newServiceError(opUpdateBook, "save_failed", err)
		}
		updated = row
		return nil
	})
	if txErr != nil {
		return books.Book{}, txErr
	}
	comments, err := s.comments(ctx, opUpdateBook, bookID)
	if err != nil {
		return books.Book{}, err
	}
	return updated.toBook(comments), nil
}

// Delete removes a record and its comments.
func (s *Service) Delete(ctx context.Context, bookID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("book_id = ?", bookID).Delete(&Book{})
		if result.Error != nil {
			s.logError(opDeleteBook, "delete_failed", result.Error, zap.String("book_id", bookID))
			return newServiceError(opDeleteBook, "delete_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return newServiceError(opDeleteBook, "not_found", ErrBookNotFound)
		}
		if err := tx.Where("book_id = ?", bookID).Delete(&Comment{}).Error; err != nil {
			s.logError(opDeleteBook, "comment_delete_failed", err, zap.String("book_id", bookID))
			return newServiceError(opDeleteBook, "comment_delete_failed", err)
		}
		return nil
	})
}

// AppendComment adds a comment to the end of a record's thread.
func (s *Service) AppendComment(ctx context.Context, bookID string, input books.CommentInput) (books.Comment, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return books.Comment{}, newServiceError(opAppendComment, "empty_text", ErrEmptyComment)
	}
	if _, err := s.find(ctx, s.db, opAppendComment, bookID); err != nil {
		return books.Comment{}, err
	}
	commentID, err := s.newID()
	if err != nil {
		s.logError(opAppendComment, "id_generation_failed", err)
		return books.Comment{}, newServiceError(opAppendComment, "id_generation_failed", err)
	}
	row := Comment{
		CommentID:        commentID,
		BookID:           bookID,
		Text:             text,
		UserID:           strings.TrimSpace(input.AuthorID),
		UserName:         strings.TrimSpace(input.AuthorName),
		UserEmail:        strings.TrimSpace(input.AuthorEmail),
		UserAvatar:       strings.TrimSpace(input.AuthorAvatar),
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logError(opAppendComment, "insert_failed", err, zap.String("book_id", bookID))
		return books.Comment{}, newServiceError(opAppendComment, "insert_failed", err)
	}
	return row.toComment(), nil
}

func (s *Service) find(ctx context.Context, db *gorm.DB, operation, bookID string) (Book, error) {
	var row Book
	err := db.WithContext(ctx).Where("book_id = ?", bookID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Book{}, newServiceError(operation, "not_found", ErrBookNotFound)
	}
	if err != nil {
		s.logError(operation, "select_failed", err, zap.String("book_id", bookID))
		return Book{}, newServiceError(operation, "select_failed", err)
	}
	return row, nil
}

func (s *Service) comments(ctx context.Context, operation, bookID string) ([]Comment, error) {
	var rows []Comment
	if err := s.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("created_at_s ASC, comment_id ASC").
		Find(&rows).Error; err != nil {
		s.logError(operation, "comment_query_failed", err, zap.String("book_id", bookID))
		return nil, newServiceError(operation, "comment_query_failed", err)
	}
	return rows, nil
}

func (b *Book) apply(input books.Input) {
	b.Title = strings.TrimSpace(input.Title)
	b.Author = strings.TrimSpace(input.Author)
	b.Genre = strings.TrimSpace(input.Genre)
	b.Rating = input.Rating
	b.Summary = strings.TrimSpace(input.Summary)
	b.CoverImage = strings.TrimSpace(input.CoverImage)
}

func validateInput(input books.Input) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalidBook)
	}
	if input.Rating < 0 || input.Rating > books.MaxRating {
		return fmt.Errorf("%w: rating %v out of range", ErrInvalidBook, input.Rating)
	}
	return nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("shelf service error", attrs...)
}
