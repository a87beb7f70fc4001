package shelf

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type sequentialIDs struct {
	ids   []string
	index int
}

func (g *sequentialIDs) next() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

type steppingClock struct {
	now time.Time
}

func (c *steppingClock) tick() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(t *testing.T, ids ...string) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:shelf_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Book{}, &Comment{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := &steppingClock{now: time.Unix(1700000000, 0).UTC()}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    clock.tick,
		NewID:    (&sequentialIDs{ids: ids}).next,
	})
	if err != nil {
		t.Fatalf("failed to construct shelf service: %v", err)
	}
	return service, db
}

func duneInput(owner string) books.Input {
	return books.Input{
		Title:      " Dune ",
		Author:     "Frank Herbert",
		Genre:      "Sci-Fi",
		Rating:     4.5,
		Summary:    "Spice.",
		CoverImage: "https://example.com/dune.jpg",
		OwnerEmail: owner,
		OwnerName:  "Owner",
	}
}

func TestServiceCreateAndList(t *testing.T) {
	service, _ := newTestService(t, "book-1", "book-2")
	ctx := context.Background()

	created, err := service.Create(ctx, duneInput("x@y.com"))
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if created.ID != "book-1" || created.Title != "Dune" || created.OwnerEmail != "x@y.com" {
		t.Fatalf("unexpected created record %#v", created)
	}
	second := duneInput("z@y.com")
	second.Title = "Emma"
	if _, err := service.Create(ctx, second); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	list, err := service.List(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(list) != 2 || list[0].ID != "book-1" || list[1].ID != "book-2" {
		t.Fatalf("expected creation order, got %#v", list)
	}
	if list[0].Rating != 4.5 {
		t.Fatalf("unexpected rating %v", list[0].Rating)
	}
}

func TestServiceCreateRejectsInvalidInput(t *testing.T) {
	service, _ := newTestService(t, "book-1")
	input := duneInput("x@y.com")
	input.Title = "  "

	_, err := service.Create(context.Background(), input)
	if !errors.Is(err, ErrInvalidBook) {
		t.Fatalf("expected invalid book error, got %v", err)
	}
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "shelf.create_book.invalid_input" {
		t.Fatalf("unexpected service error %v", err)
	}
}

func TestServiceUpdateKeepsOwner(t *testing.T) {
	service, _ := newTestService(t, "book-1")
	ctx := context.Background()
	if _, err := service.Create(ctx, duneInput("x@y.com")); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	input := duneInput("intruder@y.com")
	input.Title = "Dune Messiah"
	input.OwnerName = "Intruder"
	updated, err := service.Update(ctx, "book-1", input)
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Title != "Dune Messiah" {
		t.Fatalf("expected title update, got %q", updated.Title)
	}
	if updated.OwnerEmail != "x@y.com" || updated.OwnerName != "Owner" {
		t.Fatalf("owner must not change, got %q %q", updated.OwnerEmail, updated.OwnerName)
	}
}

func TestServiceGetMissingBook(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Get(context.Background(), "nope")
	if !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := service.Update(context.Background(), "nope", duneInput("x@y.com")); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
	if err := service.Delete(context.Background(), "nope"); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestServiceCommentsAppendInOrder(t *testing.T) {
	service, _ := newTestService(t, "book-1", "c-1", "c-2")
	ctx := context.Background()
	if _, err := service.Create(ctx, duneInput("x@y.com")); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	for _, text := range []string{"first", " second "} {
		if _, err := service.AppendComment(ctx, "book-1", books.CommentInput{Text: text, AuthorID: "u1", AuthorEmail: "u@y.com"}); err != nil {
			t.Fatalf("unexpected comment error: %v", err)
		}
	}
	if _, err := service.AppendComment(ctx, "book-1", books.CommentInput{Text: "   "}); !errors.Is(err, ErrEmptyComment) {
		t.Fatalf("expected empty comment error, got %v", err)
	}
	if _, err := service.AppendComment(ctx, "missing", books.CommentInput{Text: "hi"}); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	book, err := service.Get(ctx, "book-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if len(book.Comments) != 2 || book.Comments[0].Text != "first" || book.Comments[1].Text != "second" {
		t.Fatalf("unexpected comments %#v", book.Comments)
	}
	if book.Comments[0].CreatedAt.IsZero() {
		t.Fatalf("expected comment timestamp")
	}
}

func TestServiceDeleteRemovesComments(t *testing.T) {
	service, db := newTestService(t, "book-1", "c-1")
	ctx := context.Background()
	if _, err := service.Create(ctx, duneInput("x@y.com")); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if _, err := service.AppendComment(ctx, "book-1", books.CommentInput{Text: "hi"}); err != nil {
		t.Fatalf("unexpected comment error: %v", err)
	}

	if err := service.Delete(ctx, "book-1"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	var remaining int64
	if err := db.Model(&Comment{}).Where("book_id = ?", "book-1").Count(&remaining).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected comments to be removed, got %d", remaining)
	}
}

func TestServiceLogsStorageFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	service, db := newTestService(t)
	service.logger = zap.New(core)
	if err := db.Migrator().DropTable(&Book{}); err != nil {
		t.Fatalf("drop failed: %v", err)
	}

	if _, err := service.List(context.Background()); err == nil {
		t.Fatalf("expected list error")
	}
	entries := logs.FilterMessage("shelf service error").All()
	if len(entries) != 1 {
		t.Fatalf("expected one error log, got %d", len(entries))
	}
	if entries[0].ContextMap()["operation"] != opListBooks {
		t.Fatalf("unexpected log fields %#v", entries[0].ContextMap())
	}
}
