package integration_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/accounts"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/auth"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/catalog"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/database"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/identity"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/server"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/session"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/shelf"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/views"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	integrationSecret = "integration-secret"
	integrationIssuer = "bookhaven-identity"
)

type serviceStack struct {
	baseURL string
	issuer  *auth.TokenIssuer
	dir     string
}

func newStack(testContext *testing.T, tokenTTL time.Duration) *serviceStack {
	testContext.Helper()
	gin.SetMode(gin.TestMode)

	dir := testContext.TempDir()
	db, err := database.OpenSQLite(filepath.Join(dir, "bookhaven.db"), zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		testContext.Fatalf("failed to access sql db: %v", err)
	}
	testContext.Cleanup(func() { sqlDB.Close() })

	shelfService, err := shelf.NewService(shelf.ServiceConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		testContext.Fatalf("failed to build shelf service: %v", err)
	}
	accountService, err := accounts.NewService(accounts.ServiceConfig{Database: db, PasswordCost: bcrypt.MinCost})
	if err != nil {
		testContext.Fatalf("failed to build accounts service: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(integrationSecret),
		Issuer:        integrationIssuer,
		TokenTTL:      tokenTTL,
	})
	if err != nil {
		testContext.Fatalf("failed to build token issuer: %v", err)
	}
	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager: issuer,
		ShelfService: shelfService,
		Accounts:     accountService,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}
	testServer := httptest.NewServer(handler)
	testContext.Cleanup(testServer.Close)

	return &serviceStack{baseURL: testServer.URL, issuer: issuer, dir: dir}
}

type client struct {
	session   *session.Context
	deps      views.Deps
	scheduler *views.ManualScheduler
	routes    []string
}

func (s *serviceStack) newClient(testContext *testing.T, storeName string) *client {
	testContext.Helper()
	provider, err := identity.NewHTTPProvider(identity.HTTPProviderConfig{BaseURL: s.baseURL + "/identity"})
	if err != nil {
		testContext.Fatalf("failed to build identity provider: %v", err)
	}
	store, err := identity.OpenCredentialStore(filepath.Join(s.dir, storeName))
	if err != nil {
		testContext.Fatalf("failed to open credential store: %v", err)
	}
	testContext.Cleanup(func() { store.Close() })
	sessionContext, err := session.New(session.Config{Provider: provider, Store: store})
	if err != nil {
		testContext.Fatalf("failed to build session: %v", err)
	}
	if err := sessionContext.Start(context.Background()); err != nil {
		testContext.Fatalf("failed to start session: %v", err)
	}
	catalogClient, err := catalog.NewClient(catalog.Config{BaseURL: s.baseURL})
	if err != nil {
		testContext.Fatalf("failed to build catalog client: %v", err)
	}

	c := &client{session: sessionContext, scheduler: &views.ManualScheduler{}}
	c.deps = views.Deps{
		Catalog:   catalogClient,
		Session:   sessionContext,
		Auth:      sessionContext,
		Navigator: views.NavigatorFunc(func(route string) { c.routes = append(c.routes, route) }),
		Confirmer: views.ConfirmerFunc(func(context.Context, string) bool { return true }),
		Scheduler: c.scheduler,
	}
	return c
}

func (c *client) addBook(testContext *testing.T, title string, rating float64) {
	testContext.Helper()
	form := views.NewAddForm(c.deps)
	if err := form.Edit(func(draft *books.Draft) {
		draft.Title = title
		draft.Author = "Frank Herbert"
		draft.Genre = "Sci-Fi"
		draft.Rating = rating
		draft.Summary = "Spice."
		draft.CoverImage = "https://example.com/cover.jpg"
	}); err != nil {
		testContext.Fatalf("failed to edit draft: %v", err)
	}
	if err := form.Submit(context.Background()); err != nil {
		testContext.Fatalf("failed to add %q: %v", title, err)
	}
}

func TestRegisterPublishCommentAndDelete(testContext *testing.T) {
	ctx := context.Background()
	stack := newStack(testContext, time.Hour)

	owner := stack.newClient(testContext, "owner.db")
	if _, err := owner.session.SignUp(ctx, "ann@example.com", "secret1", "Ann", ""); err != nil {
		testContext.Fatalf("sign up failed: %v", err)
	}
	owner.addBook(testContext, "Dune", 5)
	owner.addBook(testContext, "Children of Dune", 3)
	owner.scheduler.Flush()
	if len(owner.routes) == 0 || owner.routes[len(owner.routes)-1] != views.RouteAllBooks {
		testContext.Fatalf("expected redirect to all books, got %v", owner.routes)
	}

	list := views.NewListView(owner.deps)
	if err := list.Load(ctx); err != nil {
		testContext.Fatalf("list load failed: %v", err)
	}
	list.Sort(books.SortHigh)
	cards := list.Snapshot().Cards
	if len(cards) != 2 || cards[0].Book.Title != "Dune" || !cards[0].IsOwner {
		testContext.Fatalf("unexpected sorted cards %#v", cards)
	}
	if cards[0].Book.OwnerName != "Ann" {
		testContext.Fatalf("expected owner name from profile, got %q", cards[0].Book.OwnerName)
	}
	duneID := cards[0].Book.ID

	reader := stack.newClient(testContext, "reader.db")
	if _, err := reader.session.SignUp(ctx, "bob@example.com", "secret1", "Bob", "https://example.com/bob.png"); err != nil {
		testContext.Fatalf("reader sign up failed: %v", err)
	}
	detail := views.NewDetailView(reader.deps)
	if err := detail.Load(ctx, books.BookID(duneID)); err != nil {
		testContext.Fatalf("detail load failed: %v", err)
	}
	if detail.Snapshot().CanEdit {
		testContext.Fatalf("expected reader not to be able to edit")
	}
	detail.SetCommentDraft("Loved it")
	if err := detail.SubmitComment(ctx); err != nil {
		testContext.Fatalf("comment failed: %v", err)
	}

	ownerDetail := views.NewDetailView(owner.deps)
	if err := ownerDetail.Load(ctx, books.BookID(duneID)); err != nil {
		testContext.Fatalf("owner detail load failed: %v", err)
	}
	snapshot := ownerDetail.Snapshot()
	if !snapshot.CanEdit || snapshot.Book == nil || len(snapshot.Book.Comments) != 1 {
		testContext.Fatalf("unexpected owner detail %#v", snapshot)
	}
	comment := snapshot.Book.Comments[0]
	if comment.AuthorName != "Bob" || comment.AuthorEmail != "bob@example.com" || comment.AuthorAvatar != "https://example.com/bob.png" {
		testContext.Fatalf("unexpected comment attribution %#v", comment)
	}

	readerList := views.NewListView(reader.deps)
	if err := readerList.Load(ctx); err != nil {
		testContext.Fatalf("reader list load failed: %v", err)
	}
	if _, err := readerList.Delete(ctx, duneID); !apperr.IsKind(err, apperr.KindAuth) {
		testContext.Fatalf("expected reader delete to be refused, got %v", err)
	}

	mine := views.NewMyBooksView(owner.deps)
	if err := mine.Load(ctx); err != nil {
		testContext.Fatalf("my books load failed: %v", err)
	}
	if err := mine.RequestDelete(duneID); err != nil {
		testContext.Fatalf("request delete failed: %v", err)
	}
	deleted, err := mine.ConfirmDelete(ctx)
	if err != nil || !deleted {
		testContext.Fatalf("expected owner delete, got %v %v", deleted, err)
	}
	if cards := mine.Snapshot().Cards; len(cards) != 1 || cards[0].Book.Title != "Children of Dune" {
		testContext.Fatalf("unexpected remaining books %#v", cards)
	}
}

func TestSessionRestoresAndRefreshesShortLivedTokens(testContext *testing.T) {
	ctx := context.Background()
	stack := newStack(testContext, 30*time.Second)

	first := stack.newClient(testContext, "session.db")
	principal, err := first.session.SignIn(ctx, "nobody@example.com", "secret1")
	if err == nil || principal != nil {
		testContext.Fatalf("expected sign in for unknown account to fail")
	}
	if apperr.CodeOf(err) != apperr.CodeUserNotFound {
		testContext.Fatalf("unexpected error code %q", apperr.CodeOf(err))
	}

	if _, err := first.session.SignUp(ctx, "ann@example.com", "secret1", "Ann", ""); err != nil {
		testContext.Fatalf("sign up failed: %v", err)
	}

	restored := stack.newClient(testContext, "session.db")
	state := restored.session.Current()
	if !state.SignedIn() || state.Principal.Email != "ann@example.com" || state.Principal.DisplayName != "Ann" {
		testContext.Fatalf("expected restored principal, got %#v", state)
	}

	token, err := state.Principal.Token(ctx)
	if err != nil {
		testContext.Fatalf("token refresh failed: %v", err)
	}
	claims, err := stack.issuer.ValidateToken(token)
	if err != nil || claims.Email != "ann@example.com" {
		testContext.Fatalf("refreshed token invalid: %#v %v", claims, err)
	}

	restored.addBook(testContext, "Dune", 4)

	if err := restored.session.SignOut(ctx); err != nil {
		testContext.Fatalf("sign out failed: %v", err)
	}
	again := stack.newClient(testContext, "session.db")
	if again.session.Current().SignedIn() {
		testContext.Fatalf("expected signed out session after restart")
	}
}
