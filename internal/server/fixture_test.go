package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/accounts"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/auth"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/shelf"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type stubGoogleVerifier struct {
	claims auth.GoogleClaims
	err    error
}

func (s stubGoogleVerifier) Verify(context.Context, string) (auth.GoogleClaims, error) {
	return s.claims, s.err
}

type routerFixture struct {
	handler  http.Handler
	issuer   *auth.TokenIssuer
	shelf    *shelf.Service
	accounts *accounts.Service
}

func newRouterFixture(t *testing.T, verifier GoogleVerifier, logger *zap.Logger) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&shelf.Book{}, &shelf.Comment{}, &accounts.Account{}, &accounts.Identity{}, &accounts.RefreshToken{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	shelfService, err := shelf.NewService(shelf.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create shelf service: %v", err)
	}
	accountService, err := accounts.NewService(accounts.ServiceConfig{Database: db, PasswordCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("failed to create accounts service: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "bookhaven-identity",
		TokenTTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("failed to create token issuer: %v", err)
	}

	deps := Dependencies{
		TokenManager: issuer,
		ShelfService: shelfService,
		Accounts:     accountService,
		Logger:       logger,
	}
	if verifier != nil {
		deps.GoogleVerifier = verifier
	}
	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return &routerFixture{handler: handler, issuer: issuer, shelf: shelfService, accounts: accountService}
}

func (f *routerFixture) token(t *testing.T, userID, email, name string) string {
	t.Helper()
	token, _, err := f.issuer.IssueIDToken(context.Background(), auth.Profile{UserID: userID, Email: email, Name: name})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func (f *routerFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}
