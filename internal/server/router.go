// Package server exposes the development catalog and identity services over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/accounts"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/auth"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/shelf"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const claimsContextKey = "bookhaven_claims"

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingShelfService  = errors.New("shelf service dependency required")
	errMissingAccounts      = errors.New("accounts service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// GoogleVerifier verifies Google ID tokens presented to the identity endpoints.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

// TokenManager issues and validates the ID tokens handed to clients.
type TokenManager interface {
	IssueIDToken(ctx context.Context, profile auth.Profile) (string, int64, error)
	ValidateToken(token string) (auth.IDTokenClaims, error)
}

// Dependencies wires the HTTP handler. GoogleVerifier may be nil, which
// disables federated sign-in. Registry defaults to a fresh prometheus registry.
type Dependencies struct {
	GoogleVerifier GoogleVerifier
	TokenManager   TokenManager
	ShelfService   *shelf.Service
	Accounts       *accounts.Service
	Registry       *prometheus.Registry
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router serving the catalog routes, the
// identity protocol under /identity/v1, and /metrics.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.ShelfService == nil {
		return nil, errMissingShelfService
	}
	if deps.Accounts == nil {
		return nil, errMissingAccounts
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics, err := newHTTPMetrics(registry)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(metrics.middleware())

	handler := &httpHandler{
		verifier: deps.GoogleVerifier,
		tokens:   deps.TokenManager,
		shelf:    deps.ShelfService,
		accounts: deps.Accounts,
		logger:   logger,
	}

	router.GET("/metrics", metricsHandler(registry))

	router.GET("/books", handler.handleListBooks)
	router.GET("/book/:id", handler.handleGetBook)

	optional := router.Group("/")
	optional.Use(handler.identifyRequest)
	optional.POST("/add-book", handler.handleAddBook)
	optional.PUT("/update-book/:id", handler.handleUpdateBook)
	optional.DELETE("/delete-book/:id", handler.handleDeleteBook)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/book/:id/comments", handler.handlePostComment)

	router.POST("/identity/v1/:action", handler.handleIdentity)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
		MaxAge:          12 * time.Hour,
	})
}

type httpHandler struct {
	verifier GoogleVerifier
	tokens   TokenManager
	shelf    *shelf.Service
	accounts *accounts.Service
	logger   *zap.Logger
}

type commentAckPayload struct {
	Success bool `json:"success"`
}

func (h *httpHandler) handleListBooks(c *gin.Context) {
	list, err := h.shelf.List(c.Request.Context())
	if err != nil {
		h.writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *httpHandler) handleGetBook(c *gin.Context) {
	book, err := h.shelf.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *httpHandler) handleAddBook(c *gin.Context) {
	var input books.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "code": "book.invalid_request"})
		return
	}
	if claims, ok := claimsFrom(c); ok {
		if strings.TrimSpace(input.OwnerEmail) == "" {
			input.OwnerEmail = claims.Email
			input.OwnerName = claims.Name
		}
		if input.OwnerEmail != claims.Email {
			c.JSON(http.StatusForbidden, gin.H{"error": "books can only be added for the signed-in user", "code": "book.forbidden"})
			return
		}
	}
	created, err := h.shelf.Create(c.Request.Context(), input)
	if err != nil {
		h.writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleUpdateBook(c *gin.Context) {
	var input books.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "code": "book.invalid_request"})
		return
	}
	bookID := c.Param("id")
	if !h.ownerMatches(c, bookID) {
		return
	}
	updated, err := h.shelf.Update(c.Request.Context(), bookID, input)
	if err != nil {
		h.writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleDeleteBook(c *gin.Context) {
	bookID := c.Param("id")
	if !h.ownerMatches(c, bookID) {
		return
	}
	if err := h.shelf.Delete(c.Request.Context(), bookID); err != nil {
		h.writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *httpHandler) handlePostComment(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "auth.unauthorized"})
		return
	}
	var input books.CommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "code": "comment.invalid_request"})
		return
	}
	input.AuthorID = claims.UserID
	input.AuthorEmail = claims.Email
	if strings.TrimSpace(input.AuthorName) == "" {
		input.AuthorName = claims.Name
	}
	if strings.TrimSpace(input.AuthorAvatar) == "" {
		input.AuthorAvatar = claims.Picture
	}
	if _, err := h.shelf.AppendComment(c.Request.Context(), c.Param("id"), input); err != nil {
		h.writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusCreated, commentAckPayload{Success: true})
}

// ownerMatches enforces ownership when the request carries a bearer token and
// writes the error response when it does not hold.
func (h *httpHandler) ownerMatches(c *gin.Context, bookID string) bool {
	claims, ok := claimsFrom(c)
	if !ok {
		return true
	}
	existing, err := h.shelf.Get(c.Request.Context(), bookID)
	if err != nil {
		h.writeCatalogError(c, err)
		return false
	}
	if claims.Email == "" || existing.OwnerEmail != claims.Email {
		h.logger.Info("ownership check failed", zap.String("book_id", bookID), zap.String("user_id", claims.UserID))
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may modify this book", "code": "book.forbidden"})
		return false
	}
	return true
}

func (h *httpHandler) writeCatalogError(c *gin.Context, err error) {
	code := "internal"
	var serviceErr *shelf.ServiceError
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}
	switch {
	case errors.Is(err, shelf.ErrBookNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found", "code": code})
	case errors.Is(err, shelf.ErrInvalidBook), errors.Is(err, shelf.ErrEmptyComment):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": code})
	default:
		h.logger.Error("catalog request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": code})
	}
}

// authorizeRequest requires a valid bearer token.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if strings.TrimSpace(header) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error(), "code": "auth.missing_token"})
		return
	}
	h.validateBearer(c, header)
}

// identifyRequest attaches the caller's claims when a bearer token is present.
// A present but invalid token is still rejected.
func (h *httpHandler) identifyRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if strings.TrimSpace(header) == "" {
		c.Next()
		return
	}
	h.validateBearer(c, header)
}

func (h *httpHandler) validateBearer(c *gin.Context, header string) {
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error(), "code": "auth.invalid_header"})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error(), "code": "auth.invalid_header"})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "auth.invalid_token"})
		return
	}
	c.Set(claimsContextKey, claims)
	c.Next()
}

func claimsFrom(c *gin.Context) (auth.IDTokenClaims, bool) {
	value, ok := c.Get(claimsContextKey)
	if !ok {
		return auth.IDTokenClaims{}, false
	}
	claims, ok := value.(auth.IDTokenClaims)
	return claims, ok
}
