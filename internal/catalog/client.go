// Package catalog calls the remote catalog service over HTTP.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

var (
	errMissingBaseURL = errors.New("catalog: base url required")
	errEmptyRecord    = errors.New("catalog: service returned no record")
)

// APIError represents a catalog service error response.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog service returned %d: %s", e.Status, e.Message)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Client calls the catalog service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a catalog service client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

// ListBooks returns the whole catalog in service order.
func (c *Client) ListBooks(ctx context.Context) ([]books.Book, error) {
	var list []books.Book
	if err := c.send(ctx, http.MethodGet, "/books", "", nil, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []books.Book{}
	}
	return list, nil
}

// GetBook returns a single record including its comments.
func (c *Client) GetBook(ctx context.Context, id books.BookID) (books.Book, error) {
	var book books.Book
	if err := c.send(ctx, http.MethodGet, "/book/"+url.PathEscape(id.String()), "", nil, &book); err != nil {
		return books.Book{}, err
	}
	if book.ID == "" {
		return books.Book{}, apperr.NotFound(errEmptyRecord)
	}
	return book, nil
}

// AddBook creates a record. token may be empty.
func (c *Client) AddBook(ctx context.Context, token string, input books.Input) (books.Book, error) {
	var created books.Book
	if err := c.send(ctx, http.MethodPost, "/add-book", token, input, &created); err != nil {
		return books.Book{}, err
	}
	return created, nil
}

// UpdateBook replaces the editable fields of a record. token may be empty.
func (c *Client) UpdateBook(ctx context.Context, token string, id books.BookID, input books.Input) (books.Book, error) {
	var updated books.Book
	if err := c.send(ctx, http.MethodPut, "/update-book/"+url.PathEscape(id.String()), token, input, &updated); err != nil {
		return books.Book{}, err
	}
	return updated, nil
}

// DeleteBook removes a record. token may be empty.
func (c *Client) DeleteBook(ctx context.Context, token string, id books.BookID) error {
	return c.send(ctx, http.MethodDelete, "/delete-book/"+url.PathEscape(id.String()), token, nil, nil)
}

type commentAck struct {
	Success bool `json:"success"`
}

// PostComment appends a comment and reports the service acknowledgment.
func (c *Client) PostComment(ctx context.Context, token string, id books.BookID, comment books.CommentInput) (bool, error) {
	var ack commentAck
	path := "/book/" + url.PathEscape(id.String()) + "/comments"
	if err := c.send(ctx, http.MethodPost, path, token, comment, &ack); err != nil {
		return false, err
	}
	return ack.Success, nil
}

func (c *Client) send(ctx context.Context, method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return apperr.Network(fmt.Errorf("catalog: encode %s request: %w", path, err))
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperr.Network(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	addAuthHeader(req, token)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("catalog request failed", zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
		return apperr.Network(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := firstNonEmpty(errResp.Error, errResp.Message, resp.Status)
		return classify(&APIError{Status: resp.StatusCode, Message: msg, Code: strings.TrimSpace(errResp.Code)})
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Network(fmt.Errorf("catalog: decode %s %s: %w", req.Method, req.URL.Path, err))
	}
	return nil
}

// classify maps a non-2xx response onto the client error taxonomy.
func classify(apiErr *APIError) error {
	switch {
	case apiErr.Status == http.StatusNotFound:
		return apperr.NotFound(apiErr)
	case apiErr.Status == http.StatusUnauthorized:
		return apperr.Auth(apperr.CodeUnauthenticated, apiErr)
	case apiErr.Status == http.StatusForbidden:
		return apperr.Auth(apperr.CodeUnauthorized, apiErr)
	default:
		return apperr.Network(apiErr)
	}
}

func addAuthHeader(req *http.Request, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
