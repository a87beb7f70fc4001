package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/apperr"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
)

type recordedRequest struct {
	method        string
	path          string
	authorization string
	body          string
}

func newTestClient(t *testing.T, status int, response string, recorded *recordedRequest) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		if recorded != nil {
			*recorded = recordedRequest{
				method:        r.Method,
				path:          r.URL.EscapedPath(),
				authorization: r.Header.Get("Authorization"),
				body:          string(payload),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(server.Close)
	client, err := NewClient(Config{BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client
}

func TestListBooks(t *testing.T) {
	var recorded recordedRequest
	client := newTestClient(t, http.StatusOK, `[{"_id":"a","title":"Dune","rating":"4.5","userEmail":"x@y.com"},{"_id":"b","rating":3}]`, &recorded)

	list, err := client.ListBooks(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if recorded.method != http.MethodGet || recorded.path != "/books" {
		t.Fatalf("unexpected request %#v", recorded)
	}
	if recorded.authorization != "" {
		t.Fatalf("list must not send credentials")
	}
	if len(list) != 2 || list[0].Rating != 4.5 || list[0].OwnerEmail != "x@y.com" {
		t.Fatalf("unexpected list %#v", list)
	}
}

func TestGetBookMissingRecordIsNotFound(t *testing.T) {
	client := newTestClient(t, http.StatusOK, `null`, nil)
	_, err := client.GetBook(context.Background(), "missing")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddBookSendsNumericRatingAndToken(t *testing.T) {
	var recorded recordedRequest
	client := newTestClient(t, http.StatusCreated, `{"_id":"new","title":"Dune","rating":3}`, &recorded)

	draft := books.Draft{Title: "Dune", Author: "Herbert", Genre: "Sci-Fi", Rating: 3, Summary: "s", CoverImage: "c"}
	created, err := client.AddBook(context.Background(), "token-1", draft.Input("x@y.com", "X"))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if created.ID != "new" {
		t.Fatalf("unexpected created record %#v", created)
	}
	if recorded.method != http.MethodPost || recorded.path != "/add-book" || recorded.authorization != "Bearer token-1" {
		t.Fatalf("unexpected request %#v", recorded)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(recorded.body), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := payload["rating"].(float64); !ok {
		t.Fatalf("expected numeric rating, got %T", payload["rating"])
	}
}

func TestUpdateAndDeletePaths(t *testing.T) {
	var recorded recordedRequest
	client := newTestClient(t, http.StatusOK, `{"_id":"b 1"}`, &recorded)

	if _, err := client.UpdateBook(context.Background(), "", "b 1", books.Input{Title: "t"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if recorded.method != http.MethodPut || recorded.path != "/update-book/b%201" {
		t.Fatalf("unexpected update request %#v", recorded)
	}
	if err := client.DeleteBook(context.Background(), "", "b 1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if recorded.method != http.MethodDelete || recorded.path != "/delete-book/b%201" {
		t.Fatalf("unexpected delete request %#v", recorded)
	}
}

func TestPostComment(t *testing.T) {
	var recorded recordedRequest
	client := newTestClient(t, http.StatusOK, `{"success":true}`, &recorded)

	ok, err := client.PostComment(context.Background(), "token-1", "a", books.CommentInput{Text: "Great", AuthorID: "u1", AuthorEmail: "x@y.com"})
	if err != nil || !ok {
		t.Fatalf("unexpected result ok=%v err=%v", ok, err)
	}
	if recorded.path != "/book/a/comments" || recorded.authorization != "Bearer token-1" {
		t.Fatalf("unexpected request %#v", recorded)
	}
	if !strings.Contains(recorded.body, `"userId":"u1"`) || strings.Contains(recorded.body, "createdAt") {
		t.Fatalf("unexpected comment body %s", recorded.body)
	}
}

func TestStatusClassification(t *testing.T) {
	testCases := []struct {
		status   int
		wantKind apperr.Kind
		wantCode apperr.Code
	}{
		{status: http.StatusNotFound, wantKind: apperr.KindNotFound},
		{status: http.StatusUnauthorized, wantKind: apperr.KindAuth, wantCode: apperr.CodeUnauthenticated},
		{status: http.StatusForbidden, wantKind: apperr.KindAuth, wantCode: apperr.CodeUnauthorized},
		{status: http.StatusBadRequest, wantKind: apperr.KindNetwork, wantCode: apperr.CodeNetworkOrUnknown},
		{status: http.StatusInternalServerError, wantKind: apperr.KindNetwork, wantCode: apperr.CodeNetworkOrUnknown},
	}
	for _, testCase := range testCases {
		t.Run(http.StatusText(testCase.status), func(t *testing.T) {
			client := newTestClient(t, testCase.status, `{"error":"rejected","code":"book.rejected"}`, nil)
			err := client.DeleteBook(context.Background(), "", "a")
			if apperr.KindOf(err) != testCase.wantKind || apperr.CodeOf(err) != testCase.wantCode {
				t.Fatalf("unexpected classification %v", err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Message != "rejected" || apiErr.Code != "book.rejected" {
				t.Fatalf("expected wrapped APIError, got %#v", apiErr)
			}
		})
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client, err := NewClient(Config{BaseURL: baseURL})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	if _, err := client.ListBooks(context.Background()); !apperr.IsKind(err, apperr.KindNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestUnencodablePayloadIsClassifiedBeforeSending(t *testing.T) {
	var recorded recordedRequest
	client := newTestClient(t, http.StatusCreated, `{}`, &recorded)

	_, err := client.AddBook(context.Background(), "", books.Input{Title: "Dune", Rating: math.NaN()})
	if !apperr.IsKind(err, apperr.KindNetwork) {
		t.Fatalf("expected classified error, got %v", err)
	}
	if recorded.method != "" {
		t.Fatalf("nothing should be sent, got %s %s", recorded.method, recorded.path)
	}
}
