package views

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/identity"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/session"
)

var viewNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

type staticTokens string

func (t staticTokens) Token(context.Context) (string, error) {
	return string(t), nil
}

func signedIn(email string) *session.Principal {
	return session.NewPrincipal("uid-"+email, email, "Reader "+email, "https://example.com/a.png", staticTokens("token-"+email))
}

type fakeSession struct {
	mu          sync.Mutex
	state       session.State
	subscribers []chan session.State
	// subscribed receives a value each time Subscribe is called.
	subscribed chan struct{}
}

func (s *fakeSession) Current() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) Subscribe(ctx context.Context) (<-chan session.State, func()) {
	s.mu.Lock()
	stream := make(chan session.State, 1)
	stream <- s.state
	s.subscribers = append(s.subscribers, stream)
	subscribed := s.subscribed
	s.mu.Unlock()
	if subscribed != nil {
		subscribed <- struct{}{}
	}
	return stream, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, candidate := range s.subscribers {
			if candidate == stream {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				close(stream)
				return
			}
		}
	}
}

func (s *fakeSession) set(principal *session.Principal) {
	s.publish(session.State{Principal: principal})
}

func (s *fakeSession) setLoading() {
	s.publish(session.State{Loading: true})
}

func (s *fakeSession) publish(state session.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	for _, stream := range s.subscribers {
		select {
		case <-stream:
		default:
		}
		stream <- state
	}
}

type commentCall struct {
	token   string
	id      books.BookID
	comment books.CommentInput
}

type writeCall struct {
	token string
	id    books.BookID
	input books.Input
}

type fakeCatalog struct {
	mu sync.Mutex

	list    []books.Book
	listErr error
	book    books.Book
	getErr  error

	addErr    error
	updateErr error
	deleteErr error
	// deleteGate, when set, blocks DeleteBook until it is closed.
	deleteGate chan struct{}
	// listGate, when set, blocks ListBooks until it is closed. The list is
	// captured before blocking.
	listGate    chan struct{}
	listEntered chan struct{}

	commentAck bool
	commentErr error

	listCalls int
	getCalls  int
	adds      []writeCall
	updates   []writeCall
	deletes   []writeCall
	comments  []commentCall
}

func (c *fakeCatalog) ListBooks(ctx context.Context) ([]books.Book, error) {
	c.mu.Lock()
	c.listCalls++
	list := append([]books.Book(nil), c.list...)
	err := c.listErr
	gate, entered := c.listGate, c.listEntered
	c.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return list, err
}

func (c *fakeCatalog) GetBook(ctx context.Context, id books.BookID) (books.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	return c.book, c.getErr
}

func (c *fakeCatalog) AddBook(ctx context.Context, token string, input books.Input) (books.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adds = append(c.adds, writeCall{token: token, input: input})
	return books.Book{ID: "created", Title: input.Title}, c.addErr
}

func (c *fakeCatalog) UpdateBook(ctx context.Context, token string, id books.BookID, input books.Input) (books.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, writeCall{token: token, id: id, input: input})
	return books.Book{ID: id.String(), Title: input.Title, OwnerEmail: input.OwnerEmail}, c.updateErr
}

func (c *fakeCatalog) DeleteBook(ctx context.Context, token string, id books.BookID) error {
	c.mu.Lock()
	c.deletes = append(c.deletes, writeCall{token: token, id: id})
	gate := c.deleteGate
	err := c.deleteErr
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (c *fakeCatalog) PostComment(ctx context.Context, token string, id books.BookID, comment books.CommentInput) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.comments = append(c.comments, commentCall{token: token, id: id, comment: comment})
	return c.commentAck, c.commentErr
}

func (c *fakeCatalog) listCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls
}

func (c *fakeCatalog) deleteCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deletes)
}

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.routes) == 0 {
		return ""
	}
	return n.routes[len(n.routes)-1]
}

type scriptedConfirmer struct {
	answer  bool
	prompts []string
}

func (c *scriptedConfirmer) Confirm(ctx context.Context, prompt string) bool {
	c.prompts = append(c.prompts, prompt)
	return c.answer
}

type stubAuthenticator struct {
	signInErr    error
	signUpErr    error
	federatedErr error
	signUps      []Registration
}

func (a *stubAuthenticator) SignIn(ctx context.Context, email, password string) (*session.Principal, error) {
	if a.signInErr != nil {
		return nil, a.signInErr
	}
	return signedIn(email), nil
}

func (a *stubAuthenticator) SignUp(ctx context.Context, email, password, displayName, photoURL string) (*session.Principal, error) {
	a.signUps = append(a.signUps, Registration{Name: displayName, Email: email, Password: password, PhotoURL: photoURL})
	if a.signUpErr != nil {
		return nil, a.signUpErr
	}
	return signedIn(email), nil
}

func (a *stubAuthenticator) FederatedSignIn(ctx context.Context, flow identity.FederatedFlow) (*session.Principal, error) {
	if a.federatedErr != nil {
		return nil, a.federatedErr
	}
	return signedIn("g@y.com"), nil
}

type testHarness struct {
	catalog   *fakeCatalog
	session   *fakeSession
	auth      *stubAuthenticator
	navigator *recordingNavigator
	confirmer *scriptedConfirmer
	scheduler *ManualScheduler
}

func newHarness() *testHarness {
	return &testHarness{
		catalog:   &fakeCatalog{commentAck: true},
		session:   &fakeSession{},
		auth:      &stubAuthenticator{},
		navigator: &recordingNavigator{},
		confirmer: &scriptedConfirmer{answer: true},
		scheduler: &ManualScheduler{},
	}
}

func (h *testHarness) deps() Deps {
	return Deps{
		Catalog:         h.catalog,
		Session:         h.session,
		Auth:            h.auth,
		Navigator:       h.navigator,
		Confirmer:       h.confirmer,
		Scheduler:       h.scheduler,
		Clock:           func() time.Time { return viewNow },
		FeedbackTimeout: 3 * time.Second,
		RedirectDelay:   1500 * time.Millisecond,
	}
}

// awaitSignal fails the test unless signal delivers within a second.
func awaitSignal(t *testing.T, signal <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-signal:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func cardIDs(cards []Card) []string {
	ids := make([]string, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.Book.ID)
	}
	return ids
}

func feedbackText(feedback *Feedback) string {
	if feedback == nil {
		return ""
	}
	return feedback.Text
}
