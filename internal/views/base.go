package views

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"github.com/MarcoPoloResearchLab/bookhaven/internal/session"
	"go.uber.org/zap"
)

// FeedbackKind classifies a user-facing message.
type FeedbackKind string

const (
	FeedbackSuccess FeedbackKind = "success"
	FeedbackError   FeedbackKind = "error"
	FeedbackInfo    FeedbackKind = "info"
)

// Feedback is a user-facing message.
type Feedback struct {
	Kind FeedbackKind
	Text string
}

// base carries the state every view shares: a mutex, the load generation,
// the current feedback and the timers to stop on Close.
type base struct {
	deps Deps

	mu          sync.Mutex
	generation  uint64
	closed      bool
	feedback    *Feedback
	feedbackSeq uint64
	timerSeq    uint64
	timers      map[uint64]func() bool
	// removed maps a deleted book id to the generation current at deletion.
	removed map[string]uint64
}

func newBase(deps Deps) base {
	return base{deps: deps.withDefaults()}
}

// Close unmounts the view. Outstanding responses are discarded and pending
// timers are stopped.
func (b *base) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.generation++
	for _, stop := range b.timers {
		stop()
	}
	b.timers = nil
}

// markRemovedLocked records that id was deleted so loads already in flight
// cannot bring it back.
func (b *base) markRemovedLocked(id string) {
	if b.removed == nil {
		b.removed = make(map[string]uint64)
	}
	b.removed[id] = b.generation
}

// withoutRemovedLocked drops from list the books deleted after the load issued
// under generation started. Deletions older than that load are forgotten.
func (b *base) withoutRemovedLocked(list []books.Book, generation uint64) []books.Book {
	for id, at := range b.removed {
		if at >= generation {
			list = books.RemoveBook(list, id)
			continue
		}
		delete(b.removed, id)
	}
	return list
}

func (b *base) nextGenerationLocked() uint64 {
	b.generation++
	return b.generation
}

// currentLocked reports whether a response issued under generation may still
// update the view.
func (b *base) currentLocked(generation uint64) bool {
	return !b.closed && generation == b.generation
}

func (b *base) aliveLocked() bool {
	return !b.closed
}

// showLocked sets feedback that clears itself after the feedback timeout.
func (b *base) showLocked(kind FeedbackKind, text string) {
	seq := b.pinLocked(kind, text)
	b.scheduleLocked(b.deps.FeedbackTimeout, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.feedbackSeq == seq {
			b.feedback = nil
		}
	})
}

// pinLocked sets feedback that stays until replaced.
func (b *base) pinLocked(kind FeedbackKind, text string) uint64 {
	b.feedbackSeq++
	b.feedback = &Feedback{Kind: kind, Text: text}
	return b.feedbackSeq
}

func (b *base) clearFeedbackLocked() {
	b.feedbackSeq++
	b.feedback = nil
}

func (b *base) feedbackLocked() *Feedback {
	if b.feedback == nil {
		return nil
	}
	copied := *b.feedback
	return &copied
}

// scheduleLocked runs fn after delay unless the view has been closed. A timer
// is forgotten once it fires.
func (b *base) scheduleLocked(delay time.Duration, fn func()) {
	if b.timers == nil {
		b.timers = make(map[uint64]func() bool)
	}
	b.timerSeq++
	id := b.timerSeq
	b.timers[id] = b.deps.Scheduler.AfterFunc(delay, func() {
		b.mu.Lock()
		closed := b.closed
		delete(b.timers, id)
		b.mu.Unlock()
		if !closed {
			fn()
		}
	})
}

// principal is the latest principal, possibly stale while the session loads.
func (b *base) principal() *session.Principal {
	if b.deps.Session == nil {
		return nil
	}
	return b.deps.Session.Current().Principal
}

// settledPrincipal waits until the session has finished loading and returns
// its principal. It fails only when ctx ends first.
func (b *base) settledPrincipal(ctx context.Context) (*session.Principal, error) {
	if b.deps.Session == nil {
		return nil, nil
	}
	state := b.deps.Session.Current()
	if !state.Loading {
		return state.Principal, nil
	}
	stream, unsubscribe := b.deps.Session.Subscribe(ctx)
	defer unsubscribe()
	for {
		select {
		case state, ok := <-stream:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return b.deps.Session.Current().Principal, nil
			}
			if !state.Loading {
				return state.Principal, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// bearer returns a token for principal, or "" when none can be obtained.
// Catalog mutations other than comments tolerate an anonymous request.
func (b *base) bearer(ctx context.Context, principal *session.Principal) string {
	token, err := principal.Token(ctx)
	if err != nil {
		b.deps.Logger.Debug("proceeding without bearer token", zap.Error(err))
		return ""
	}
	return token
}
