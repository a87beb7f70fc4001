package views

import (
	"context"

	"github.com/MarcoPoloResearchLab/bookhaven/internal/books"
	"go.uber.org/zap"
)

// HomeLatestCount is how many recent books the home page features.
const HomeLatestCount = 6

// HomeSnapshot is the renderable state of a HomeView.
type HomeSnapshot struct {
	Loading bool
	Latest  []books.Book
}

// HomeView features the most recently added books, newest first.
type HomeView struct {
	base
	loading bool
	latest  []books.Book
}

// NewHomeView constructs a HomeView.
func NewHomeView(deps Deps) *HomeView {
	return &HomeView{base: newBase(deps), loading: true}
}

// Load fetches the catalog and keeps the latest entries.
func (v *HomeView) Load(ctx context.Context) error {
	v.mu.Lock()
	generation := v.nextGenerationLocked()
	v.loading = true
	v.mu.Unlock()

	list, err := v.deps.Catalog.ListBooks(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.currentLocked(generation) {
		return nil
	}
	v.loading = false
	if err != nil {
		v.deps.Logger.Warn("home load failed", zap.Error(err))
		return err
	}
	v.latest = books.Latest(list, HomeLatestCount)
	return nil
}

// Snapshot returns the current renderable state.
func (v *HomeView) Snapshot() HomeSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return HomeSnapshot{Loading: v.loading, Latest: append([]books.Book(nil), v.latest...)}
}
