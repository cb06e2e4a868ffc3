package feed

import (
	"context"
	"sync"

	"github.com/nazeru/order-console-go/internal/order/domain"
)

const DefaultWindowSize = 50

// Source delivers full feed snapshots, most recent order first.
type Source interface {
	Subscribe(ctx context.Context) (<-chan []domain.Order, error)
}

// Window keeps the latest feed snapshot together with the one before it.
type Window struct {
	size int

	mu       sync.RWMutex
	previous []domain.Order
	current  []domain.Order
}

func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{size: size}
}

// Advance installs snapshot as the current window and returns the window it
// replaced together with the new one. Snapshots longer than the window size
// are truncated.
func (w *Window) Advance(snapshot []domain.Order) (previous, current []domain.Order) {
	next := w.Clip(snapshot)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.previous, w.current = w.current, next
	return w.previous, w.current
}

// Clip returns a copy of snapshot cut to the window size.
func (w *Window) Clip(snapshot []domain.Order) []domain.Order {
	if len(snapshot) > w.size {
		snapshot = snapshot[:w.size]
	}
	out := make([]domain.Order, len(snapshot))
	copy(out, snapshot)
	return out
}

func (w *Window) Current() []domain.Order {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]domain.Order, len(w.current))
	copy(out, w.current)
	return out
}

func (w *Window) Lookup(id domain.OrderID) (domain.Order, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, o := range w.current {
		if o.ID == id {
			return o, true
		}
	}
	return domain.Order{}, false
}

func (w *Window) Size() int {
	return w.size
}

// Replace overwrites the cached copy of o in the latest snapshot, so operator
// actions see their own writes before the next poll. Unknown ids are ignored.
func (w *Window) Replace(o domain.Order) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.current {
		if w.current[i].ID == o.ID {
			w.current[i] = o
			return true
		}
	}
	return false
}
