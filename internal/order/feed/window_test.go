package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nazeru/order-console-go/internal/order/domain"
)

func orders(ids ...string) []domain.Order {
	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Order{ID: domain.OrderID(id), Status: domain.OrderStatusPaid})
	}
	return out
}

func TestWindowAdvance(t *testing.T) {
	w := NewWindow(3)

	prev, cur := w.Advance(orders("A"))
	assert.Empty(t, prev)
	assert.Len(t, cur, 1)

	prev, cur = w.Advance(orders("B", "A"))
	assert.Equal(t, orders("A"), prev)
	assert.Equal(t, orders("B", "A"), cur)

	prev, cur = w.Advance(nil)
	assert.Equal(t, orders("B", "A"), prev)
	assert.Empty(t, cur)
	assert.Empty(t, w.Current())
}

func TestWindowTruncatesToSize(t *testing.T) {
	w := NewWindow(2)
	_, cur := w.Advance(orders("D", "C", "B", "A"))
	assert.Equal(t, orders("D", "C"), cur)

	_, ok := w.Lookup("B")
	assert.False(t, ok)
	o, ok := w.Lookup("C")
	assert.True(t, ok)
	assert.Equal(t, domain.OrderID("C"), o.ID)
}

func TestWindowCurrentIsACopy(t *testing.T) {
	w := NewWindow(0)
	assert.Equal(t, DefaultWindowSize, w.Size())
	w.Advance(orders("A"))

	got := w.Current()
	got[0].Status = domain.OrderStatusCancelled

	o, _ := w.Lookup("A")
	assert.Equal(t, domain.OrderStatusPaid, o.Status)
}

func TestWindowReplacePatchesCurrent(t *testing.T) {
	w := NewWindow(5)
	w.Advance(orders("B", "A"))

	confirmed := domain.Order{ID: "A", Status: domain.OrderStatusConfirmed}
	assert.True(t, w.Replace(confirmed))
	assert.False(t, w.Replace(domain.Order{ID: "Z"}))

	o, _ := w.Lookup("A")
	assert.Equal(t, domain.OrderStatusConfirmed, o.Status)
	assert.Len(t, w.Current(), 2)
}

func TestWindowClipLeavesStateAlone(t *testing.T) {
	w := NewWindow(2)
	w.Advance(orders("A"))

	clipped := w.Clip(orders("D", "C", "B"))
	assert.Equal(t, orders("D", "C"), clipped)
	assert.Equal(t, orders("A"), w.Current())
}
