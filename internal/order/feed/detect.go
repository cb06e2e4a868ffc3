package feed

import (
	"context"

	"github.com/nazeru/order-console-go/internal/order/domain"
)

// HandledSet remembers order ids whose automatic side effect already fired
// during this operator session.
type HandledSet interface {
	Contains(ctx context.Context, id domain.OrderID) (bool, error)
	// Add inserts id and reports whether it was absent.
	Add(ctx context.Context, id domain.OrderID) (bool, error)
	Reset(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// DetectNew returns the orders of current that must trigger the automatic side
// effect: payable, not handled yet, and absent from previous. Order follows
// current.
//
// An order already present in previous never qualifies, even if it became
// payable between the two snapshots.
func DetectNew(ctx context.Context, previous, current []domain.Order, handled HandledSet) ([]domain.Order, error) {
	seen := make(map[domain.OrderID]struct{}, len(previous))
	for _, o := range previous {
		seen[o.ID] = struct{}{}
	}

	var out []domain.Order
	for _, o := range current {
		if o.Status != domain.OrderStatusPaid {
			continue
		}
		if _, ok := seen[o.ID]; ok {
			continue
		}
		done, err := handled.Contains(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if done {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}
