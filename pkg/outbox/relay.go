package outbox

import (
	"context"
	"time"

	"github.com/nazeru/order-console-go/pkg/logging"
)

type Store interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

type PgStore struct {
	DB DB
}

func (s PgStore) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	return FetchPending(ctx, s.DB, limit)
}

func (s PgStore) MarkSent(ctx context.Context, id int64) error {
	return MarkSent(ctx, s.DB, id)
}

// Relay moves pending outbox records to the broker in id order.
type Relay struct {
	Store     Store
	Publisher Publisher
	Interval  time.Duration
	Batch     int
}

func (r *Relay) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			logging.Warn(logging.Fields{Service: "outbox-relay", Status: "flush_error"}, err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch and stops at the first failed record so ordering
// is kept for the next attempt.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	batch := r.Batch
	if batch <= 0 {
		batch = 100
	}
	recs, err := r.Store.FetchPending(ctx, batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, rec := range recs {
		if err := r.Publisher.Publish(ctx, rec.Topic, rec.Key, rec.Payload); err != nil {
			return sent, err
		}
		if err := r.Store.MarkSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		logging.Log(logging.Fields{Service: "outbox-relay", OrderID: rec.Key, EventID: rec.EventID, Status: "published"})
		sent++
	}
	return sent, nil
}
