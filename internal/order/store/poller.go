package store

import (
	"context"
	"time"

	"github.com/nazeru/order-console-go/internal/order/domain"
	"github.com/nazeru/order-console-go/pkg/logging"
)

type Snapshotter interface {
	Snapshot(ctx context.Context, limit int) ([]domain.Order, error)
}

// Poller turns periodic window queries into a push-style feed.
type Poller struct {
	Source   Snapshotter
	Limit    int
	Interval time.Duration
}

func (p *Poller) Subscribe(ctx context.Context) (<-chan []domain.Order, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	out := make(chan []domain.Order, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			snap, err := p.Source.Snapshot(ctx, p.Limit)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logging.Warn(logging.Fields{Service: "console", Step: "feed_poll", Status: "error"}, err)
			} else {
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out, nil
}
