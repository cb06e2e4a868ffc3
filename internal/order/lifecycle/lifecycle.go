package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nazeru/order-console-go/internal/order/domain"
	"github.com/nazeru/order-console-go/pkg/metrics"
	"github.com/nazeru/order-console-go/pkg/tx/common"
	"github.com/nazeru/order-console-go/pkg/tx/pipeline"
)

type (
	// Persister applies a partial update to the store of record.
	Persister interface {
		ApplyUpdate(ctx context.Context, id domain.OrderID, update domain.OrderUpdate) error
	}

	SideEffects interface {
		SendConfirmationSMS(ctx context.Context, o domain.Order, minutes int) error
		SendCancellationSMS(ctx context.Context, o domain.Order) error
		ReversePayment(ctx context.Context, paymentID, reason string) error
	}

	// LoyaltyHook runs after an order is completed. Accrual itself is not implemented.
	LoyaltyHook func(ctx context.Context, o domain.Order) error

	Lifecycle struct {
		store    Persister
		effects  SideEffects
		engine   *pipeline.Engine
		loyalty  LoyaltyHook
		metrics  *metrics.ConsoleMetrics
		now      func() time.Time
		inFlight atomic.Bool
	}

	Option func(*Lifecycle)

	// Outcome describes a committed operation.
	Outcome struct {
		TxID     common.TxID  `json:"txId"`
		Order    domain.Order `json:"order"`
		Warnings []string     `json:"warnings,omitempty"`
	}
)

func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

func WithLoyaltyHook(h LoyaltyHook) Option {
	return func(l *Lifecycle) { l.loyalty = h }
}

func WithMetrics(m *metrics.ConsoleMetrics) Option {
	return func(l *Lifecycle) { l.metrics = m }
}

func WithTxLog(log pipeline.TxLogStore) Option {
	return func(l *Lifecycle) { l.engine = &pipeline.Engine{Log: log} }
}

func New(store Persister, effects SideEffects, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:   store,
		effects: effects,
		engine:  &pipeline.Engine{},
		loyalty: func(context.Context, domain.Order) error { return nil },
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lifecycle) Busy() bool {
	return l.inFlight.Load()
}

// Confirm accepts an awaiting order. The persisted write precedes the
// confirmation SMS; an SMS failure leaves the order confirmed.
func (l *Lifecycle) Confirm(ctx context.Context, o domain.Order, deliveryMinutes int) (Outcome, error) {
	var updated domain.Order
	steps := []pipeline.Step{
		{Name: common.StepValidate, Kind: common.Blocking, Run: func(context.Context) error {
			if deliveryMinutes <= 0 {
				return domain.ErrDeliveryTimeRequired
			}
			return checkTransition(o, domain.OrderStatusConfirmed)
		}},
		{Name: common.StepPersist, Kind: common.Blocking, Run: func(ctx context.Context) error {
			at := l.now()
			eta := at.Add(time.Duration(deliveryMinutes) * time.Minute)
			minutes := deliveryMinutes
			u := domain.OrderUpdate{
				Status:                domain.OrderStatusConfirmed,
				DeliveryTime:          &minutes,
				ConfirmedAt:           &at,
				EstimatedDeliveryTime: &eta,
			}
			if err := l.store.ApplyUpdate(ctx, o.ID, u); err != nil {
				return err
			}
			updated = u.Apply(o)
			return nil
		}},
		{Name: common.StepNotifyCustomer, Kind: common.BestEffort, Run: func(ctx context.Context) error {
			return l.effects.SendConfirmationSMS(ctx, updated, deliveryMinutes)
		}},
	}
	return l.run(ctx, "confirm", o, steps, &updated)
}

// Cancel rejects an awaiting order. A gateway payment is reversed first and a
// failed reversal leaves the order untouched with no SMS sent.
func (l *Lifecycle) Cancel(ctx context.Context, o domain.Order, reason string) (Outcome, error) {
	reason = strings.TrimSpace(reason)
	var updated domain.Order
	steps := []pipeline.Step{
		{Name: common.StepValidate, Kind: common.Blocking, Run: func(context.Context) error {
			if reason == "" {
				return domain.ErrCancelReasonRequired
			}
			return checkTransition(o, domain.OrderStatusCancelled)
		}},
	}
	if o.HasPayment() {
		steps = append(steps, pipeline.Step{Name: common.StepReversePayment, Kind: common.Blocking, Run: func(ctx context.Context) error {
			return l.effects.ReversePayment(ctx, o.PaymentID, reason)
		}})
	}
	steps = append(steps,
		pipeline.Step{Name: common.StepPersist, Kind: common.Blocking, Run: func(ctx context.Context) error {
			at := l.now()
			u := domain.OrderUpdate{Status: domain.OrderStatusCancelled, CancelReason: reason, CancelledAt: &at}
			if err := l.store.ApplyUpdate(ctx, o.ID, u); err != nil {
				return err
			}
			updated = u.Apply(o)
			return nil
		}},
		pipeline.Step{Name: common.StepNotifyCustomer, Kind: common.BestEffort, Run: func(ctx context.Context) error {
			return l.effects.SendCancellationSMS(ctx, updated)
		}},
	)
	return l.run(ctx, "cancel", o, steps, &updated)
}

func (l *Lifecycle) Complete(ctx context.Context, o domain.Order) (Outcome, error) {
	var updated domain.Order
	steps := []pipeline.Step{
		{Name: common.StepValidate, Kind: common.Blocking, Run: func(context.Context) error {
			return checkTransition(o, domain.OrderStatusCompleted)
		}},
		{Name: common.StepPersist, Kind: common.Blocking, Run: func(ctx context.Context) error {
			at := l.now()
			u := domain.OrderUpdate{Status: domain.OrderStatusCompleted, CompletedAt: &at}
			if err := l.store.ApplyUpdate(ctx, o.ID, u); err != nil {
				return err
			}
			updated = u.Apply(o)
			return nil
		}},
		{Name: common.StepLoyaltyAccrual, Kind: common.BestEffort, Run: func(ctx context.Context) error {
			return l.loyalty(ctx, updated)
		}},
	}
	return l.run(ctx, "complete", o, steps, &updated)
}

func (l *Lifecycle) run(ctx context.Context, op string, o domain.Order, steps []pipeline.Step, updated *domain.Order) (Outcome, error) {
	if !l.inFlight.CompareAndSwap(false, true) {
		l.metrics.Operation(op, "rejected")
		return Outcome{}, domain.ErrOperationInFlight
	}
	defer l.inFlight.Store(false)

	res := l.engine.Execute(ctx, common.TxID(uuid.NewString()), string(o.ID), steps)
	if res.Err != nil {
		l.metrics.Operation(op, "aborted")
		return Outcome{TxID: res.TxID}, res.Err
	}
	l.metrics.Operation(op, "committed")
	out := Outcome{TxID: res.TxID, Order: *updated}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, w.Error())
	}
	return out, nil
}

func checkTransition(o domain.Order, to domain.OrderStatus) error {
	if !domain.CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, to)
	}
	return nil
}
