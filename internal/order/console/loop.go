package console

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nazeru/order-console-go/internal/order/domain"
	"github.com/nazeru/order-console-go/internal/order/feed"
	"github.com/nazeru/order-console-go/internal/order/lifecycle"
	"github.com/nazeru/order-console-go/internal/order/sideeffect"
	"github.com/nazeru/order-console-go/pkg/contracts"
	"github.com/nazeru/order-console-go/pkg/logging"
	"github.com/nazeru/order-console-go/pkg/metrics"
)

type (
	Printer interface {
		Print(ctx context.Context, o domain.Order) sideeffect.PrintResult
	}

	Operations interface {
		Confirm(ctx context.Context, o domain.Order, deliveryMinutes int) (lifecycle.Outcome, error)
		Cancel(ctx context.Context, o domain.Order, reason string) (lifecycle.Outcome, error)
		Complete(ctx context.Context, o domain.Order) (lifecycle.Outcome, error)
		Busy() bool
	}

	// Loop wires the feed to new-order detection and automatic printing, and
	// exposes the operator operations.
	Loop struct {
		window    *feed.Window
		handled   feed.HandledSet
		printer   Printer
		ops       Operations
		metrics   *metrics.ConsoleMetrics
		autoPrint atomic.Bool
		prints    sync.WaitGroup
	}
)

func New(window *feed.Window, handled feed.HandledSet, printer Printer, ops Operations, m *metrics.ConsoleMetrics, autoPrint bool) *Loop {
	l := &Loop{window: window, handled: handled, printer: printer, ops: ops, metrics: m}
	l.autoPrint.Store(autoPrint)
	return l
}

// Run consumes snapshots until the channel closes or ctx is done, then waits
// for outstanding prints.
func (l *Loop) Run(ctx context.Context, snapshots <-chan []domain.Order) error {
	defer l.prints.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if _, err := l.HandleSnapshot(ctx, snap); err != nil {
				logging.Error(logging.Fields{Service: "console", Step: "detect", Status: "failed", Message: "window kept, retrying on next snapshot"}, err)
			}
		}
	}
}

// HandleSnapshot advances the window and dispatches automatic prints for the
// orders detected as new. It returns the detected orders.
func (l *Loop) HandleSnapshot(ctx context.Context, snapshot []domain.Order) ([]domain.Order, error) {
	// The window moves only after detection succeeds.
	previous, current := l.window.Current(), l.window.Clip(snapshot)
	fresh, err := feed.DetectNew(ctx, previous, current, l.handled)
	if err != nil {
		return nil, err
	}
	l.window.Advance(snapshot)
	l.metrics.Snapshot(len(fresh))

	auto := l.autoPrint.Load()
	for _, o := range fresh {
		if _, err := l.handled.Add(ctx, o.ID); err != nil {
			// The order still prints; only a later re-entry into the window could repeat it.
			logging.Error(logging.Fields{Service: "console", OrderID: string(o.ID), Step: "mark_handled", Status: "failed"}, err)
		}
		if !auto {
			logging.Log(logging.Fields{Service: "console", OrderID: string(o.ID), Step: "detect", Status: "auto_print_off"})
			continue
		}
		logging.Log(logging.Fields{Service: "console", OrderID: string(o.ID), Step: contracts.EventOrderAutoPrinted, Status: "dispatched"})
		l.prints.Add(1)
		go func(o domain.Order) {
			defer l.prints.Done()
			l.printer.Print(context.WithoutCancel(ctx), o)
		}(o)
	}
	return fresh, nil
}

func (l *Loop) SetAutoPrintEnabled(enabled bool) {
	l.autoPrint.Store(enabled)
	status := "disabled"
	if enabled {
		status = "enabled"
	}
	logging.Log(logging.Fields{Service: "console", Step: "auto_print", Status: status})
}

func (l *Loop) AutoPrintEnabled() bool {
	return l.autoPrint.Load()
}

func (l *Loop) Window() []domain.Order {
	return l.window.Current()
}

func (l *Loop) Lookup(id domain.OrderID) (domain.Order, bool) {
	return l.window.Lookup(id)
}

func (l *Loop) Busy() bool {
	return l.ops.Busy()
}

func (l *Loop) Confirm(ctx context.Context, o domain.Order, deliveryMinutes int) (lifecycle.Outcome, error) {
	return l.settle(l.ops.Confirm(ctx, l.latest(o), deliveryMinutes))
}

func (l *Loop) Cancel(ctx context.Context, o domain.Order, reason string) (lifecycle.Outcome, error) {
	return l.settle(l.ops.Cancel(ctx, l.latest(o), reason))
}

func (l *Loop) Complete(ctx context.Context, o domain.Order) (lifecycle.Outcome, error) {
	return l.settle(l.ops.Complete(ctx, l.latest(o)))
}

// latest prefers the window copy, which carries this session's own writes.
func (l *Loop) latest(o domain.Order) domain.Order {
	if cur, ok := l.window.Lookup(o.ID); ok {
		return cur
	}
	return o
}

func (l *Loop) settle(out lifecycle.Outcome, err error) (lifecycle.Outcome, error) {
	if err == nil && out.Order.ID != "" {
		l.window.Replace(out.Order)
	}
	return out, err
}

// Print is the manual reprint; it does not touch the handled set.
func (l *Loop) Print(ctx context.Context, o domain.Order) sideeffect.PrintResult {
	return l.printer.Print(ctx, o)
}

// ResetHandled forgets every handled id of the session.
func (l *Loop) ResetHandled(ctx context.Context) error {
	return l.handled.Reset(ctx)
}
