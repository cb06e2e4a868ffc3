package sideeffect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nazeru/order-console-go/internal/order/domain"
	"github.com/nazeru/order-console-go/pkg/contracts"
	"github.com/nazeru/order-console-go/pkg/logging"
	"github.com/nazeru/order-console-go/pkg/metrics"
	"github.com/nazeru/order-console-go/pkg/receipt"
)

const AddressUnavailable = "Address unavailable"

type AddressLookup interface {
	StoreAddress(ctx context.Context, storeID string) (string, error)
}

type Printer interface {
	Print(ctx context.Context, req contracts.PrintRequest) (contracts.PrintResponse, error)
}

// Renderer is the local fallback used when the print service is unreachable.
type Renderer interface {
	Render(ctx context.Context, o contracts.PrintOrder) error
}

type Messenger interface {
	Send(ctx context.Context, to, text string) error
}

type Reverser interface {
	Reverse(ctx context.Context, paymentID, reason string) error
}

type Config struct {
	PromoStoreID string
	PromoFooter  string
	Location     *time.Location
}

type Dispatcher struct {
	addresses AddressLookup
	printer   Printer
	fallback  Renderer
	messenger Messenger
	reverser  Reverser
	cfg       Config
	metrics   *metrics.ConsoleMetrics
}

type Deps struct {
	Addresses AddressLookup
	Printer   Printer
	Fallback  Renderer
	Messenger Messenger
	Reverser  Reverser
	Metrics   *metrics.ConsoleMetrics
}

func NewDispatcher(deps Deps, cfg Config) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Dispatcher{
		addresses: deps.Addresses,
		printer:   deps.Printer,
		fallback:  deps.Fallback,
		messenger: deps.Messenger,
		reverser:  deps.Reverser,
		cfg:       cfg,
		metrics:   deps.Metrics,
	}
}

type PrintResult struct {
	Method   string `json:"method"`
	Message  string `json:"message,omitempty"`
	FellBack bool   `json:"fellBack"`
	// Err is set only when the fallback failed as well.
	Err error `json:"-"`
}

// Print sends the receipt to the print service and falls back to local
// rendering on any failure. It never fails the order.
func (d *Dispatcher) Print(ctx context.Context, o domain.Order) PrintResult {
	req := contracts.PrintRequest{OrderData: d.printOrder(ctx, o)}

	start := time.Now()
	resp, err := d.printer.Print(ctx, req)
	if err == nil {
		d.metrics.SideEffect("print", "ok")
		logging.Log(logging.Fields{Service: "console", OrderID: string(o.ID), Step: "print", Status: "printed", DurationMS: time.Since(start).Milliseconds(), Message: resp.Message})
		return PrintResult{Method: resp.Method, Message: resp.Message}
	}
	logging.Warn(logging.Fields{Service: "console", OrderID: string(o.ID), Step: "print", Status: "primary_failed", Message: "print service failed, rendering locally"}, err)

	if ferr := d.fallback.Render(ctx, req.OrderData); ferr != nil {
		d.metrics.SideEffect("print", "failed")
		logging.Error(logging.Fields{Service: "console", OrderID: string(o.ID), Step: "print_fallback", Status: "failed", Message: "local receipt rendering failed"}, ferr)
		return PrintResult{Method: "fallback", FellBack: true, Err: ferr}
	}
	d.metrics.SideEffect("print", "fallback")
	return PrintResult{Method: "fallback", Message: "rendered locally", FellBack: true}
}

func (d *Dispatcher) printOrder(ctx context.Context, o domain.Order) contracts.PrintOrder {
	addr, err := d.addresses.StoreAddress(ctx, o.StoreID)
	if err != nil || strings.TrimSpace(addr) == "" {
		if err == nil {
			err = domain.ErrStoreNotFound
		}
		logging.Warn(logging.Fields{Service: "console", OrderID: string(o.ID), Step: "address_lookup", Status: "placeholder"}, err)
		addr = AddressUnavailable
	}
	items := make([]contracts.PrintItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, contracts.PrintItem{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return contracts.PrintOrder{
		ID:                 string(o.ID),
		OrderNumber:        o.DisplayNumber(),
		Status:             string(o.Status),
		Phone:              o.Phone,
		StoreID:            o.StoreID,
		StoreName:          o.StoreName,
		StoreAddress:       addr,
		Amount:             o.Amount,
		Items:              items,
		TableNumber:        o.TableNumber,
		SpecialRequests:    o.SpecialRequests,
		PaymentID:          o.PaymentID,
		FormattedCreatedAt: o.CreatedAt.In(d.cfg.Location).Format("2006-01-02 15:04"),
	}
}

func (d *Dispatcher) SendConfirmationSMS(ctx context.Context, o domain.Order, minutes int) error {
	text := fmt.Sprintf("[%s] Order #%s is confirmed. Estimated delivery in %d minutes. Total %s.",
		o.StoreName, o.DisplayNumber(), minutes, receipt.Amount(o.Amount))
	return d.sendSMS(ctx, o, "sms_confirm", text)
}

func (d *Dispatcher) SendCancellationSMS(ctx context.Context, o domain.Order) error {
	text := fmt.Sprintf("[%s] Order #%s has been cancelled. Reason: %s.",
		o.StoreName, o.DisplayNumber(), strings.TrimSpace(o.CancelReason))
	if o.HasPayment() {
		text += " Your payment has been refunded."
	}
	return d.sendSMS(ctx, o, "sms_cancel", text)
}

func (d *Dispatcher) sendSMS(ctx context.Context, o domain.Order, step, text string) error {
	to := DigitsOnly(o.Phone)
	if to == "" {
		err := errors.New("order has no phone number")
		d.metrics.SideEffect(step, "failed")
		logging.Warn(logging.Fields{Service: "console", OrderID: string(o.ID), Step: step, Status: "skipped"}, err)
		return err
	}
	if d.cfg.PromoStoreID != "" && o.StoreID == d.cfg.PromoStoreID && d.cfg.PromoFooter != "" {
		text += "\n" + d.cfg.PromoFooter
	}
	if err := d.messenger.Send(ctx, to, text); err != nil {
		d.metrics.SideEffect(step, "failed")
		logging.Warn(logging.Fields{Service: "console", OrderID: string(o.ID), Step: step, Status: "failed"}, err)
		return err
	}
	d.metrics.SideEffect(step, "ok")
	logging.Log(logging.Fields{Service: "console", OrderID: string(o.ID), Step: step, Status: "sent"})
	return nil
}

// ReversePayment refunds a gateway payment. Its error gates the cancel transition.
func (d *Dispatcher) ReversePayment(ctx context.Context, paymentID, reason string) error {
	if err := d.reverser.Reverse(ctx, paymentID, reason); err != nil {
		d.metrics.SideEffect("reverse_payment", "failed")
		logging.Warn(logging.Fields{Service: "console", EventID: paymentID, Step: "reverse_payment", Status: "failed"}, err)
		return fmt.Errorf("%w: %v", domain.ErrPaymentReversalFailed, err)
	}
	d.metrics.SideEffect("reverse_payment", "ok")
	logging.Log(logging.Fields{Service: "console", EventID: paymentID, Step: "reverse_payment", Status: "reversed"})
	return nil
}

func DigitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
