package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/order-console-go/internal/order/domain"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, s)
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type fakeStore struct {
	log     *callLog
	err     error
	block   chan struct{}
	updates map[domain.OrderID]domain.OrderUpdate
}

func (s *fakeStore) ApplyUpdate(_ context.Context, id domain.OrderID, u domain.OrderUpdate) error {
	if s.block != nil {
		<-s.block
	}
	s.log.add("persist")
	if s.err != nil {
		return s.err
	}
	if s.updates == nil {
		s.updates = map[domain.OrderID]domain.OrderUpdate{}
	}
	s.updates[id] = u
	return nil
}

type fakeEffects struct {
	log        *callLog
	smsErr     error
	reverseErr error
	lastOrder  domain.Order
	minutes    int
}

func (f *fakeEffects) SendConfirmationSMS(_ context.Context, o domain.Order, minutes int) error {
	f.log.add("sms_confirm")
	f.lastOrder, f.minutes = o, minutes
	return f.smsErr
}

func (f *fakeEffects) SendCancellationSMS(_ context.Context, o domain.Order) error {
	f.log.add("sms_cancel")
	f.lastOrder = o
	return f.smsErr
}

func (f *fakeEffects) ReversePayment(context.Context, string, string) error {
	f.log.add("reverse")
	return f.reverseErr
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setup() (*Lifecycle, *fakeStore, *fakeEffects, *callLog) {
	log := &callLog{}
	store := &fakeStore{log: log}
	effects := &fakeEffects{log: log}
	l := New(store, effects, WithClock(func() time.Time { return fixedNow }))
	return l, store, effects, log
}

func TestConfirmSetsEstimatedDeliveryTime(t *testing.T) {
	l, store, effects, log := setup()

	out, err := l.Confirm(context.Background(), domain.Order{ID: "A", Status: domain.OrderStatusPaid}, 15)
	require.NoError(t, err)

	u := store.updates["A"]
	assert.Equal(t, domain.OrderStatusConfirmed, u.Status)
	assert.Equal(t, fixedNow, *u.ConfirmedAt)
	assert.Equal(t, u.ConfirmedAt.Add(15*time.Minute), *u.EstimatedDeliveryTime)
	assert.Equal(t, 15, *u.DeliveryTime)
	assert.Equal(t, []string{"persist", "sms_confirm"}, log.list())
	assert.Equal(t, domain.OrderStatusConfirmed, out.Order.Status)
	assert.Equal(t, domain.OrderStatusConfirmed, effects.lastOrder.Status)
	assert.Equal(t, 15, effects.minutes)
	assert.NotEmpty(t, out.TxID)
	assert.False(t, l.Busy())
}

func TestConfirmWithoutDeliveryTime(t *testing.T) {
	l, _, _, log := setup()

	_, err := l.Confirm(context.Background(), domain.Order{ID: "A", Status: domain.OrderStatusPending}, 0)

	assert.ErrorIs(t, err, domain.ErrDeliveryTimeRequired)
	assert.Empty(t, log.list())
}

func TestConfirmSMSFailureKeepsStatus(t *testing.T) {
	l, store, effects, _ := setup()
	effects.smsErr = errors.New("sms gateway 503")

	out, err := l.Confirm(context.Background(), domain.Order{ID: "A", Status: domain.OrderStatusPaid}, 30)

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, store.updates["A"].Status)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "sms gateway 503")
}

func TestConfirmRejectsInvalidSource(t *testing.T) {
	l, _, _, log := setup()

	_, err := l.Confirm(context.Background(), domain.Order{ID: "A", Status: domain.OrderStatusCancelled}, 10)

	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Empty(t, log.list())
}

func TestCancelReversalFailureAborts(t *testing.T) {
	l, store, _, log := setup()
	l.effects.(*fakeEffects).reverseErr = domain.ErrPaymentReversalFailed

	_, err := l.Cancel(context.Background(), domain.Order{ID: "B", Status: domain.OrderStatusPaid, PaymentID: "pm_1"}, "out of stock")

	assert.ErrorIs(t, err, domain.ErrPaymentReversalFailed)
	assert.Equal(t, []string{"reverse"}, log.list())
	assert.Empty(t, store.updates)
}

func TestCancelWithPaymentOrdersSteps(t *testing.T) {
	l, store, effects, log := setup()

	out, err := l.Cancel(context.Background(), domain.Order{ID: "B", Status: domain.OrderStatusPaid, PaymentID: "pm_1"}, "  out of stock ")

	require.NoError(t, err)
	assert.Equal(t, []string{"reverse", "persist", "sms_cancel"}, log.list())
	u := store.updates["B"]
	assert.Equal(t, domain.OrderStatusCancelled, u.Status)
	assert.Equal(t, "out of stock", u.CancelReason)
	assert.Equal(t, fixedNow, *u.CancelledAt)
	assert.Equal(t, "out of stock", effects.lastOrder.CancelReason)
	assert.Equal(t, domain.OrderStatusCancelled, out.Order.Status)
}

func TestCancelWithoutPaymentSkipsReversal(t *testing.T) {
	l, _, _, log := setup()

	_, err := l.Cancel(context.Background(), domain.Order{ID: "C", Status: domain.OrderStatusPending}, "customer request")

	require.NoError(t, err)
	assert.Equal(t, []string{"persist", "sms_cancel"}, log.list())
}

func TestCancelRequiresReason(t *testing.T) {
	l, _, _, log := setup()

	_, err := l.Cancel(context.Background(), domain.Order{ID: "B", Status: domain.OrderStatusPaid, PaymentID: "pm_1"}, "   ")

	assert.ErrorIs(t, err, domain.ErrCancelReasonRequired)
	assert.Empty(t, log.list())
}

func TestPersistFailureSkipsSMS(t *testing.T) {
	l, store, _, log := setup()
	store.err = errors.New("db down")

	_, err := l.Confirm(context.Background(), domain.Order{ID: "A", Status: domain.OrderStatusPaid}, 20)

	assert.EqualError(t, errors.Unwrap(err), "db down")
	assert.Equal(t, []string{"persist"}, log.list())
	assert.False(t, l.Busy())
}

func TestComplete(t *testing.T) {
	log := &callLog{}
	store := &fakeStore{log: log}
	var hooked domain.Order
	l := New(store, &fakeEffects{log: log},
		WithClock(func() time.Time { return fixedNow }),
		WithLoyaltyHook(func(_ context.Context, o domain.Order) error {
			hooked = o
			return nil
		}))

	_, err := l.Complete(context.Background(), domain.Order{ID: "D", Status: domain.OrderStatusPaid})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = l.Complete(context.Background(), domain.Order{ID: "D", Status: domain.OrderStatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, store.updates["D"].Status)
	assert.Equal(t, fixedNow, *store.updates["D"].CompletedAt)
	assert.Equal(t, domain.OrderStatusCompleted, hooked.Status)
}

func TestSecondInvocationRejectedWhileInFlight(t *testing.T) {
	l, store, _, _ := setup()
	store.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := l.Confirm(context.Background(), domain.Order{ID: "A", Status: domain.OrderStatusPaid}, 10)
		done <- err
	}()
	require.Eventually(t, l.Busy, time.Second, time.Millisecond)

	_, err := l.Cancel(context.Background(), domain.Order{ID: "B", Status: domain.OrderStatusPaid}, "dup")
	assert.ErrorIs(t, err, domain.ErrOperationInFlight)

	close(store.block)
	require.NoError(t, <-done)
	assert.False(t, l.Busy())
}
