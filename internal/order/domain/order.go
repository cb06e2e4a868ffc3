package domain

import (
	"errors"
	"strings"
	"time"
)

type OrderID string

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrDeliveryTimeRequired  = errors.New("delivery time must be a positive number of minutes")
	ErrCancelReasonRequired  = errors.New("cancel reason is required")
	ErrPaymentReversalFailed = errors.New("payment reversal failed")
	ErrOperationInFlight     = errors.New("another operation is in flight")
	ErrStoreNotFound         = errors.New("store not found")
)

type OrderItem struct {
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type Order struct {
	ID              OrderID     `json:"id"`
	OrderNumber     string      `json:"orderNumber,omitempty"`
	Status          OrderStatus `json:"status"`
	Phone           string      `json:"phone"`
	StoreID         string      `json:"storeId"`
	StoreName       string      `json:"storeName"`
	Amount          int64       `json:"amount"` // whole currency units
	Items           []OrderItem `json:"items"`
	TableNumber     string      `json:"tableNumber,omitempty"`
	SpecialRequests string      `json:"specialRequests,omitempty"`
	PaymentID       string      `json:"paymentId,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`

	DeliveryTime          int        `json:"deliveryTime,omitempty"`
	ConfirmedAt           *time.Time `json:"confirmedAt,omitempty"`
	EstimatedDeliveryTime *time.Time `json:"estimatedDeliveryTime,omitempty"`
	CancelReason          string     `json:"cancelReason,omitempty"`
	CancelledAt           *time.Time `json:"cancelledAt,omitempty"`
	CompletedAt           *time.Time `json:"completedAt,omitempty"`
}

// DisplayNumber returns the order number shown to staff and customers.
// Orders without one fall back to the upper-cased last six characters of the id.
func (o Order) DisplayNumber() string {
	if n := strings.TrimSpace(o.OrderNumber); n != "" {
		return n
	}
	id := string(o.ID)
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return strings.ToUpper(id)
}

func (o Order) HasPayment() bool {
	return strings.TrimSpace(o.PaymentID) != ""
}

// OrderUpdate is the partial field set applied to the store of record.
// Nil pointers and empty strings are left untouched.
type OrderUpdate struct {
	Status                OrderStatus
	DeliveryTime          *int
	ConfirmedAt           *time.Time
	EstimatedDeliveryTime *time.Time
	CancelReason          string
	CancelledAt           *time.Time
	CompletedAt           *time.Time
}

func (u OrderUpdate) Apply(o Order) Order {
	if u.Status != "" {
		o.Status = u.Status
	}
	if u.DeliveryTime != nil {
		o.DeliveryTime = *u.DeliveryTime
	}
	if u.ConfirmedAt != nil {
		o.ConfirmedAt = u.ConfirmedAt
	}
	if u.EstimatedDeliveryTime != nil {
		o.EstimatedDeliveryTime = u.EstimatedDeliveryTime
	}
	if u.CancelReason != "" {
		o.CancelReason = u.CancelReason
	}
	if u.CancelledAt != nil {
		o.CancelledAt = u.CancelledAt
	}
	if u.CompletedAt != nil {
		o.CompletedAt = u.CompletedAt
	}
	return o
}

// AwaitingAction reports whether the status still needs an operator decision.
func (s OrderStatus) AwaitingAction() bool {
	return s == OrderStatusPending || s == OrderStatusPaid
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusConfirmed, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderStatusPending, OrderStatusPaid:
		return to == OrderStatusConfirmed || to == OrderStatusCancelled
	case OrderStatusConfirmed:
		return to == OrderStatusCompleted
	default:
		return false
	}
}

// SourcesOf lists the statuses that may move to the given one.
func SourcesOf(to OrderStatus) []OrderStatus {
	var out []OrderStatus
	for _, from := range []OrderStatus{OrderStatusPending, OrderStatusPaid, OrderStatusConfirmed, OrderStatusCompleted, OrderStatusCancelled} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}
