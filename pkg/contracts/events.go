package contracts

import "time"

type Event struct {
	EventID   string         `json:"event_id"`
	OrderID   string         `json:"order_id"`
	CreatedAt time.Time      `json:"created_at"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

const (
	EventOrderConfirmed      = "order.confirmed"
	EventOrderCancelled      = "order.cancelled"
	EventOrderCompleted      = "order.completed"
	EventOrderAutoPrinted    = "order.auto_printed"
	EventPaymentReversed     = "payment.reversed"
	EventNotificationEmitted = "notification.emitted"
)
