package order

import (
	"time"

	"github.com/google/uuid"
)

// Domain event types written to the outbox and relayed to Kafka.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventPaymentCaptured    = "payment.captured"
	EventPaymentFailed      = "payment.failed"
)

type Event struct {
	EventID   string         `json:"event_id"`
	OrderID   string         `json:"order_id"`
	Type      string         `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func NewEvent(orderID uuid.UUID, eventType string, payload map[string]any) Event {
	return Event{
		EventID:   uuid.NewString(),
		OrderID:   orderID.String(),
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}
