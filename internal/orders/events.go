package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"

	eventVersion = 1
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type LineQty struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type OrderPlacedPayload struct {
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	Status    Status          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Lines     []LineQty       `json:"lines"`
	GiftID    string          `json:"gift_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type OrderCancelledPayload struct {
	OrderID  string    `json:"order_id"`
	Released []LineQty `json:"released"`
}

type OrderStatusChangedPayload struct {
	OrderID        string `json:"order_id"`
	From           Status `json:"from"`
	To             Status `json:"to"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

// Publisher hands an encoded event to the broker. Implementations must not
// block on the network; the order is already committed when this is called.
type Publisher interface {
	Publish(topic string, key, value []byte, headers map[string]string)
}

func (m *Manager) publish(ctx context.Context, topic, eventType, orderID string, payload any) {
	if m.publisher == nil {
		return
	}
	p, err := json.Marshal(payload)
	if err != nil {
		m.log.ErrorContext(ctx, "encode event payload", "event_type", eventType, "order_id", orderID, "err", err)
		return
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    m.now().UTC(),
		Producer:      m.service,
		TraceID:       traceID(ctx),
		CorrelationID: orderID,
		Payload:       p,
	}
	b, err := json.Marshal(env)
	if err != nil {
		m.log.ErrorContext(ctx, "encode event", "event_type", eventType, "order_id", orderID, "err", err)
		return
	}
	m.publisher.Publish(topic, PartitionKey(orderID), b, map[string]string{
		"x-event-type":    eventType,
		"x-event-version": "1",
	})
}

func lineQtys(lines []OrderLine) []LineQty {
	out := make([]LineQty, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineQty{VariantID: l.VariantID, Quantity: l.Quantity})
	}
	return out
}
