// Package projector keeps the order status read model in Redis in step with
// order events.
package projector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/storefront-checkout/internal/kafka"
	"github.com/ariefcatur/storefront-checkout/internal/orders"
	"github.com/ariefcatur/storefront-checkout/internal/redisx"
)

type StatusWriter interface {
	SetIfNewer(ctx context.Context, s redisx.CachedStatus) (bool, error)
}

type Deduper interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Service struct {
	Cache StatusWriter
	Dedup Deduper // optional
	Log   *slog.Logger
}

// Handle is installed as the consumer handler. Unknown event types and
// versions are skipped and committed.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.WarnContext(ctx, "skip undecodable event", "topic", m.Topic, "offset", m.Offset, "err", err)
		return nil
	}
	if env.EventVersion != 1 {
		s.Log.WarnContext(ctx, "skip unsupported event version", "event_type", env.EventType, "version", env.EventVersion)
		return nil
	}

	if s.Dedup != nil && env.EventID != "" {
		first, err := s.Dedup.FirstSeen(ctx, env.EventID)
		if err != nil {
			return fmt.Errorf("dedup: %w", err)
		}
		if !first {
			return nil
		}
	}

	if err := s.apply(ctx, env); err != nil {
		if s.Dedup != nil && env.EventID != "" {
			_ = s.Dedup.Forget(context.WithoutCancel(ctx), env.EventID)
		}
		return err
	}
	return nil
}

func (s *Service) apply(ctx context.Context, env orders.Envelope) error {
	var st redisx.CachedStatus
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		st = redisx.CachedStatus{OrderID: p.OrderID, Status: p.Status, UpdatedAt: p.CreatedAt}
	case orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
		if err != nil {
			return err
		}
		st = redisx.CachedStatus{OrderID: p.OrderID, Status: orders.StatusCancelled, UpdatedAt: occurred(env)}
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		st = redisx.CachedStatus{OrderID: p.OrderID, Status: p.To, TrackingNumber: p.TrackingNumber, UpdatedAt: occurred(env)}
	default:
		return nil
	}

	written, err := s.Cache.SetIfNewer(ctx, st)
	if err != nil {
		return fmt.Errorf("cache status %s: %w", st.OrderID, err)
	}
	if !written {
		s.Log.DebugContext(ctx, "stale status skipped", "order_id", st.OrderID, "status", st.Status, "event_type", env.EventType)
		return nil
	}
	s.Log.DebugContext(ctx, "status projected", "order_id", st.OrderID, "status", st.Status, "event_type", env.EventType)
	return nil
}

func occurred(env orders.Envelope) time.Time {
	if env.OccurredAt.IsZero() {
		return time.Now().UTC()
	}
	return env.OccurredAt
}
