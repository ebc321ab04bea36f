// Package notify publishes one-time codes and ride events to the broker and
// runs the worker that hands codes to the SMS gateway.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rideshare-app/apiserver/internal/mq"
	"github.com/rideshare-app/apiserver/types"
)

// Publisher is the subset of the broker used for outgoing messages.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, v any, attrs map[string]string) (string, error)
}

// Notifier implements the service notifier on top of a broker.
type Notifier struct {
	bus Publisher
}

func New(bus Publisher) *Notifier {
	return &Notifier{bus: bus}
}

// DeliverCode queues a code for the SMS gateway.
func (n *Notifier) DeliverCode(ctx context.Context, delivery types.CodeDelivery) error {
	_, err := n.bus.PublishJSON(ctx, mq.ChannelCodeDelivery, delivery, map[string]string{
		"purpose":        string(delivery.Purpose),
		mq.AttrExpiresAt: delivery.ExpiresAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("publish code delivery: %w", err)
	}
	return nil
}

// PublishEvent announces a ride lifecycle event.
func (n *Notifier) PublishEvent(ctx context.Context, event types.Event) error {
	_, err := n.bus.PublishJSON(ctx, mq.ChannelRideEvents, event, map[string]string{
		mq.AttrEventType:   string(event.Type),
		mq.AttrOrderingKey: event.RideID,
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}
