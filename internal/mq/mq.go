// Package mq carries code deliveries and ride events between the API and
// its workers over a pluggable broker.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rideshare-app/apiserver/config"
)

// Channels used by the application.
const (
	ChannelCodeDelivery = "otp.delivery"
	ChannelRideEvents   = "ride.events"
)

// Message attributes understood by the backends.
const (
	AttrContentType = "content-type"
	AttrEventType   = "event-type"
	// AttrOrderingKey groups messages that must be consumed in publish
	// order, e.g. the events of one ride.
	AttrOrderingKey = "ordering-key"
	// AttrExpiresAt is an RFC 3339 instant after which the message is
	// worthless to consumers.
	AttrExpiresAt = "expires-at"

	contentTypeJSON = "application/json"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// expired reports whether msg carries an expiry that has passed.
func expired(msg Message, now time.Time) bool {
	raw, ok := msg.Attributes[AttrExpiresAt]
	if !ok {
		return false
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return false
	}
	return !now.Before(at)
}

// Decode unmarshals a JSON payload into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects to the broker selected by cfg.MQBackend.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*MQ, error) {
	switch cfg.MQBackend {
	case config.MQRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return New(client), nil
	case config.MQPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return New(client), nil
	case config.MQLog, "":
		return New(NewLocalBackend(logger)), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQBackend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishJSON encodes v as JSON and publishes it.
func (m *MQ) PublishJSON(ctx context.Context, channel string, v any, attrs map[string]string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s message: %w", channel, err)
	}
	merged := make(map[string]string, len(attrs)+1)
	for k, val := range attrs {
		merged[k] = val
	}
	merged[AttrContentType] = contentTypeJSON
	return m.backend.Publish(ctx, channel, data, merged)
}

// Subscribe consumes messages from the named channel.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
