package mq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		attrs map[string]string
		want  bool
	}{
		{name: "no expiry", attrs: nil, want: false},
		{name: "future", attrs: map[string]string{AttrExpiresAt: "2026-03-01T10:05:00Z"}, want: false},
		{name: "past", attrs: map[string]string{AttrExpiresAt: "2026-03-01T09:59:00Z"}, want: true},
		{name: "exactly now", attrs: map[string]string{AttrExpiresAt: "2026-03-01T10:00:00Z"}, want: true},
		{name: "garbage", attrs: map[string]string{AttrExpiresAt: "soon"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expired(Message{Attributes: tt.attrs}, now))
		})
	}
}

func TestMessageTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "300000", messageTTL("2026-03-01T10:05:00Z", now))
	assert.Equal(t, "1", messageTTL("2026-03-01T09:00:00Z", now))
	assert.Empty(t, messageTTL("later", now))
}

func TestHeadersToAttributes(t *testing.T) {
	attrs := headersToAttributes(amqp.Table{
		AttrEventType: "ride.started",
		"raw":         []byte("bytes"),
		"count":       int32(3),
	}, "application/json")

	assert.Equal(t, map[string]string{
		AttrContentType: "application/json",
		AttrEventType:   "ride.started",
		"raw":           "bytes",
		"count":         "3",
	}, attrs)
	assert.Nil(t, headersToAttributes(nil, ""))
}
