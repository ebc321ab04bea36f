package mq

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
)

const localBuffer = 64

// LocalBackend is an in-process broker for single-node and development
// runs. Messages published while nobody subscribes are logged and dropped.
type LocalBackend struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[string][]chan Message
	closed bool
	seq    atomic.Uint64
}

func NewLocalBackend(logger *slog.Logger) *LocalBackend {
	return &LocalBackend{logger: logger, subs: make(map[string][]chan Message)}
}

func (l *LocalBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if channel == "" {
		return "", errors.New("local channel is required")
	}
	id := strconv.FormatUint(l.seq.Add(1), 10)
	msg := Message{ID: id, Data: data, Attributes: attrs}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return "", errors.New("local backend closed")
	}

	subs := l.subs[channel]
	if len(subs) == 0 {
		l.logger.DebugContext(ctx, "mq message without subscriber",
			slog.String("channel", channel),
			slog.String("message_id", id),
			slog.Any("attributes", attrs),
		)
		return id, nil
	}
	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
			l.logger.WarnContext(ctx, "mq subscriber buffer full, message dropped",
				slog.String("channel", channel),
				slog.String("message_id", id),
			)
		}
	}
	return id, nil
}

// Subscribe blocks until ctx is done. Handler errors are logged; there is
// no redelivery.
func (l *LocalBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if channel == "" {
		return errors.New("local channel is required")
	}
	ch := make(chan Message, localBuffer)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errors.New("local backend closed")
	}
	l.subs[channel] = append(l.subs[channel], ch)
	l.mu.Unlock()
	defer l.unsubscribe(channel, ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			if err := handler(ctx, msg); err != nil {
				l.logger.WarnContext(ctx, "mq handler failed",
					slog.String("channel", channel),
					slog.String("message_id", msg.ID),
					slog.Any("error", err),
				)
			}
		}
	}
}

func (l *LocalBackend) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.subs = make(map[string][]chan Message)
	return nil
}

func (l *LocalBackend) unsubscribe(channel string, ch chan Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	subs := l.subs[channel]
	for i, c := range subs {
		if c == ch {
			l.subs[channel] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}
