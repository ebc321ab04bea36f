package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/rideshare-app/apiserver/internal/logging"
	"github.com/rideshare-app/apiserver/types"
)

// Notifier hands work to asynchronous consumers: code delivery to the SMS
// gateway and domain events to anyone listening.
type Notifier interface {
	DeliverCode(ctx context.Context, delivery types.CodeDelivery) error
	PublishEvent(ctx context.Context, event types.Event) error
}

// Throttle limits how often a key may perform an action.
type Throttle interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Option configures the shared collaborators of a service.
type Option func(*runtime)

// WithLogger sets the logger. Services log nothing by default.
func WithLogger(logger *slog.Logger) Option {
	return func(r *runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithNotifier sets the notifier used for code delivery and events.
func WithNotifier(n Notifier) Option {
	return func(r *runtime) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithThrottle limits code issuance per mobile number.
func WithThrottle(t Throttle) Option {
	return func(r *runtime) { r.throttle = t }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *runtime) {
		if now != nil {
			r.now = now
		}
	}
}

type runtime struct {
	logger   *slog.Logger
	notifier Notifier
	throttle Throttle
	now      func() time.Time
}

func newRuntime(opts []Option) runtime {
	r := runtime{
		logger:   logging.Discard(),
		notifier: nopNotifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// publish emits an event. Delivery failures never fail the operation that
// produced the event.
func (r runtime) publish(ctx context.Context, event types.Event) {
	if event.At.IsZero() {
		event.At = r.now().UTC()
	}
	if err := r.notifier.PublishEvent(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "event publish failed",
			slog.String("type", string(event.Type)),
			slog.String("ride_id", event.RideID),
			slog.Any("error", err),
		)
	}
}

type nopNotifier struct{}

func (nopNotifier) DeliverCode(context.Context, types.CodeDelivery) error { return nil }
func (nopNotifier) PublishEvent(context.Context, types.Event) error       { return nil }
