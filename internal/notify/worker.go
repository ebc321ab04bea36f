package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rideshare-app/apiserver/internal/mq"
	"github.com/rideshare-app/apiserver/types"
	"golang.org/x/sync/errgroup"
)

// Subscriber is the subset of the broker used by the worker.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Gateway sends a text message to a mobile number.
type Gateway interface {
	Send(ctx context.Context, mobile, body string) error
}

// LogGateway stands in for a real SMS provider and writes messages to the
// log instead.
type LogGateway struct {
	Logger *slog.Logger
}

func (g LogGateway) Send(ctx context.Context, mobile, body string) error {
	g.Logger.InfoContext(ctx, "sms", slog.String("mobile", mobile), slog.String("body", body))
	return nil
}

// Worker consumes code deliveries and ride events.
type Worker struct {
	bus     Subscriber
	gateway Gateway
	logger  *slog.Logger
	now     func() time.Time
}

func NewWorker(bus Subscriber, gateway Gateway, logger *slog.Logger) *Worker {
	return &Worker{bus: bus, gateway: gateway, logger: logger, now: time.Now}
}

// Run blocks until ctx is cancelled or a subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.bus.Subscribe(ctx, mq.ChannelCodeDelivery, w.handleCode)
	})
	g.Go(func() error {
		return w.bus.Subscribe(ctx, mq.ChannelRideEvents, w.handleEvent)
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) handleCode(ctx context.Context, msg mq.Message) error {
	var delivery types.CodeDelivery
	if err := msg.Decode(&delivery); err != nil {
		// A malformed payload never becomes valid; drop it.
		w.logger.ErrorContext(ctx, "bad code delivery", slog.String("message_id", msg.ID), slog.Any("error", err))
		return nil
	}
	if !delivery.ExpiresAt.IsZero() && w.now().After(delivery.ExpiresAt) {
		w.logger.WarnContext(ctx, "code expired before delivery", slog.String("message_id", msg.ID))
		return nil
	}
	if err := w.gateway.Send(ctx, delivery.Mobile, messageBody(delivery)); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}

func (w *Worker) handleEvent(ctx context.Context, msg mq.Message) error {
	var event types.Event
	if err := msg.Decode(&event); err != nil {
		w.logger.ErrorContext(ctx, "bad ride event", slog.String("message_id", msg.ID), slog.Any("error", err))
		return nil
	}
	w.logger.InfoContext(ctx, "ride event",
		slog.String("type", string(event.Type)),
		slog.String("ride_id", event.RideID),
		slog.String("user_id", event.UserID),
		slog.Int64("count", event.Count),
	)
	return nil
}

func messageBody(d types.CodeDelivery) string {
	if d.Purpose == types.PurposePasswordReset {
		return fmt.Sprintf("Your password reset OTP is %s. It is valid for 5 minutes.", d.Code)
	}
	return fmt.Sprintf("Your login OTP is %s. It is valid for 5 minutes.", d.Code)
}
