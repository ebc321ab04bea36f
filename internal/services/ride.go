package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/rideshare-app/apiserver/internal/observability"
	"github.com/rideshare-app/apiserver/internal/store"
	"github.com/rideshare-app/apiserver/types"
)

// RideRepository defines persistence operations for rides.
type RideRepository interface {
	Get(ctx context.Context, id string) (types.Ride, error)
	Create(ctx context.Context, ride types.Ride) (types.Ride, error)
	ListAvailable(ctx context.Context, pickup, drop string, rideTime time.Time) ([]types.Ride, error)
	ListByDriver(ctx context.Context, driverID string) ([]types.Ride, error)
	Transition(ctx context.Context, id string, t store.RideTransition) error
}

var startableStatuses = []types.RideStatus{types.RideAvailable, types.RideScheduled}

var rideTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseRideTime accepts ISO-8601 timestamps with or without a zone. Values
// without a zone are taken as UTC.
func ParseRideTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range rideTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidRideTime
}

// PublishRide is the input of RideService.Publish.
type PublishRide struct {
	Pickup   string
	Drop     string
	RideTime string
	StartOTP string
}

// RideService encapsulates the driver side of the ride lifecycle.
type RideService struct {
	rides      RideRepository
	reconciler *Reconciler
	runtime
}

func NewRideService(rides RideRepository, reconciler *Reconciler, opts ...Option) *RideService {
	return &RideService{rides: rides, reconciler: reconciler, runtime: newRuntime(opts)}
}

// Search records a search intent. Nothing is queried.
func (s *RideService) Search(ctx context.Context, userID, pickup, drop, rideTime string) error {
	if blank(pickup, drop, rideTime) {
		return invalid("Pickup, drop, and ride time are required")
	}
	s.logger.InfoContext(ctx, "ride search",
		slog.String("user_id", userID),
		slog.String("pickup", strings.TrimSpace(pickup)),
		slog.String("drop", strings.TrimSpace(drop)),
		slog.String("ride_time", strings.TrimSpace(rideTime)),
	)
	return nil
}

// ListAvailable returns available rides on a route at exactly rideTime.
func (s *RideService) ListAvailable(ctx context.Context, pickup, drop, rideTime string) ([]types.Ride, error) {
	if blank(pickup, drop, rideTime) {
		return nil, invalid("pickup, drop, and rideTime are required")
	}
	at, err := ParseRideTime(rideTime)
	if err != nil {
		return nil, err
	}
	rides, err := s.rides.ListAvailable(ctx, strings.TrimSpace(pickup), strings.TrimSpace(drop), at)
	if err != nil {
		return nil, internalError("list available rides", err)
	}
	return rides, nil
}

// Publish creates an available ride owned by the calling driver.
func (s *RideService) Publish(ctx context.Context, caller Identity, in PublishRide) (types.Ride, error) {
	if caller.Role != types.RoleDriver && caller.Role != types.RoleAdmin {
		return types.Ride{}, ErrDriverRoleRequired
	}
	if blank(in.Pickup, in.Drop, in.RideTime) {
		return types.Ride{}, invalid("Pickup, drop, and ride time are required")
	}
	at, err := ParseRideTime(in.RideTime)
	if err != nil {
		return types.Ride{}, err
	}

	code := strings.TrimSpace(in.StartOTP)
	if code == "" {
		if code, err = GenerateCode(); err != nil {
			return types.Ride{}, internalError("publish ride", err)
		}
	} else if !startCodePattern.MatchString(code) {
		return types.Ride{}, ErrInvalidStartCode
	}

	ride, err := s.rides.Create(ctx, types.Ride{
		DriverID: caller.ID,
		Pickup:   strings.TrimSpace(in.Pickup),
		Drop:     strings.TrimSpace(in.Drop),
		RideTime: at,
		Status:   types.RideAvailable,
		StartOTP: &code,
	})
	if err != nil {
		return types.Ride{}, internalError("publish ride", err)
	}

	observability.RideTransitionsTotal.WithLabelValues(string(types.RideAvailable)).Inc()
	s.publish(ctx, types.Event{Type: types.EventRidePublished, RideID: ride.ID, UserID: caller.ID})
	return ride, nil
}

// VerifyStart checks the start code presented by the driver and moves the
// ride to active. Pending requests are approved as part of the start.
func (s *RideService) VerifyStart(ctx context.Context, driverID, rideID, code string) (types.Ride, error) {
	if blank(rideID) || code == "" {
		return types.Ride{}, invalid("Ride ID and OTP are required")
	}

	ride, err := s.load(ctx, rideID)
	if err != nil {
		return types.Ride{}, err
	}
	if ride.DriverID != driverID {
		return types.Ride{}, ErrStartForbidden
	}
	if !ride.Status.Startable() {
		return types.Ride{}, ErrRideNotStartable
	}
	if ride.StartOTP == nil || *ride.StartOTP != code {
		return types.Ride{}, ErrWrongStartCode
	}

	err = s.rides.Transition(ctx, ride.ID, store.RideTransition{
		From:     startableStatuses,
		To:       types.RideActive,
		MatchOTP: code,
	})
	if err != nil {
		return types.Ride{}, s.transitionError("start ride", err, ErrRideNotStartable)
	}
	ride.Status = types.RideActive
	ride.StartOTP = nil

	observability.RideTransitionsTotal.WithLabelValues(string(types.RideActive)).Inc()
	s.logger.InfoContext(ctx, "ride started", slog.String("ride_id", ride.ID), slog.String("driver_id", driverID))
	s.publish(ctx, types.Event{Type: types.EventRideStarted, RideID: ride.ID, UserID: driverID})

	if _, err := s.reconciler.RideStarted(ctx, ride.ID); err != nil {
		return types.Ride{}, err
	}
	return ride, nil
}

// Complete finishes an active ride.
func (s *RideService) Complete(ctx context.Context, driverID, rideID string) (types.Ride, error) {
	return s.finish(ctx, driverID, rideID, store.RideTransition{
		From: []types.RideStatus{types.RideActive},
		To:   types.RideCompleted,
	}, ErrRideNotCompletable, types.EventRideCompleted)
}

// Cancel withdraws a ride that has not started yet.
func (s *RideService) Cancel(ctx context.Context, driverID, rideID string) (types.Ride, error) {
	return s.finish(ctx, driverID, rideID, store.RideTransition{
		From: startableStatuses,
		To:   types.RideCancelled,
	}, ErrRideNotCancellable, types.EventRideCancelled)
}

func (s *RideService) finish(ctx context.Context, driverID, rideID string, t store.RideTransition, conflict error, event types.EventType) (types.Ride, error) {
	if blank(rideID) {
		return types.Ride{}, invalid("Ride ID is required")
	}
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return types.Ride{}, err
	}
	if ride.DriverID != driverID {
		return types.Ride{}, ErrNotRideDriver
	}
	if !t.Allows(ride.Status, ride.StartOTP) {
		return types.Ride{}, conflict
	}
	if err := s.rides.Transition(ctx, ride.ID, t); err != nil {
		return types.Ride{}, s.transitionError("finish ride", err, conflict)
	}
	ride.Status = t.To
	ride.StartOTP = t.StartOTP

	observability.RideTransitionsTotal.WithLabelValues(string(t.To)).Inc()
	s.logger.InfoContext(ctx, "ride finished", slog.String("ride_id", ride.ID), slog.String("status", string(t.To)))
	s.publish(ctx, types.Event{Type: event, RideID: ride.ID, UserID: driverID})
	return ride, nil
}

func (s *RideService) load(ctx context.Context, rideID string) (types.Ride, error) {
	ride, err := s.rides.Get(ctx, strings.TrimSpace(rideID))
	if errors.Is(err, store.ErrNotFound) {
		return types.Ride{}, ErrRideNotFound
	}
	if err != nil {
		return types.Ride{}, internalError("load ride", err)
	}
	return ride, nil
}

func (s *RideService) transitionError(op string, err, conflict error) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return conflict
	case errors.Is(err, store.ErrNotFound):
		return ErrRideNotFound
	default:
		return internalError(op, err)
	}
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
