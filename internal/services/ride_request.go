package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/rideshare-app/apiserver/internal/observability"
	"github.com/rideshare-app/apiserver/internal/store"
	"github.com/rideshare-app/apiserver/types"
)

// RideRequestRepository defines persistence operations for join requests.
type RideRequestRepository interface {
	Get(ctx context.Context, id string) (types.RideRequest, error)
	Create(ctx context.Context, req types.RideRequest) (types.RideRequest, error)
	FindOpen(ctx context.Context, rideID, passengerID string) (types.RideRequest, error)
	Cancel(ctx context.Context, id, reason string) error
	ApprovePending(ctx context.Context, rideID string) (int64, error)
	CountByStatus(ctx context.Context, rideID string, statuses []types.RideRequestStatus) (int64, error)
	ListByPassenger(ctx context.Context, passengerID string, statuses []types.RideRequestStatus) ([]types.RideRequest, error)
}

// RideRequestService encapsulates the passenger side of joining rides.
type RideRequestService struct {
	rides      RideRepository
	requests   RideRequestRepository
	reconciler *Reconciler
	runtime
}

func NewRideRequestService(rides RideRepository, requests RideRequestRepository, reconciler *Reconciler, opts ...Option) *RideRequestService {
	return &RideRequestService{rides: rides, requests: requests, reconciler: reconciler, runtime: newRuntime(opts)}
}

// RequestToJoin files a pending request for passengerID on an available ride.
func (s *RideRequestService) RequestToJoin(ctx context.Context, passengerID, rideID string) (types.RideRequest, error) {
	rideID = strings.TrimSpace(rideID)
	if rideID == "" {
		return types.RideRequest{}, invalid("Ride ID is required")
	}
	if !types.ValidID(rideID) {
		return types.RideRequest{}, ErrInvalidRideID
	}

	ride, err := s.rides.Get(ctx, rideID)
	if errors.Is(err, store.ErrNotFound) {
		return types.RideRequest{}, ErrRideNotFound
	}
	if err != nil {
		return types.RideRequest{}, internalError("load ride", err)
	}
	if ride.Status != types.RideAvailable {
		return types.RideRequest{}, ErrRideNotJoinable
	}

	req, err := s.requests.Create(ctx, types.RideRequest{
		RideID:      ride.ID,
		PassengerID: passengerID,
		Status:      types.RequestPending,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return types.RideRequest{}, ErrDuplicateRequest
	}
	if err != nil {
		return types.RideRequest{}, internalError("create ride request", err)
	}

	observability.RequestTransitionsTotal.WithLabelValues(string(types.RequestPending)).Inc()
	s.logger.InfoContext(ctx, "ride request created",
		slog.String("request_id", req.ID),
		slog.String("ride_id", ride.ID),
		slog.String("passenger_id", passengerID),
	)
	s.publish(ctx, types.Event{Type: types.EventRequestCreated, RideID: ride.ID, UserID: passengerID, RequestID: req.ID})
	return req, nil
}

// Cancel withdraws the caller's open request on rideID and lets the
// reconciler release the ride if nothing else holds it.
func (s *RideRequestService) Cancel(ctx context.Context, passengerID, rideID, reason string) (types.RideRequest, error) {
	rideID = strings.TrimSpace(rideID)
	reason = strings.TrimSpace(reason)
	if rideID == "" || reason == "" {
		return types.RideRequest{}, ErrReasonRequired
	}

	req, err := s.requests.FindOpen(ctx, rideID, passengerID)
	if errors.Is(err, store.ErrNotFound) {
		return types.RideRequest{}, ErrNoOpenRequest
	}
	if err != nil {
		return types.RideRequest{}, internalError("find open request", err)
	}

	err = s.requests.Cancel(ctx, req.ID, reason)
	if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound) {
		return types.RideRequest{}, ErrNoOpenRequest
	}
	if err != nil {
		return types.RideRequest{}, internalError("cancel request", err)
	}
	req.Status = types.RequestCancelled
	req.CancellationReason = reason

	observability.RequestTransitionsTotal.WithLabelValues(string(types.RequestCancelled)).Inc()
	s.logger.InfoContext(ctx, "ride request cancelled", slog.String("request_id", req.ID), slog.String("ride_id", req.RideID))
	s.publish(ctx, types.Event{Type: types.EventRequestCancelled, RideID: req.RideID, UserID: passengerID, RequestID: req.ID})

	if _, err := s.reconciler.RequestReleased(ctx, req.RideID); err != nil {
		return types.RideRequest{}, err
	}
	return req, nil
}
