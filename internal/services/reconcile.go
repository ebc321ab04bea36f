package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rideshare-app/apiserver/internal/observability"
	"github.com/rideshare-app/apiserver/internal/store"
	"github.com/rideshare-app/apiserver/types"
)

// resettableStatuses are the ride states a released ride may be put back
// to available from. Finished rides are never reopened.
var resettableStatuses = []types.RideStatus{types.RideAvailable, types.RideScheduled, types.RideActive}

// Reconciler keeps ride state and join request state consistent after
// either side changes.
type Reconciler struct {
	rides    RideRepository
	requests RideRequestRepository
	runtime
}

func NewReconciler(rides RideRepository, requests RideRequestRepository, opts ...Option) *Reconciler {
	return &Reconciler{rides: rides, requests: requests, runtime: newRuntime(opts)}
}

// RideStarted approves every pending request on a ride that just became
// active and returns how many were approved.
func (r *Reconciler) RideStarted(ctx context.Context, rideID string) (int64, error) {
	approved, err := r.requests.ApprovePending(ctx, rideID)
	if err != nil {
		return 0, internalError("approve pending requests", err)
	}
	if approved > 0 {
		observability.RequestTransitionsTotal.WithLabelValues(string(types.RequestApproved)).Add(float64(approved))
		r.logger.InfoContext(ctx, "approved pending requests", slog.String("ride_id", rideID), slog.Int64("count", approved))
		r.publish(ctx, types.Event{Type: types.EventRequestsApproved, RideID: rideID, Count: approved})
	}
	return approved, nil
}

// RequestReleased runs after a request on rideID stops holding a seat.
// When no pending or approved request remains, the ride is put back to
// available with a new random start code. It reports whether a reset
// happened.
func (r *Reconciler) RequestReleased(ctx context.Context, rideID string) (bool, error) {
	holding, err := r.requests.CountByStatus(ctx, rideID, store.HoldingRequestStatuses)
	if err != nil {
		return false, internalError("count holding requests", err)
	}
	if holding > 0 {
		return false, nil
	}

	code, err := GenerateCode()
	if err != nil {
		return false, internalError("reset ride", err)
	}
	err = r.rides.Transition(ctx, rideID, store.RideTransition{
		From:     resettableStatuses,
		To:       types.RideAvailable,
		StartOTP: &code,
	})
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, internalError("reset ride", err)
	}

	observability.RideTransitionsTotal.WithLabelValues(string(types.RideAvailable)).Inc()
	r.logger.WarnContext(ctx, "ride reset to available, start code regenerated", slog.String("ride_id", rideID))
	r.publish(ctx, types.Event{Type: types.EventRideReset, RideID: rideID})
	return true, nil
}
