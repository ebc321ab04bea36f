package memstore

import (
	"context"

	"github.com/rideshare-app/apiserver/internal/store"
	"github.com/rideshare-app/apiserver/types"
)

type RideRequestRepository struct {
	s *Store
}

func (r *RideRequestRepository) Get(_ context.Context, id string) (types.RideRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok {
		return types.RideRequest{}, store.ErrNotFound
	}
	return req, nil
}

func (r *RideRequestRepository) Create(_ context.Context, req types.RideRequest) (types.RideRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if req.Status.Open() {
		for _, existing := range r.s.requests {
			if existing.RideID == req.RideID && existing.PassengerID == req.PassengerID && existing.Status.Open() {
				return types.RideRequest{}, store.ErrDuplicate
			}
		}
	}
	if req.ID == "" {
		req.ID = types.NewID()
	}
	req.CreatedAt = r.s.now()
	r.s.requests[req.ID] = req
	return req, nil
}

func (r *RideRequestRepository) FindOpen(_ context.Context, rideID, passengerID string) (types.RideRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *types.RideRequest
	for _, req := range r.s.requests {
		if req.RideID != rideID || req.PassengerID != passengerID || !req.Status.Open() {
			continue
		}
		if found == nil || req.CreatedAt.After(found.CreatedAt) {
			req := req
			found = &req
		}
	}
	if found == nil {
		return types.RideRequest{}, store.ErrNotFound
	}
	return *found, nil
}

func (r *RideRequestRepository) Cancel(_ context.Context, id, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok || !req.Status.Open() {
		return store.ErrConflict
	}
	req.Status = types.RequestCancelled
	req.CancellationReason = reason
	r.s.requests[id] = req
	return nil
}

func (r *RideRequestRepository) ApprovePending(_ context.Context, rideID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, req := range r.s.requests {
		if req.RideID == rideID && req.Status == types.RequestPending {
			req.Status = types.RequestApproved
			r.s.requests[id] = req
			n++
		}
	}
	return n, nil
}

func (r *RideRequestRepository) CountByStatus(_ context.Context, rideID string, statuses []types.RideRequestStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, req := range r.s.requests {
		if req.RideID == rideID && hasRequestStatus(statuses, req.Status) {
			n++
		}
	}
	return n, nil
}

func (r *RideRequestRepository) ListByPassenger(_ context.Context, passengerID string, statuses []types.RideRequestStatus) ([]types.RideRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	requests := make([]types.RideRequest, 0)
	for _, req := range r.s.requests {
		if req.PassengerID != passengerID {
			continue
		}
		if len(statuses) > 0 && !hasRequestStatus(statuses, req.Status) {
			continue
		}
		requests = append(requests, req)
	}
	newestFirst(requests)
	return requests, nil
}
