package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/rideshare-app/apiserver/internal/store"
	"github.com/rideshare-app/apiserver/types"
)

type RideRepository struct {
	s *Store
}

func cloneRide(ride types.Ride) types.Ride {
	ride.StartOTP = cloneString(ride.StartOTP)
	return ride
}

func (r *RideRepository) Get(_ context.Context, id string) (types.Ride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ride, ok := r.s.rides[id]
	if !ok {
		return types.Ride{}, store.ErrNotFound
	}
	return cloneRide(ride), nil
}

func (r *RideRepository) Create(_ context.Context, ride types.Ride) (types.Ride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ride.ID == "" {
		ride.ID = types.NewID()
	}
	if _, taken := r.s.rides[ride.ID]; taken {
		return types.Ride{}, store.ErrDuplicate
	}
	ride.CreatedAt = r.s.now()
	ride = cloneRide(ride)
	r.s.rides[ride.ID] = ride
	return cloneRide(ride), nil
}

func (r *RideRepository) filter(keep func(types.Ride) bool) []types.Ride {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rides := make([]types.Ride, 0)
	for _, ride := range r.s.rides {
		if keep(ride) {
			rides = append(rides, cloneRide(ride))
		}
	}
	return rides
}

func (r *RideRepository) ListAvailable(_ context.Context, pickup, drop string, rideTime time.Time) ([]types.Ride, error) {
	rides := r.filter(func(ride types.Ride) bool {
		return ride.Pickup == pickup &&
			ride.Drop == drop &&
			ride.RideTime.Equal(rideTime) &&
			ride.Status == types.RideAvailable
	})
	sort.SliceStable(rides, func(i, j int) bool { return rides[i].CreatedAt.Before(rides[j].CreatedAt) })
	return rides, nil
}

func (r *RideRepository) ListByDriver(_ context.Context, driverID string) ([]types.Ride, error) {
	rides := r.filter(func(ride types.Ride) bool { return ride.DriverID == driverID })
	sort.SliceStable(rides, func(i, j int) bool { return rides[i].RideTime.After(rides[j].RideTime) })
	return rides, nil
}

func (r *RideRepository) Transition(_ context.Context, id string, t store.RideTransition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ride, ok := r.s.rides[id]
	if !ok {
		return store.ErrNotFound
	}
	if !t.Allows(ride.Status, ride.StartOTP) {
		return store.ErrConflict
	}
	ride.Status = t.To
	ride.StartOTP = cloneString(t.StartOTP)
	r.s.rides[id] = ride
	return nil
}
