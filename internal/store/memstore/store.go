// Package memstore is an in-process implementation of the repositories.
// It backs local development runs and the service and handler tests. All
// uniqueness and conditional-write rules of the persistent backends hold
// under its single mutex.
package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/rideshare-app/apiserver/types"
)

// Store holds every collection behind one lock.
type Store struct {
	mu       sync.Mutex
	users    map[string]types.User
	rides    map[string]types.Ride
	requests map[string]types.RideRequest
	ratings  map[string]types.RideRating

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[string]types.User),
		rides:    make(map[string]types.Ride),
		requests: make(map[string]types.RideRequest),
		ratings:  make(map[string]types.RideRating),
		now:      time.Now,
	}
}

func (s *Store) Users() *UserRepository               { return &UserRepository{s: s} }
func (s *Store) Rides() *RideRepository               { return &RideRepository{s: s} }
func (s *Store) RideRequests() *RideRequestRepository { return &RideRequestRepository{s: s} }
func (s *Store) Ratings() *RatingRepository           { return &RatingRepository{s: s} }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func hasRequestStatus(list []types.RideRequestStatus, status types.RideRequestStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func newestFirst(requests []types.RideRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
}
