package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rideshare-app/apiserver/internal/services"
	"github.com/rideshare-app/apiserver/internal/store/memstore"
	"github.com/rideshare-app/apiserver/types"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu      sync.Mutex
	codes   []types.CodeDelivery
	events  []types.Event
	codeErr error
}

func (n *recordingNotifier) DeliverCode(_ context.Context, d types.CodeDelivery) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codeErr != nil {
		return n.codeErr
	}
	n.codes = append(n.codes, d)
	return nil
}

func (n *recordingNotifier) PublishEvent(_ context.Context, e types.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) lastCode(t *testing.T, mobile string) types.CodeDelivery {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.codes) - 1; i >= 0; i-- {
		if n.codes[i].Mobile == mobile {
			return n.codes[i]
		}
	}
	t.Fatalf("no code delivered to %s", mobile)
	return types.CodeDelivery{}
}

func (n *recordingNotifier) eventTypes() []types.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]types.EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	mem      *memstore.Store
	clock    *fakeClock
	notifier *recordingNotifier
	tokens   *services.TokenIssuer

	users    *services.UserService
	rides    *services.RideService
	requests *services.RideRequestService
	ratings  *services.RatingService

	nextMobile int
}

func newFixture(t *testing.T, extra ...services.Option) *fixture {
	t.Helper()
	f := &fixture{
		mem:      memstore.New(),
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
		tokens:   services.NewTokenIssuer("test-secret", time.Hour),
	}
	opts := append([]services.Option{
		services.WithClock(f.clock.Now),
		services.WithNotifier(f.notifier),
	}, extra...)

	users, rides, requests, ratings := f.mem.Users(), f.mem.Rides(), f.mem.RideRequests(), f.mem.Ratings()
	reconciler := services.NewReconciler(rides, requests, opts...)
	f.users = services.NewUserService(users, f.tokens, opts...)
	f.rides = services.NewRideService(rides, reconciler, opts...)
	f.requests = services.NewRideRequestService(rides, requests, reconciler, opts...)
	f.ratings = services.NewRatingService(ratings, rides, requests, users, opts...)
	return f
}

func (f *fixture) mobile() string {
	f.nextMobile++
	return fmt.Sprintf("98765%05d", f.nextMobile)
}

func (f *fixture) seedUser(t *testing.T, role types.Role) types.User {
	t.Helper()
	user, err := f.mem.Users().Create(context.Background(), types.User{Mobile: f.mobile(), Role: role})
	require.NoError(t, err)
	return user
}

func (f *fixture) seedRide(t *testing.T, driverID string, status types.RideStatus, startOTP string) types.Ride {
	t.Helper()
	ride := types.Ride{
		DriverID: driverID,
		Pickup:   "Pune",
		Drop:     "Mumbai",
		RideTime: time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC),
		Status:   status,
	}
	if startOTP != "" {
		ride.StartOTP = &startOTP
	}
	ride, err := f.mem.Rides().Create(context.Background(), ride)
	require.NoError(t, err)
	return ride
}

func (f *fixture) seedRequest(t *testing.T, rideID, passengerID string, status types.RideRequestStatus) types.RideRequest {
	t.Helper()
	req, err := f.mem.RideRequests().Create(context.Background(), types.RideRequest{
		RideID:      rideID,
		PassengerID: passengerID,
		Status:      status,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) ride(t *testing.T, id string) types.Ride {
	t.Helper()
	ride, err := f.mem.Rides().Get(context.Background(), id)
	require.NoError(t, err)
	return ride
}

func (f *fixture) request(t *testing.T, id string) types.RideRequest {
	t.Helper()
	req, err := f.mem.RideRequests().Get(context.Background(), id)
	require.NoError(t, err)
	return req
}

func driverIdentity(u types.User) services.Identity {
	return services.Identity{ID: u.ID, Mobile: u.Mobile, Role: u.Role}
}
