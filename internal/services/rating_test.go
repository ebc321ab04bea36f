package services_test

import (
	"context"
	"testing"

	"github.com/rideshare-app/apiserver/internal/services"
	"github.com/rideshare-app/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, types.RoleDriver)
	passenger := f.seedUser(t, types.RolePassenger)
	done := f.seedRide(t, driver.ID, types.RideCompleted, "")
	active := f.seedRide(t, driver.ID, types.RideActive, "")

	tests := []struct {
		name string
		in   services.SubmitRating
		want error
		kind services.Kind
	}{
		{name: "too high", in: services.SubmitRating{RideID: done.ID, TargetUserID: driver.ID, Rating: 6}, want: services.ErrInvalidRating},
		{name: "negative", in: services.SubmitRating{RideID: done.ID, TargetUserID: driver.ID, Rating: -1}, want: services.ErrInvalidRating},
		{name: "missing rating", in: services.SubmitRating{RideID: done.ID, TargetUserID: driver.ID}, kind: services.KindValidation},
		{name: "missing target", in: services.SubmitRating{RideID: done.ID, Rating: 4}, kind: services.KindValidation},
		{name: "malformed ids", in: services.SubmitRating{RideID: "x", TargetUserID: driver.ID, Rating: 4}, want: services.ErrInvalidRatingRefs},
		{name: "ride not completed", in: services.SubmitRating{RideID: active.ID, TargetUserID: driver.ID, Rating: 4}, want: services.ErrRideNotRateable},
		{name: "unknown ride", in: services.SubmitRating{RideID: types.NewID(), TargetUserID: driver.ID, Rating: 4}, want: services.ErrRideNotRateable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ratings.Submit(ctx, passenger.ID, tt.in)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			assert.Equal(t, tt.kind, services.KindOf(err))
		})
	}

	rating, err := f.ratings.Submit(ctx, passenger.ID, services.SubmitRating{
		RideID: done.ID, TargetUserID: driver.ID, Rating: 5, Review: " smooth ride ",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, rating.Rating)
	assert.Equal(t, "smooth ride", rating.Review)
	assert.Equal(t, passenger.ID, rating.RaterID)

	_, err = f.ratings.Submit(ctx, passenger.ID, services.SubmitRating{RideID: done.ID, TargetUserID: driver.ID, Rating: 3})
	assert.ErrorIs(t, err, services.ErrDuplicateRating)

	_, err = f.ratings.Submit(ctx, driver.ID, services.SubmitRating{RideID: done.ID, TargetUserID: passenger.ID, Rating: 4})
	assert.NoError(t, err, "the other direction is a separate rating")
}

func TestRatingSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, types.RoleDriver)

	summary, err := f.ratings.Summary(ctx, driver.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.Count)

	for _, score := range []int{5, 4} {
		rater := f.seedUser(t, types.RolePassenger)
		ride := f.seedRide(t, driver.ID, types.RideCompleted, "")
		_, err := f.ratings.Submit(ctx, rater.ID, services.SubmitRating{RideID: ride.ID, TargetUserID: driver.ID, Rating: score})
		require.NoError(t, err)
	}

	summary, err = f.ratings.Summary(ctx, driver.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count)
	assert.InDelta(t, 4.5, summary.Average, 0.001)

	_, err = f.ratings.Summary(ctx, types.NewID())
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestBookedAndMyRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, types.RoleDriver)
	passenger := f.seedUser(t, types.RolePassenger)
	r1 := f.seedRide(t, driver.ID, types.RideAvailable, "111111")
	r2 := f.seedRide(t, driver.ID, types.RideActive, "")
	r3 := f.seedRide(t, driver.ID, types.RideAvailable, "222222")

	f.seedRequest(t, r1.ID, passenger.ID, types.RequestAccepted)
	f.seedRequest(t, r2.ID, passenger.ID, types.RequestApproved)
	f.seedRequest(t, r3.ID, passenger.ID, types.RequestPending)
	orphan := f.seedRequest(t, types.NewID(), passenger.ID, types.RequestApproved)

	booked, err := f.ratings.Booked(ctx, passenger.ID)
	require.NoError(t, err)
	require.Len(t, booked, 3)
	for _, view := range booked {
		assert.True(t, view.Status.Booked())
		if view.ID == orphan.ID {
			assert.Nil(t, view.Ride)
			continue
		}
		require.NotNil(t, view.Ride)
		assert.Equal(t, view.RideID, view.Ride.ID)
	}

	all, err := f.ratings.MyRequests(ctx, passenger.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := f.ratings.Booked(ctx, driver.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, types.RoleDriver)
	f.seedRide(t, driver.ID, types.RideAvailable, "111111")
	f.seedRide(t, driver.ID, types.RideCompleted, "")
	f.seedRide(t, f.seedUser(t, types.RoleDriver).ID, types.RideAvailable, "222222")

	rides, err := f.ratings.Published(ctx, driver.ID)
	require.NoError(t, err)
	assert.Len(t, rides, 2)
	for _, ride := range rides {
		assert.Equal(t, driver.ID, ride.DriverID)
	}
}

func TestBookedDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := f.seedUser(t, types.RoleDriver)
	passenger := f.seedUser(t, types.RolePassenger)
	stranger := f.seedUser(t, types.RolePassenger)
	ride := f.seedRide(t, driver.ID, types.RideAvailable, "111111")
	req := f.seedRequest(t, ride.ID, passenger.ID, types.RequestPending)

	for _, caller := range []string{passenger.ID, driver.ID} {
		view, err := f.ratings.BookedDetail(ctx, caller, req.ID)
		require.NoError(t, err)
		require.NotNil(t, view.Ride)
		require.NotNil(t, view.Passenger)
		assert.Equal(t, passenger.Mobile, view.Passenger.Mobile)
	}

	_, err := f.ratings.BookedDetail(ctx, stranger.ID, req.ID)
	assert.ErrorIs(t, err, services.ErrNotAuthorized)

	_, err = f.ratings.BookedDetail(ctx, passenger.ID, types.NewID())
	assert.ErrorIs(t, err, services.ErrRequestNotFound)
}
