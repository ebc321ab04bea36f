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

// RatingRepository defines persistence operations for ratings.
type RatingRepository interface {
	Create(ctx context.Context, rating types.RideRating) (types.RideRating, error)
	ListByTarget(ctx context.Context, targetUserID string) ([]types.RideRating, error)
}

// SubmitRating is the input of RatingService.Submit.
type SubmitRating struct {
	RideID       string
	TargetUserID string
	Rating       int
	Review       string
}

// RatingSummary aggregates the ratings received by a user.
type RatingSummary struct {
	UserID  string  `json:"userId"`
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// RatingService owns the rating ledger and the per-user ride views.
type RatingService struct {
	ratings  RatingRepository
	rides    RideRepository
	requests RideRequestRepository
	users    UserRepository
	runtime
}

func NewRatingService(ratings RatingRepository, rides RideRepository, requests RideRequestRepository, users UserRepository, opts ...Option) *RatingService {
	return &RatingService{ratings: ratings, rides: rides, requests: requests, users: users, runtime: newRuntime(opts)}
}

// Submit records raterID's rating of another participant of a completed ride.
func (s *RatingService) Submit(ctx context.Context, raterID string, in SubmitRating) (types.RideRating, error) {
	if blank(in.RideID, in.TargetUserID) || in.Rating == 0 {
		return types.RideRating{}, invalid("rideId, targetUserId, and rating are required")
	}
	if in.Rating < types.MinRating || in.Rating > types.MaxRating {
		return types.RideRating{}, ErrInvalidRating
	}
	rideID := strings.TrimSpace(in.RideID)
	targetID := strings.TrimSpace(in.TargetUserID)
	if !types.ValidID(rideID) || !types.ValidID(targetID) {
		return types.RideRating{}, ErrInvalidRatingRefs
	}

	ride, err := s.rides.Get(ctx, rideID)
	if errors.Is(err, store.ErrNotFound) {
		return types.RideRating{}, ErrRideNotRateable
	}
	if err != nil {
		return types.RideRating{}, internalError("load ride", err)
	}
	if ride.Status != types.RideCompleted {
		return types.RideRating{}, ErrRideNotRateable
	}

	rating, err := s.ratings.Create(ctx, types.RideRating{
		RideID:       ride.ID,
		RaterID:      raterID,
		TargetUserID: targetID,
		Rating:       in.Rating,
		Review:       strings.TrimSpace(in.Review),
	})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return types.RideRating{}, ErrDuplicateRating
	case errors.Is(err, store.ErrNotFound):
		return types.RideRating{}, ErrUserNotFound
	case err != nil:
		return types.RideRating{}, internalError("create rating", err)
	}

	observability.RatingsTotal.Inc()
	s.logger.InfoContext(ctx, "rating submitted", slog.String("ride_id", ride.ID), slog.String("rater_id", raterID))
	s.publish(ctx, types.Event{Type: types.EventRatingSubmitted, RideID: ride.ID, UserID: raterID})
	return rating, nil
}

// Summary returns the number and mean of ratings userID has received.
func (s *RatingService) Summary(ctx context.Context, userID string) (RatingSummary, error) {
	userID = strings.TrimSpace(userID)
	if !types.ValidID(userID) {
		return RatingSummary{}, invalid("Invalid user ID")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RatingSummary{}, ErrUserNotFound
		}
		return RatingSummary{}, internalError("load user", err)
	}

	ratings, err := s.ratings.ListByTarget(ctx, userID)
	if err != nil {
		return RatingSummary{}, internalError("list ratings", err)
	}
	summary := RatingSummary{UserID: userID, Count: len(ratings)}
	if len(ratings) == 0 {
		return summary, nil
	}
	total := 0
	for _, r := range ratings {
		total += r.Rating
	}
	summary.Average = float64(total) / float64(len(ratings))
	return summary, nil
}

// Booked lists the caller's accepted and approved requests with their rides.
func (s *RatingService) Booked(ctx context.Context, passengerID string) ([]types.RideRequestView, error) {
	return s.requestViews(ctx, passengerID, store.BookedRequestStatuses)
}

// MyRequests lists every request the caller has filed, in any status.
func (s *RatingService) MyRequests(ctx context.Context, passengerID string) ([]types.RideRequestView, error) {
	return s.requestViews(ctx, passengerID, nil)
}

// Published lists the rides the caller drives.
func (s *RatingService) Published(ctx context.Context, driverID string) ([]types.Ride, error) {
	rides, err := s.rides.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, internalError("list published rides", err)
	}
	return rides, nil
}

// BookedDetail returns one request with its ride and passenger. Only the
// passenger and the ride's driver may see it.
func (s *RatingService) BookedDetail(ctx context.Context, callerID, requestID string) (types.RideRequestView, error) {
	req, err := s.requests.Get(ctx, strings.TrimSpace(requestID))
	if errors.Is(err, store.ErrNotFound) {
		return types.RideRequestView{}, ErrRequestNotFound
	}
	if err != nil {
		return types.RideRequestView{}, internalError("load ride request", err)
	}

	ride, err := s.lookupRide(ctx, req.RideID)
	if err != nil {
		return types.RideRequestView{}, err
	}
	isDriver := ride != nil && ride.DriverID == callerID
	if req.PassengerID != callerID && !isDriver {
		return types.RideRequestView{}, ErrNotAuthorized
	}

	view := types.RideRequestView{RideRequest: req, Ride: ride}
	passenger, err := s.users.GetByID(ctx, req.PassengerID)
	switch {
	case err == nil:
		view.Passenger = &passenger
	case !errors.Is(err, store.ErrNotFound):
		return types.RideRequestView{}, internalError("load passenger", err)
	}
	return view, nil
}

func (s *RatingService) requestViews(ctx context.Context, passengerID string, statuses []types.RideRequestStatus) ([]types.RideRequestView, error) {
	reqs, err := s.requests.ListByPassenger(ctx, passengerID, statuses)
	if err != nil {
		return nil, internalError("list ride requests", err)
	}

	rides := make(map[string]*types.Ride)
	views := make([]types.RideRequestView, 0, len(reqs))
	for _, req := range reqs {
		ride, seen := rides[req.RideID]
		if !seen {
			if ride, err = s.lookupRide(ctx, req.RideID); err != nil {
				return nil, err
			}
			rides[req.RideID] = ride
		}
		views = append(views, types.RideRequestView{RideRequest: req, Ride: ride})
	}
	return views, nil
}

// lookupRide returns nil for rides that no longer exist.
func (s *RatingService) lookupRide(ctx context.Context, rideID string) (*types.Ride, error) {
	ride, err := s.rides.Get(ctx, rideID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internalError("load ride", err)
	}
	return &ride, nil
}
