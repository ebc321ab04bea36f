package types

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// RideRating is a score given by one participant of a completed ride to
// another. A rater can rate a given target once per ride.
type RideRating struct {
	ID           string    `json:"id" db:"id"`
	RideID       string    `json:"rideId" db:"ride_id"`
	RaterID      string    `json:"raterId" db:"rater_id"`
	TargetUserID string    `json:"targetUserId" db:"target_user_id"`
	Rating       int       `json:"rating" db:"rating"`
	Review       string    `json:"review,omitempty" db:"review"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
