package types

import "time"

// RideRequestStatus is the lifecycle state of a join request.
type RideRequestStatus string

const (
	RequestPending   RideRequestStatus = "pending"
	RequestAccepted  RideRequestStatus = "accepted"
	RequestApproved  RideRequestStatus = "approved"
	RequestCancelled RideRequestStatus = "cancelled"
)

// Open reports whether the request still blocks a new request from the same
// passenger for the same ride, and may be cancelled.
func (s RideRequestStatus) Open() bool {
	return s == RequestPending || s == RequestAccepted
}

// Holding reports whether the request keeps its ride out of the available
// pool.
func (s RideRequestStatus) Holding() bool {
	return s == RequestPending || s == RequestApproved
}

// Booked reports whether the request counts as a confirmed booking.
func (s RideRequestStatus) Booked() bool {
	return s == RequestAccepted || s == RequestApproved
}

// RideRequest is a passenger's request to join a ride.
type RideRequest struct {
	ID          string            `json:"id" db:"id"`
	RideID      string            `json:"rideId" db:"ride_id"`
	PassengerID string            `json:"passengerId" db:"passenger_id"`
	Status      RideRequestStatus `json:"status" db:"status"`

	// CancellationReason is recorded when the passenger cancels.
	CancellationReason string `json:"cancellationReason,omitempty" db:"cancellation_reason"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// RideRequestView is a request with its references resolved.
type RideRequestView struct {
	RideRequest

	// Ride is nil when the referenced ride no longer exists.
	Ride *Ride `json:"ride"`

	// Passenger is only resolved for detail views.
	Passenger *User `json:"passenger,omitempty"`
}
