package types

import "time"

// RideStatus is the lifecycle state of a ride.
type RideStatus string

const (
	RideAvailable RideStatus = "available"
	RideScheduled RideStatus = "scheduled"
	RideActive    RideStatus = "active"
	RideCompleted RideStatus = "completed"
	RideCancelled RideStatus = "cancelled"
)

// Startable reports whether a ride in status s may be started.
func (s RideStatus) Startable() bool {
	return s == RideAvailable || s == RideScheduled
}

// Ride is a trip offer published by a driver. The ride starts once the
// driver verifies the start code handed over by the passenger.
type Ride struct {
	// ID is the unique identifier of the ride.
	ID string `json:"id" db:"id"`

	// DriverID references the user who published the ride.
	DriverID string `json:"driverId" db:"driver_id"`

	// Pickup and Drop are opaque location labels. Search matches them exactly.
	Pickup string `json:"pickup" db:"pickup"`
	Drop   string `json:"drop" db:"drop_location"`

	// RideTime is the scheduled departure time.
	RideTime time.Time `json:"rideTime" db:"ride_time"`

	Status RideStatus `json:"status" db:"status"`

	// StartOTP is the code required to start the ride. It is set only while
	// the ride is available or scheduled and cleared when the ride starts.
	StartOTP *string `json:"startOtp" db:"start_otp"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
