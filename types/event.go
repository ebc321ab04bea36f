package types

import "time"

// EventType names a ride lifecycle event.
type EventType string

const (
	EventRidePublished    EventType = "ride.published"
	EventRideStarted      EventType = "ride.started"
	EventRideCompleted    EventType = "ride.completed"
	EventRideCancelled    EventType = "ride.cancelled"
	EventRideReset        EventType = "ride.reset"
	EventRequestCreated   EventType = "request.created"
	EventRequestCancelled EventType = "request.cancelled"
	EventRequestsApproved EventType = "request.approved"
	EventRatingSubmitted  EventType = "rating.submitted"
)

// Event is published on the ride events channel whenever the state of a ride
// or of its requests changes.
type Event struct {
	Type      EventType `json:"type"`
	RideID    string    `json:"rideId"`
	UserID    string    `json:"userId,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	Count     int64     `json:"count,omitempty"`
	At        time.Time `json:"at"`
}

// CodePurpose tells the delivery side which message template to use.
type CodePurpose string

const (
	PurposeSignIn        CodePurpose = "sign_in"
	PurposePasswordReset CodePurpose = "password_reset"
)

// CodeDelivery is a one-time code handed to the SMS gateway.
type CodeDelivery struct {
	Mobile    string      `json:"mobile"`
	Code      string      `json:"otp"`
	Purpose   CodePurpose `json:"purpose"`
	ExpiresAt time.Time   `json:"otpExpiresAt"`
}
