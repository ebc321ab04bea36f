package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure so transports can map it to a status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindCredential
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindCredential:
		return "credential"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error is the error type returned by every service operation. Message is
// safe to show to clients; Err carries the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err. Errors that did not come from this
// package are internal.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// MessageOf returns the client facing message for err.
func MessageOf(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Kind != KindInternal {
		return svcErr.Message
	}
	return "Server Error"
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func invalid(message string) *Error {
	return newError(KindValidation, message)
}

func internalError(op string, err error) error {
	return &Error{Kind: KindInternal, Message: "Server Error", Err: fmt.Errorf("%s: %w", op, err)}
}

var (
	ErrInvalidMobile     = invalid("Invalid mobile number format")
	ErrInvalidRole       = invalid("Invalid role value")
	ErrPasswordTooShort  = invalid("Password must be at least 6 characters")
	ErrPasswordTooLong   = invalid("Password must be at most 72 bytes")
	ErrInvalidRideTime   = invalid("Invalid rideTime format")
	ErrInvalidRideID     = invalid("Invalid ride ID")
	ErrInvalidStartCode  = invalid("Start OTP must be a 6-digit code")
	ErrInvalidRating     = invalid("Rating must be between 1 and 5")
	ErrInvalidRatingRefs = invalid("Invalid ride or target user ID")
	ErrReasonRequired    = invalid("Ride ID and reason are required")

	ErrUnauthenticated = newError(KindUnauthenticated, "Unauthorized")

	ErrInvalidOrExpiredCode = newError(KindCredential, "Invalid or expired OTP")
	ErrInvalidCredentials   = newError(KindCredential, "Invalid credentials")
	ErrPasswordNotSet       = newError(KindCredential, "No password set for this user. Use OTP or reset password.")
	ErrWrongStartCode       = newError(KindCredential, "Invalid OTP provided.")

	ErrStartForbidden     = newError(KindForbidden, "You are not authorized to verify OTP for this ride.")
	ErrNotRideDriver      = newError(KindForbidden, "You are not the driver of this ride.")
	ErrDriverRoleRequired = newError(KindForbidden, "Only drivers can publish rides")
	ErrNotAuthorized      = newError(KindForbidden, "Not authorized")

	ErrUserNotFound    = newError(KindNotFound, "User not found")
	ErrRideNotFound    = newError(KindNotFound, "Ride not found")
	ErrRequestNotFound = newError(KindNotFound, "Ride request not found")
	ErrNoOpenRequest   = newError(KindNotFound, "No active ride request found to cancel.")

	ErrRideNotJoinable    = newError(KindConflict, "Ride is not available to join.")
	ErrDuplicateRequest   = newError(KindConflict, "You already have an active request for this ride.")
	ErrRideNotStartable   = newError(KindConflict, "Ride cannot be started now.")
	ErrRideNotCompletable = newError(KindConflict, "Only an active ride can be completed.")
	ErrRideNotCancellable = newError(KindConflict, "Ride cannot be cancelled now.")
	ErrRideNotRateable    = newError(KindConflict, "Ride not found or not completed")
	ErrDuplicateRating    = newError(KindConflict, "You have already rated this user for this ride")

	ErrTooManyCodeRequests = newError(KindRateLimited, "Too many OTP requests. Please try again later.")
)
