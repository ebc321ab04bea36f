package store

import "github.com/rideshare-app/apiserver/types"

// RideTransition describes a conditional ride status change. The write is
// applied only if the ride's current status is one of From and, when
// MatchOTP is set, its start code equals MatchOTP. StartOTP replaces the
// stored start code; nil clears it.
type RideTransition struct {
	From     []types.RideStatus
	To       types.RideStatus
	MatchOTP string
	StartOTP *string
}

// Allows reports whether a ride in the given state satisfies the transition
// preconditions.
func (t RideTransition) Allows(status types.RideStatus, startOTP *string) bool {
	if !containsStatus(t.From, status) {
		return false
	}
	if t.MatchOTP == "" {
		return true
	}
	return startOTP != nil && *startOTP == t.MatchOTP
}

// FromStrings returns From as plain strings for query parameters.
func (t RideTransition) FromStrings() []string {
	out := make([]string, len(t.From))
	for i, s := range t.From {
		out[i] = string(s)
	}
	return out
}

func containsStatus(list []types.RideStatus, status types.RideStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

// RequestStatusStrings converts request statuses to plain strings.
func RequestStatusStrings(statuses []types.RideRequestStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// OpenRequestStatuses are the statuses that block a duplicate request and
// may be cancelled by the passenger.
var OpenRequestStatuses = []types.RideRequestStatus{types.RequestPending, types.RequestAccepted}

// HoldingRequestStatuses are the statuses that keep a ride from being reset
// to available.
var HoldingRequestStatuses = []types.RideRequestStatus{types.RequestPending, types.RequestApproved}

// BookedRequestStatuses are the statuses listed as a passenger's bookings.
var BookedRequestStatuses = []types.RideRequestStatus{types.RequestAccepted, types.RequestApproved}
