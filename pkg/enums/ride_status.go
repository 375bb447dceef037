package enums

import "fmt"

// RideStatus is the lifecycle state of a ride. Transitions are enforced by
// guarded updates in the ride service, not by this type.
type RideStatus string

const (
	RideStatusScheduled RideStatus = "scheduled"
	RideStatusOngoing   RideStatus = "ongoing"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

var validRideStatuses = []RideStatus{
	RideStatusScheduled,
	RideStatusOngoing,
	RideStatusCompleted,
	RideStatusCancelled,
}

// String implements fmt.Stringer.
func (s RideStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RideStatus.
func (s RideStatus) IsValid() bool {
	for _, candidate := range validRideStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (s RideStatus) CanTransitionTo(next RideStatus) bool {
	switch s {
	case RideStatusScheduled:
		return next == RideStatusOngoing || next == RideStatusCancelled
	case RideStatusOngoing:
		return next == RideStatusCompleted
	default:
		return false
	}
}

// ParseRideStatus converts raw input into a RideStatus.
func ParseRideStatus(value string) (RideStatus, error) {
	for _, candidate := range validRideStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ride status %q", value)
}
