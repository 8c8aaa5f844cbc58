package trip

import "fmt"

// TripStatus represents the current state of a trip request in its lifecycle.
type TripStatus string

const (
	StatusPending    TripStatus = "pendiente"
	StatusAccepted   TripStatus = "aceptada"
	StatusInProgress TripStatus = "en_curso"
	StatusCompleted  TripStatus = "completada"
	StatusCancelled  TripStatus = "cancelada"
)

// validTransitions defines the state machine for trip status transitions.
var validTransitions = map[TripStatus][]TripStatus{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// IsValid returns true if the status is a recognized trip status.
func (s TripStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s TripStatus) CanTransitionTo(target TripStatus) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s TripStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// CanBeCancelled returns true if the trip can be cancelled from this status.
func (s TripStatus) CanBeCancelled() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// IsActive returns true for statuses that represent a trip still underway
// from the driver's point of view.
func (s TripStatus) IsActive() bool {
	return s == StatusAccepted || s == StatusInProgress
}

// String returns the string representation of the status.
func (s TripStatus) String() string {
	return string(s)
}

// ParseTripStatus converts a string to a TripStatus, returning an error if invalid.
func ParseTripStatus(s string) (TripStatus, error) {
	status := TripStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid trip status: %s", s)
	}
	return status, nil
}
