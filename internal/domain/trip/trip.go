package trip

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/TransPort-Lima/service-rides/internal/domain/shared"
)

const requestNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Stop is a named trip endpoint with its coordinates.
type Stop struct {
	Name string  `json:"nombre"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// TripRequest is the aggregate root for the trip domain.
type TripRequest struct {
	id            uuid.UUID
	requestNumber string
	passengerID   uuid.UUID
	driverID      *uuid.UUID
	status        TripStatus
	origin        Stop
	destination   Stop
	distanceKm    float64
	passengers    int

	standardFareCents int64
	agreedFareCents   *int64
	currency          string

	acceptedAt  *time.Time
	startedAt   *time.Time
	completedAt *time.Time
	cancelledAt *time.Time
	cancelNote  string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateRequestNumber creates a request number in the format "TR-XXXXXX".
func generateRequestNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(requestNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate request number: %w", err)
		}
		result[i] = requestNumberChars[n.Int64()]
	}
	return "TR-" + string(result), nil
}

// NewTripRequest creates a new TripRequest aggregate with status=pendiente.
func NewTripRequest(
	passengerID uuid.UUID,
	origin Stop,
	destination Stop,
	distanceKm float64,
	passengers int,
	standardFareCents int64,
	currency string,
) (*TripRequest, error) {
	if passengerID == uuid.Nil {
		return nil, shared.NewValidationError("passenger ID is required")
	}
	if origin.Name == "" {
		return nil, shared.NewValidationError("origin is required")
	}
	if destination.Name == "" {
		return nil, shared.NewValidationError("destination is required")
	}
	if origin.Name == destination.Name {
		return nil, shared.NewValidationError("origin and destination must differ")
	}
	if distanceKm < 0 {
		return nil, shared.NewValidationError("distance cannot be negative")
	}
	if passengers < 1 {
		return nil, shared.NewValidationError("at least one passenger is required")
	}
	if standardFareCents <= 0 {
		return nil, shared.NewValidationError("standard fare must be positive")
	}

	requestNumber, err := generateRequestNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &TripRequest{
		id:                uuid.New(),
		requestNumber:     requestNumber,
		passengerID:       passengerID,
		status:            StatusPending,
		origin:            origin,
		destination:       destination,
		distanceKm:        distanceKm,
		passengers:        passengers,
		standardFareCents: standardFareCents,
		currency:          currency,
		version:           1,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// ReconstructTripRequest rebuilds a TripRequest from persistence data (no validation).
func ReconstructTripRequest(
	id uuid.UUID,
	requestNumber string,
	passengerID uuid.UUID,
	driverID *uuid.UUID,
	status TripStatus,
	origin Stop,
	destination Stop,
	distanceKm float64,
	passengers int,
	standardFareCents int64,
	agreedFareCents *int64,
	currency string,
	acceptedAt *time.Time,
	startedAt *time.Time,
	completedAt *time.Time,
	cancelledAt *time.Time,
	cancelNote string,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *TripRequest {
	return &TripRequest{
		id:                id,
		requestNumber:     requestNumber,
		passengerID:       passengerID,
		driverID:          driverID,
		status:            status,
		origin:            origin,
		destination:       destination,
		distanceKm:        distanceKm,
		passengers:        passengers,
		standardFareCents: standardFareCents,
		agreedFareCents:   agreedFareCents,
		currency:          currency,
		acceptedAt:        acceptedAt,
		startedAt:         startedAt,
		completedAt:       completedAt,
		cancelledAt:       cancelledAt,
		cancelNote:        cancelNote,
		version:           version,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// --- Getters ---

// ID returns the trip request's unique identifier.
func (t *TripRequest) ID() uuid.UUID { return t.id }

// RequestNumber returns the human-readable request number.
func (t *TripRequest) RequestNumber() string { return t.requestNumber }

// PassengerID returns the requesting passenger's user ID.
func (t *TripRequest) PassengerID() uuid.UUID { return t.passengerID }

// DriverID returns the assigned driver's user ID, or nil if unassigned.
func (t *TripRequest) DriverID() *uuid.UUID { return t.driverID }

// Status returns the current trip status.
func (t *TripRequest) Status() TripStatus { return t.status }

// Origin returns the trip's origin stop.
func (t *TripRequest) Origin() Stop { return t.origin }

// Destination returns the trip's destination stop.
func (t *TripRequest) Destination() Stop { return t.destination }

// DistanceKm returns the straight-line distance between the endpoints.
func (t *TripRequest) DistanceKm() float64 { return t.distanceKm }

// Passengers returns the requested seat count.
func (t *TripRequest) Passengers() int { return t.passengers }

// StandardFareCents returns the formula fare in céntimos.
func (t *TripRequest) StandardFareCents() int64 { return t.standardFareCents }

// AgreedFareCents returns the negotiated fare in céntimos, or nil when the
// standard fare applies.
func (t *TripRequest) AgreedFareCents() *int64 { return t.agreedFareCents }

// FareCents returns the fare that applies to the trip: the agreed fare when
// one was negotiated, otherwise the standard fare.
func (t *TripRequest) FareCents() int64 {
	if t.agreedFareCents != nil {
		return *t.agreedFareCents
	}
	return t.standardFareCents
}

// Currency returns the currency code.
func (t *TripRequest) Currency() string { return t.currency }

// AcceptedAt returns the time a driver accepted the request.
func (t *TripRequest) AcceptedAt() *time.Time { return t.acceptedAt }

// StartedAt returns the time the trip started.
func (t *TripRequest) StartedAt() *time.Time { return t.startedAt }

// CompletedAt returns the time the trip completed.
func (t *TripRequest) CompletedAt() *time.Time { return t.completedAt }

// CancelledAt returns the time the request was cancelled.
func (t *TripRequest) CancelledAt() *time.Time { return t.cancelledAt }

// CancelNote returns the cancellation reason.
func (t *TripRequest) CancelNote() string { return t.cancelNote }

// Version returns the entity version for optimistic locking.
func (t *TripRequest) Version() int64 { return t.version }

// CreatedAt returns the creation timestamp.
func (t *TripRequest) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (t *TripRequest) UpdatedAt() time.Time { return t.updatedAt }

// --- Behavior ---

// Accept transitions the request from pendiente to aceptada with the given
// driver and the fare both sides settled on.
func (t *TripRequest) Accept(driverID uuid.UUID, fareCents int64) error {
	if !t.status.CanTransitionTo(StatusAccepted) {
		return shared.NewInvalidStateError(string(t.status), string(StatusAccepted))
	}
	if driverID == uuid.Nil {
		return shared.NewValidationError("driver ID is required")
	}
	if fareCents <= 0 {
		return shared.NewValidationError("fare must be positive")
	}
	now := time.Now().UTC()
	t.driverID = &driverID
	if fareCents != t.standardFareCents {
		t.agreedFareCents = &fareCents
	}
	t.status = StatusAccepted
	t.acceptedAt = &now
	t.updatedAt = now
	return nil
}

// Start transitions the request from aceptada to en_curso.
func (t *TripRequest) Start() error {
	if !t.status.CanTransitionTo(StatusInProgress) {
		return shared.NewInvalidStateError(string(t.status), string(StatusInProgress))
	}
	now := time.Now().UTC()
	t.status = StatusInProgress
	t.startedAt = &now
	t.updatedAt = now
	return nil
}

// Complete transitions the request from en_curso to completada.
func (t *TripRequest) Complete() error {
	if !t.status.CanTransitionTo(StatusCompleted) {
		return shared.NewInvalidStateError(string(t.status), string(StatusCompleted))
	}
	now := time.Now().UTC()
	t.status = StatusCompleted
	t.completedAt = &now
	t.updatedAt = now
	return nil
}

// Cancel transitions the request to cancelada if it has not started yet.
func (t *TripRequest) Cancel(reason string) error {
	if !t.status.CanBeCancelled() {
		return shared.NewInvalidStateError(string(t.status), string(StatusCancelled))
	}
	now := time.Now().UTC()
	t.status = StatusCancelled
	t.cancelNote = reason
	t.cancelledAt = &now
	t.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (t *TripRequest) IncrementVersion() {
	t.version++
	t.updatedAt = time.Now().UTC()
}
