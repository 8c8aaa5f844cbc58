// Package events defines the topics and payloads of the trip event bus and
// the consumers this service runs.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics this service publishes to or consumes from.
const (
	TopicTripEvents       = "trip.events"
	TopicSettlementEvents = "settlement.events"
)

// Event types on the trip topic.
const (
	TripRequested      = "trip.requested"
	TripAccepted       = "trip.accepted"
	TripCounteroffered = "trip.counteroffered"
	TripStarted        = "trip.started"
	TripCompleted      = "trip.completed"
	TripCancelled      = "trip.cancelled"
)

// Event types consumed from the settlement topic.
const (
	SettlementConfirmed = "settlement.confirmed"
)

// TripRequestedEvent is published when a passenger creates a trip request.
type TripRequestedEvent struct {
	TripRequestID uuid.UUID `json:"trip_request_id"`
	RequestNumber string    `json:"request_number"`
	PassengerID   uuid.UUID `json:"passenger_id"`
	Origin        string    `json:"origen"`
	Destination   string    `json:"destino"`
	DistanceKm    float64   `json:"distancia_km"`
	Passengers    int       `json:"pasajeros"`
	FareCents     int64     `json:"fare_cents"`
	Currency      string    `json:"currency"`
	RequestedAt   time.Time `json:"requested_at"`
}

// TripAcceptedEvent is published when a driver takes a trip request.
type TripAcceptedEvent struct {
	TripRequestID uuid.UUID `json:"trip_request_id"`
	DriverID      uuid.UUID `json:"driver_id"`
	FareCents     int64     `json:"fare_cents"`
	AcceptedAt    time.Time `json:"accepted_at"`
}

// TripCounterofferedEvent is published when a driver proposes a different fare.
type TripCounterofferedEvent struct {
	TripRequestID    uuid.UUID `json:"trip_request_id"`
	CounterofferID   uuid.UUID `json:"counteroffer_id"`
	DriverID         uuid.UUID `json:"driver_id"`
	OfferedFareCents int64     `json:"offered_fare_cents"`
}

// TripStartedEvent is published when the driver starts the trip.
type TripStartedEvent struct {
	TripRequestID uuid.UUID `json:"trip_request_id"`
	StartedAt     time.Time `json:"started_at"`
}

// TripCompletedEvent is published when a trip finishes.
type TripCompletedEvent struct {
	TripRequestID uuid.UUID `json:"trip_request_id"`
	FareCents     int64     `json:"fare_cents"`
	CompletedAt   time.Time `json:"completed_at"`
}

// TripCancelledEvent is published when a request is cancelled before starting.
type TripCancelledEvent struct {
	TripRequestID uuid.UUID `json:"trip_request_id"`
	Reason        string    `json:"reason"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

// SettlementConfirmedEvent arrives from the payments service once the fare
// for an in-progress trip has been settled.
type SettlementConfirmedEvent struct {
	TripRequestID uuid.UUID `json:"trip_request_id"`
	SettlementID  uuid.UUID `json:"settlement_id"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
}
