package trip

import (
	"time"

	"github.com/google/uuid"

	"github.com/TransPort-Lima/service-rides/internal/domain/shared"
)

// CounterofferStatus is the state of a driver's fare counteroffer.
type CounterofferStatus string

const (
	OfferPending  CounterofferStatus = "pendiente"
	OfferAccepted CounterofferStatus = "aceptada"
	OfferRejected CounterofferStatus = "rechazada"
)

// Counteroffer is a driver's alternative fare for a pending trip request.
type Counteroffer struct {
	id               uuid.UUID
	tripRequestID    uuid.UUID
	driverID         uuid.UUID
	offeredFareCents int64
	message          string
	status           CounterofferStatus
	createdAt        time.Time
	updatedAt        time.Time
}

// NewCounteroffer creates a pending counteroffer for a trip request.
func NewCounteroffer(tripRequestID, driverID uuid.UUID, offeredFareCents int64, message string) (*Counteroffer, error) {
	if tripRequestID == uuid.Nil {
		return nil, shared.NewValidationError("trip request ID is required")
	}
	if driverID == uuid.Nil {
		return nil, shared.NewValidationError("driver ID is required")
	}
	if offeredFareCents <= 0 {
		return nil, shared.NewValidationError("offered fare must be positive")
	}
	now := time.Now().UTC()
	return &Counteroffer{
		id:               uuid.New(),
		tripRequestID:    tripRequestID,
		driverID:         driverID,
		offeredFareCents: offeredFareCents,
		message:          message,
		status:           OfferPending,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// ReconstructCounteroffer rebuilds a Counteroffer from persistence data.
func ReconstructCounteroffer(
	id, tripRequestID, driverID uuid.UUID,
	offeredFareCents int64,
	message string,
	status CounterofferStatus,
	createdAt, updatedAt time.Time,
) *Counteroffer {
	return &Counteroffer{
		id:               id,
		tripRequestID:    tripRequestID,
		driverID:         driverID,
		offeredFareCents: offeredFareCents,
		message:          message,
		status:           status,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

// ID returns the counteroffer's unique identifier.
func (c *Counteroffer) ID() uuid.UUID { return c.id }

// TripRequestID returns the trip request the offer applies to.
func (c *Counteroffer) TripRequestID() uuid.UUID { return c.tripRequestID }

// DriverID returns the offering driver's user ID.
func (c *Counteroffer) DriverID() uuid.UUID { return c.driverID }

// OfferedFareCents returns the proposed fare in céntimos.
func (c *Counteroffer) OfferedFareCents() int64 { return c.offeredFareCents }

// Message returns the driver's note to the passenger.
func (c *Counteroffer) Message() string { return c.message }

// Status returns the offer's current status.
func (c *Counteroffer) Status() CounterofferStatus { return c.status }

// CreatedAt returns the creation timestamp.
func (c *Counteroffer) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (c *Counteroffer) UpdatedAt() time.Time { return c.updatedAt }

// Accept marks the offer as accepted by the passenger.
func (c *Counteroffer) Accept() error {
	if c.status != OfferPending {
		return shared.NewInvalidStateError(string(c.status), string(OfferAccepted))
	}
	c.status = OfferAccepted
	c.updatedAt = time.Now().UTC()
	return nil
}

// Reject marks the offer as rejected.
func (c *Counteroffer) Reject() error {
	if c.status != OfferPending {
		return shared.NewInvalidStateError(string(c.status), string(OfferRejected))
	}
	c.status = OfferRejected
	c.updatedAt = time.Now().UTC()
	return nil
}
