package trip

import (
	"context"

	"github.com/google/uuid"
)

// TripRequestRepository defines the persistence contract for trip request aggregates.
type TripRequestRepository interface {
	// FindByID retrieves a trip request by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*TripRequest, error)

	// FindByNumber retrieves a trip request by its human-readable number.
	FindByNumber(ctx context.Context, number string) (*TripRequest, error)

	// ListPending retrieves all trip requests still waiting for a driver.
	ListPending(ctx context.Context) ([]*TripRequest, error)

	// FindByPassengerID retrieves trips requested by a passenger with pagination.
	FindByPassengerID(ctx context.Context, passengerID uuid.UUID, page, limit int) ([]*TripRequest, int64, error)

	// FindActiveByDriverID retrieves a driver's accepted and in-progress trips.
	FindActiveByDriverID(ctx context.Context, driverID uuid.UUID) ([]*TripRequest, error)

	// CountByStatus returns trip counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new trip request.
	Save(ctx context.Context, req *TripRequest) error

	// Update persists changes to an existing trip request with optimistic locking.
	Update(ctx context.Context, req *TripRequest) error
}

// CounterofferRepository defines the persistence contract for counteroffers.
type CounterofferRepository interface {
	// FindByID retrieves a counteroffer by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Counteroffer, error)

	// FindByTripRequestID retrieves all counteroffers for a trip request.
	FindByTripRequestID(ctx context.Context, tripRequestID uuid.UUID) ([]*Counteroffer, error)

	// Save persists a new counteroffer.
	Save(ctx context.Context, offer *Counteroffer) error

	// Update persists changes to an existing counteroffer.
	Update(ctx context.Context, offer *Counteroffer) error
}
