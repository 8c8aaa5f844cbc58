package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TransPort-Lima/service-rides/internal/catalog"
	"github.com/TransPort-Lima/service-rides/internal/domain/geo"
	"github.com/TransPort-Lima/service-rides/internal/domain/shared"
	tripDomain "github.com/TransPort-Lima/service-rides/internal/domain/trip"
	"github.com/TransPort-Lima/service-rides/internal/events"
	"github.com/TransPort-Lima/service-rides/internal/kafka"
)

const eventSource = "service-rides"

// defaultNearbyRadiusKm bounds the driver's nearby-request feed.
const defaultNearbyRadiusKm = 10.0

// EventPublisher publishes CloudEvents to the bus.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// ReserveRequest holds the data needed to create a trip request.
type ReserveRequest struct {
	Origin      string `json:"origen" binding:"required"`
	Destination string `json:"destino" binding:"required"`
	Passengers  int    `json:"pasajeros"`
}

// CounterofferRequest is a driver's alternative fare proposal.
type CounterofferRequest struct {
	FareCents int64  `json:"fare_cents" binding:"required"`
	Message   string `json:"message"`
}

// CancelRequest carries the passenger's cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// TripDTO is the response representation of a trip request.
type TripDTO struct {
	ID                uuid.UUID       `json:"id"`
	RequestNumber     string          `json:"request_number"`
	PassengerID       uuid.UUID       `json:"passenger_id"`
	DriverID          *uuid.UUID      `json:"driver_id,omitempty"`
	Status            string          `json:"status"`
	Origin            tripDomain.Stop `json:"origen"`
	Destination       tripDomain.Stop `json:"destino"`
	DistanceKm        float64         `json:"distancia_km"`
	Passengers        int             `json:"pasajeros"`
	StandardFareCents int64           `json:"standard_fare_cents"`
	AgreedFareCents   *int64          `json:"agreed_fare_cents,omitempty"`
	FareSoles         float64         `json:"fare_soles"`
	Currency          string          `json:"currency"`
	AcceptedAt        *time.Time      `json:"accepted_at,omitempty"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CancelledAt       *time.Time      `json:"cancelled_at,omitempty"`
	CancelNote        string          `json:"cancel_note,omitempty"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NearbyTripDTO is a pending trip request annotated with its distance from
// the querying driver.
type NearbyTripDTO struct {
	TripDTO
	DriverDistanceKm float64 `json:"driver_distance_km"`
}

// CounterofferDTO is the response representation of a counteroffer.
type CounterofferDTO struct {
	ID            uuid.UUID `json:"id"`
	TripRequestID uuid.UUID `json:"trip_request_id"`
	DriverID      uuid.UUID `json:"driver_id"`
	FareCents     int64     `json:"fare_cents"`
	FareSoles     float64   `json:"fare_soles"`
	Message       string    `json:"message,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// RideService is the application service orchestrating trip request use cases.
type RideService struct {
	repo     tripDomain.TripRequestRepository
	offers   tripDomain.CounterofferRepository
	pricing  tripDomain.PricingStrategy
	producer EventPublisher
	catalog  *catalog.Catalog
	logger   *zap.Logger
}

// NewRideService creates a new RideService.
func NewRideService(
	repo tripDomain.TripRequestRepository,
	offers tripDomain.CounterofferRepository,
	pricing tripDomain.PricingStrategy,
	producer EventPublisher,
	cat *catalog.Catalog,
	logger *zap.Logger,
) *RideService {
	return &RideService{
		repo:     repo,
		offers:   offers,
		pricing:  pricing,
		producer: producer,
		catalog:  cat,
		logger:   logger,
	}
}

// Reserve creates a trip request between two catalog locations.
func (s *RideService) Reserve(ctx context.Context, passengerID uuid.UUID, req ReserveRequest) (*TripDTO, error) {
	origin, ok := s.catalog.LookupByNameFold(req.Origin)
	if !ok {
		return nil, shared.NewValidationError(fmt.Sprintf("unknown origin: %s", req.Origin))
	}
	dest, ok := s.catalog.LookupByNameFold(req.Destination)
	if !ok {
		return nil, shared.NewValidationError(fmt.Sprintf("unknown destination: %s", req.Destination))
	}
	passengers := req.Passengers
	if passengers == 0 {
		passengers = 1
	}

	distanceKm := geo.Haversine(origin.Point(), dest.Point())

	fareCents, err := s.pricing.Calculate(tripDomain.PricingParams{DistanceKm: distanceKm})
	if err != nil {
		return nil, shared.NewValidationError(fmt.Sprintf("pricing error: %v", err))
	}

	trip, err := tripDomain.NewTripRequest(
		passengerID,
		tripDomain.Stop{Name: origin.Name, Lat: origin.Lat, Lng: origin.Lng},
		tripDomain.Stop{Name: dest.Name, Lat: dest.Lat, Lng: dest.Lng},
		distanceKm,
		passengers,
		fareCents,
		shared.CurrencyPEN,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, trip); err != nil {
		return nil, fmt.Errorf("failed to save trip request: %w", err)
	}

	s.publishTripRequested(ctx, trip)

	s.logger.Info("trip request created",
		zap.String("trip_request_id", trip.ID().String()),
		zap.String("request_number", trip.RequestNumber()),
		zap.String("origen", origin.Name),
		zap.String("destino", dest.Name),
	)
	return toTripDTO(trip), nil
}

// GetTrip retrieves a trip request visible to the given user.
func (s *RideService) GetTrip(ctx context.Context, userID, tripID uuid.UUID) (*TripDTO, error) {
	trip, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.PassengerID() != userID && (trip.DriverID() == nil || *trip.DriverID() != userID) {
		return nil, shared.NewForbiddenError("trip does not belong to this user")
	}
	return toTripDTO(trip), nil
}

// NearbyRequests lists pending trip requests whose origin is within radiusKm
// of the driver's position, closest first.
func (s *RideService) NearbyRequests(ctx context.Context, lat, lng, radiusKm float64) ([]NearbyTripDTO, error) {
	if err := geo.Validate(lat, lng); err != nil {
		return nil, shared.NewValidationError(err.Error())
	}
	if radiusKm <= 0 {
		radiusKm = defaultNearbyRadiusKm
	}

	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	driverPos := geo.Point{Lat: lat, Lng: lng}
	nearby := make([]NearbyTripDTO, 0, len(pending))
	for _, trip := range pending {
		origin := trip.Origin()
		d := geo.Haversine(driverPos, geo.Point{Lat: origin.Lat, Lng: origin.Lng})
		if d > radiusKm {
			continue
		}
		nearby = append(nearby, NearbyTripDTO{TripDTO: *toTripDTO(trip), DriverDistanceKm: d})
	}
	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DriverDistanceKm < nearby[j].DriverDistanceKm
	})
	return nearby, nil
}

// AcceptTrip assigns a pending trip request to a driver at the standard fare.
func (s *RideService) AcceptTrip(ctx context.Context, driverID, tripID uuid.UUID) (*TripDTO, error) {
	trip, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.PassengerID() == driverID {
		return nil, shared.NewForbiddenError("cannot accept your own trip request")
	}
	if err := trip.Accept(driverID, trip.StandardFareCents()); err != nil {
		return nil, err
	}
	trip.IncrementVersion()
	if err := s.repo.Update(ctx, trip); err != nil {
		return nil, err
	}

	s.publishTripAccepted(ctx, trip)
	return toTripDTO(trip), nil
}

// CreateCounteroffer records a driver's alternative fare for a pending request.
func (s *RideService) CreateCounteroffer(ctx context.Context, driverID, tripID uuid.UUID, req CounterofferRequest) (*CounterofferDTO, error) {
	trip, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.Status() != tripDomain.StatusPending {
		return nil, shared.NewInvalidStateError(string(trip.Status()), string(tripDomain.StatusPending))
	}
	if trip.PassengerID() == driverID {
		return nil, shared.NewForbiddenError("cannot counteroffer your own trip request")
	}

	offer, err := tripDomain.NewCounteroffer(trip.ID(), driverID, req.FareCents, req.Message)
	if err != nil {
		return nil, err
	}
	if err := s.offers.Save(ctx, offer); err != nil {
		return nil, fmt.Errorf("failed to save counteroffer: %w", err)
	}

	s.publishEvent(ctx, events.TopicTripEvents, events.TripCounteroffered, events.TripCounterofferedEvent{
		TripRequestID:    trip.ID(),
		CounterofferID:   offer.ID(),
		DriverID:         driverID,
		OfferedFareCents: offer.OfferedFareCents(),
	})
	return toCounterofferDTO(offer), nil
}

// ListCounteroffers returns the counteroffers for a passenger's trip request.
func (s *RideService) ListCounteroffers(ctx context.Context, passengerID, tripID uuid.UUID) ([]*CounterofferDTO, error) {
	trip, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.PassengerID() != passengerID {
		return nil, shared.NewForbiddenError("trip does not belong to this user")
	}
	offers, err := s.offers.FindByTripRequestID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	dtos := make([]*CounterofferDTO, len(offers))
	for i, o := range offers {
		dtos[i] = toCounterofferDTO(o)
	}
	return dtos, nil
}

// AcceptCounteroffer lets the passenger take a driver's offer. The trip is
// assigned to the offering driver at the offered fare, and the remaining
// pending offers are rejected.
func (s *RideService) AcceptCounteroffer(ctx context.Context, passengerID, offerID uuid.UUID) (*TripDTO, error) {
	offer, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	trip, err := s.repo.FindByID(ctx, offer.TripRequestID())
	if err != nil {
		return nil, err
	}
	if trip.PassengerID() != passengerID {
		return nil, shared.NewForbiddenError("trip does not belong to this user")
	}

	if err := offer.Accept(); err != nil {
		return nil, err
	}
	if err := trip.Accept(offer.DriverID(), offer.OfferedFareCents()); err != nil {
		return nil, err
	}
	trip.IncrementVersion()
	if err := s.repo.Update(ctx, trip); err != nil {
		return nil, err
	}
	if err := s.offers.Update(ctx, offer); err != nil {
		return nil, err
	}

	// Reject the remaining pending offers for this trip.
	siblings, err := s.offers.FindByTripRequestID(ctx, trip.ID())
	if err == nil {
		for _, sib := range siblings {
			if sib.ID() == offer.ID() || sib.Status() != tripDomain.OfferPending {
				continue
			}
			if err := sib.Reject(); err != nil {
				continue
			}
			if err := s.offers.Update(ctx, sib); err != nil {
				s.logger.Warn("failed to reject sibling counteroffer",
					zap.String("counteroffer_id", sib.ID().String()),
					zap.Error(err),
				)
			}
		}
	}

	s.publishTripAccepted(ctx, trip)
	return toTripDTO(trip), nil
}

// StartTrip moves an accepted trip to en_curso. Only the assigned driver may
// start it.
func (s *RideService) StartTrip(ctx context.Context, driverID, tripID uuid.UUID) (*TripDTO, error) {
	trip, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.DriverID() == nil || *trip.DriverID() != driverID {
		return nil, shared.NewForbiddenError("trip is not assigned to this driver")
	}
	if err := trip.Start(); err != nil {
		return nil, err
	}
	trip.IncrementVersion()
	if err := s.repo.Update(ctx, trip); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.TopicTripEvents, events.TripStarted, events.TripStartedEvent{
		TripRequestID: trip.ID(),
		StartedAt:     *trip.StartedAt(),
	})
	return toTripDTO(trip), nil
}

// CompleteTrip moves an in-progress trip to completada.
func (s *RideService) CompleteTrip(ctx context.Context, tripID uuid.UUID) (*TripDTO, error) {
	trip, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if err := trip.Complete(); err != nil {
		return nil, err
	}
	trip.IncrementVersion()
	if err := s.repo.Update(ctx, trip); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.TopicTripEvents, events.TripCompleted, events.TripCompletedEvent{
		TripRequestID: trip.ID(),
		FareCents:     trip.FareCents(),
		CompletedAt:   *trip.CompletedAt(),
	})
	return toTripDTO(trip), nil
}

// CancelTrip cancels a request that has not started yet. Only the requesting
// passenger may cancel.
func (s *RideService) CancelTrip(ctx context.Context, passengerID, tripID uuid.UUID, req CancelRequest) (*TripDTO, error) {
	trip, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.PassengerID() != passengerID {
		return nil, shared.NewForbiddenError("trip does not belong to this user")
	}
	if err := trip.Cancel(req.Reason); err != nil {
		return nil, err
	}
	trip.IncrementVersion()
	if err := s.repo.Update(ctx, trip); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.TopicTripEvents, events.TripCancelled, events.TripCancelledEvent{
		TripRequestID: trip.ID(),
		Reason:        req.Reason,
		CancelledAt:   *trip.CancelledAt(),
	})
	return toTripDTO(trip), nil
}

// ActiveTripsForDriver lists the driver's accepted and in-progress trips.
func (s *RideService) ActiveTripsForDriver(ctx context.Context, driverID uuid.UUID) ([]*TripDTO, error) {
	trips, err := s.repo.FindActiveByDriverID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	dtos := make([]*TripDTO, len(trips))
	for i, t := range trips {
		dtos[i] = toTripDTO(t)
	}
	return dtos, nil
}

// PassengerTrips lists a passenger's trip history with pagination.
func (s *RideService) PassengerTrips(ctx context.Context, passengerID uuid.UUID, page, limit int) (*shared.PaginatedResult[*TripDTO], error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	trips, total, err := s.repo.FindByPassengerID(ctx, passengerID, page, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]*TripDTO, len(trips))
	for i, t := range trips {
		dtos[i] = toTripDTO(t)
	}
	result := shared.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// GetTripStats returns trip counts grouped by status (admin).
func (s *RideService) GetTripStats(ctx context.Context) (map[string]int64, error) {
	return s.repo.CountByStatus(ctx)
}

// --- Event publishing ---

func (s *RideService) publishTripRequested(ctx context.Context, trip *tripDomain.TripRequest) {
	s.publishEvent(ctx, events.TopicTripEvents, events.TripRequested, events.TripRequestedEvent{
		TripRequestID: trip.ID(),
		RequestNumber: trip.RequestNumber(),
		PassengerID:   trip.PassengerID(),
		Origin:        trip.Origin().Name,
		Destination:   trip.Destination().Name,
		DistanceKm:    trip.DistanceKm(),
		Passengers:    trip.Passengers(),
		FareCents:     trip.StandardFareCents(),
		Currency:      trip.Currency(),
		RequestedAt:   trip.CreatedAt(),
	})
}

func (s *RideService) publishTripAccepted(ctx context.Context, trip *tripDomain.TripRequest) {
	s.publishEvent(ctx, events.TopicTripEvents, events.TripAccepted, events.TripAcceptedEvent{
		TripRequestID: trip.ID(),
		DriverID:      *trip.DriverID(),
		FareCents:     trip.FareCents(),
		AcceptedAt:    *trip.AcceptedAt(),
	})
}

func (s *RideService) publishEvent(ctx context.Context, topic, eventType string, data interface{}) {
	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	if err := s.producer.PublishEvent(ctx, topic, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// --- DTO mapping ---

func toTripDTO(trip *tripDomain.TripRequest) *TripDTO {
	return &TripDTO{
		ID:                trip.ID(),
		RequestNumber:     trip.RequestNumber(),
		PassengerID:       trip.PassengerID(),
		DriverID:          trip.DriverID(),
		Status:            string(trip.Status()),
		Origin:            trip.Origin(),
		Destination:       trip.Destination(),
		DistanceKm:        trip.DistanceKm(),
		Passengers:        trip.Passengers(),
		StandardFareCents: trip.StandardFareCents(),
		AgreedFareCents:   trip.AgreedFareCents(),
		FareSoles:         float64(trip.FareCents()) / 100,
		Currency:          trip.Currency(),
		AcceptedAt:        trip.AcceptedAt(),
		StartedAt:         trip.StartedAt(),
		CompletedAt:       trip.CompletedAt(),
		CancelledAt:       trip.CancelledAt(),
		CancelNote:        trip.CancelNote(),
		Version:           trip.Version(),
		CreatedAt:         trip.CreatedAt(),
		UpdatedAt:         trip.UpdatedAt(),
	}
}

func toCounterofferDTO(offer *tripDomain.Counteroffer) *CounterofferDTO {
	return &CounterofferDTO{
		ID:            offer.ID(),
		TripRequestID: offer.TripRequestID(),
		DriverID:      offer.DriverID(),
		FareCents:     offer.OfferedFareCents(),
		FareSoles:     float64(offer.OfferedFareCents()) / 100,
		Message:       offer.Message(),
		Status:        string(offer.Status()),
		CreatedAt:     offer.CreatedAt(),
	}
}
