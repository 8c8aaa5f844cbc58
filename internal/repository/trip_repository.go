package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/TransPort-Lima/service-rides/internal/domain/shared"
	tripDomain "github.com/TransPort-Lima/service-rides/internal/domain/trip"
)

// TripRequestModel is the GORM model for the trip_requests table.
type TripRequestModel struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RequestNumber     string     `gorm:"uniqueIndex;not null;size:20"`
	PassengerID       uuid.UUID  `gorm:"type:uuid;index;not null"`
	DriverID          *uuid.UUID `gorm:"type:uuid;index"`
	Status            string     `gorm:"not null;size:30;index"`
	OriginName        string     `gorm:"not null;size:120"`
	OriginLat         float64    `gorm:"not null"`
	OriginLng         float64    `gorm:"not null"`
	DestinationName   string     `gorm:"not null;size:120"`
	DestinationLat    float64    `gorm:"not null"`
	DestinationLng    float64    `gorm:"not null"`
	DistanceKm        float64    `gorm:"not null"`
	Passengers        int        `gorm:"not null;default:1"`
	StandardFareCents int64      `gorm:"not null"`
	AgreedFareCents   *int64     `gorm:""`
	Currency          string     `gorm:"not null;size:3;default:'PEN'"`
	AcceptedAt        *time.Time `gorm:""`
	StartedAt         *time.Time `gorm:""`
	CompletedAt       *time.Time `gorm:""`
	CancelledAt       *time.Time `gorm:""`
	CancelNote        string     `gorm:"size:500"`
	Version           int64      `gorm:"not null;default:1"`
	CreatedAt         time.Time  `gorm:"not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (TripRequestModel) TableName() string {
	return "trip_requests"
}

// CounterofferModel is the GORM model for the counteroffers table.
type CounterofferModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	TripRequestID    uuid.UUID `gorm:"type:uuid;index;not null"`
	DriverID         uuid.UUID `gorm:"type:uuid;index;not null"`
	OfferedFareCents int64     `gorm:"not null"`
	Message          string    `gorm:"size:500"`
	Status           string    `gorm:"not null;size:30"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (CounterofferModel) TableName() string {
	return "counteroffers"
}

// GormTripRequestRepository is the GORM-based implementation of TripRequestRepository.
type GormTripRequestRepository struct {
	db *gorm.DB
}

// NewGormTripRequestRepository creates a new GormTripRequestRepository.
func NewGormTripRequestRepository(db *gorm.DB) *GormTripRequestRepository {
	return &GormTripRequestRepository{db: db}
}

// FindByID retrieves a trip request by its unique identifier.
func (r *GormTripRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*tripDomain.TripRequest, error) {
	var model TripRequestModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("TripRequest", id.String())
		}
		return nil, fmt.Errorf("failed to find trip request by ID: %w", err)
	}
	return toDomainTripRequest(&model), nil
}

// FindByNumber retrieves a trip request by its request number.
func (r *GormTripRequestRepository) FindByNumber(ctx context.Context, number string) (*tripDomain.TripRequest, error) {
	var model TripRequestModel
	if err := r.db.WithContext(ctx).Where("request_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("TripRequest", number)
		}
		return nil, fmt.Errorf("failed to find trip request by number: %w", err)
	}
	return toDomainTripRequest(&model), nil
}

// ListPending retrieves all trip requests still waiting for a driver.
func (r *GormTripRequestRepository) ListPending(ctx context.Context) ([]*tripDomain.TripRequest, error) {
	var models []TripRequestModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(tripDomain.StatusPending)).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending trip requests: %w", err)
	}

	requests := make([]*tripDomain.TripRequest, len(models))
	for i, m := range models {
		requests[i] = toDomainTripRequest(&m)
	}
	return requests, nil
}

// FindByPassengerID retrieves trips requested by a passenger with pagination.
func (r *GormTripRequestRepository) FindByPassengerID(ctx context.Context, passengerID uuid.UUID, page, limit int) ([]*tripDomain.TripRequest, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&TripRequestModel{}).Where("passenger_id = ?", passengerID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count passenger trips: %w", err)
	}

	var models []TripRequestModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("passenger_id = ?", passengerID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find passenger trips: %w", err)
	}

	requests := make([]*tripDomain.TripRequest, len(models))
	for i, m := range models {
		requests[i] = toDomainTripRequest(&m)
	}
	return requests, total, nil
}

// FindActiveByDriverID retrieves a driver's accepted and in-progress trips.
func (r *GormTripRequestRepository) FindActiveByDriverID(ctx context.Context, driverID uuid.UUID) ([]*tripDomain.TripRequest, error) {
	var models []TripRequestModel
	if err := r.db.WithContext(ctx).
		Where("driver_id = ? AND status IN ?", driverID,
			[]string{string(tripDomain.StatusAccepted), string(tripDomain.StatusInProgress)}).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find active driver trips: %w", err)
	}

	requests := make([]*tripDomain.TripRequest, len(models))
	for i, m := range models {
		requests[i] = toDomainTripRequest(&m)
	}
	return requests, nil
}

// CountByStatus returns trip counts grouped by status (admin).
func (r *GormTripRequestRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&TripRequestModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new trip request.
func (r *GormTripRequestRepository) Save(ctx context.Context, req *tripDomain.TripRequest) error {
	if err := r.db.WithContext(ctx).Create(toTripRequestModel(req)).Error; err != nil {
		return fmt.Errorf("failed to save trip request: %w", err)
	}
	return nil
}

// Update persists changes to an existing trip request with optimistic locking.
func (r *GormTripRequestRepository) Update(ctx context.Context, req *tripDomain.TripRequest) error {
	model := toTripRequestModel(req)

	// Only update if the version matches (current version - 1, IncrementVersion was called)
	expectedVersion := req.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&TripRequestModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"driver_id":         model.DriverID,
			"status":            model.Status,
			"agreed_fare_cents": model.AgreedFareCents,
			"accepted_at":       model.AcceptedAt,
			"started_at":        model.StartedAt,
			"completed_at":      model.CompletedAt,
			"cancelled_at":      model.CancelledAt,
			"cancel_note":       model.CancelNote,
			"version":           model.Version,
			"updated_at":        model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update trip request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("trip request was modified by another transaction")
	}
	return nil
}

// GormCounterofferRepository is the GORM-based implementation of CounterofferRepository.
type GormCounterofferRepository struct {
	db *gorm.DB
}

// NewGormCounterofferRepository creates a new GormCounterofferRepository.
func NewGormCounterofferRepository(db *gorm.DB) *GormCounterofferRepository {
	return &GormCounterofferRepository{db: db}
}

// FindByID retrieves a counteroffer by its unique identifier.
func (r *GormCounterofferRepository) FindByID(ctx context.Context, id uuid.UUID) (*tripDomain.Counteroffer, error) {
	var model CounterofferModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("Counteroffer", id.String())
		}
		return nil, fmt.Errorf("failed to find counteroffer by ID: %w", err)
	}
	return toDomainCounteroffer(&model), nil
}

// FindByTripRequestID retrieves all counteroffers for a trip request.
func (r *GormCounterofferRepository) FindByTripRequestID(ctx context.Context, tripRequestID uuid.UUID) ([]*tripDomain.Counteroffer, error) {
	var models []CounterofferModel
	if err := r.db.WithContext(ctx).
		Where("trip_request_id = ?", tripRequestID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find counteroffers: %w", err)
	}

	offers := make([]*tripDomain.Counteroffer, len(models))
	for i, m := range models {
		offers[i] = toDomainCounteroffer(&m)
	}
	return offers, nil
}

// Save persists a new counteroffer.
func (r *GormCounterofferRepository) Save(ctx context.Context, offer *tripDomain.Counteroffer) error {
	if err := r.db.WithContext(ctx).Create(toCounterofferModel(offer)).Error; err != nil {
		return fmt.Errorf("failed to save counteroffer: %w", err)
	}
	return nil
}

// Update persists changes to an existing counteroffer.
func (r *GormCounterofferRepository) Update(ctx context.Context, offer *tripDomain.Counteroffer) error {
	result := r.db.WithContext(ctx).
		Model(&CounterofferModel{}).
		Where("id = ?", offer.ID()).
		Updates(map[string]interface{}{
			"status":     string(offer.Status()),
			"updated_at": offer.UpdatedAt(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update counteroffer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("Counteroffer", offer.ID().String())
	}
	return nil
}

// --- Conversion Helpers ---

func toTripRequestModel(req *tripDomain.TripRequest) *TripRequestModel {
	origin := req.Origin()
	dest := req.Destination()
	return &TripRequestModel{
		ID:                req.ID(),
		RequestNumber:     req.RequestNumber(),
		PassengerID:       req.PassengerID(),
		DriverID:          req.DriverID(),
		Status:            string(req.Status()),
		OriginName:        origin.Name,
		OriginLat:         origin.Lat,
		OriginLng:         origin.Lng,
		DestinationName:   dest.Name,
		DestinationLat:    dest.Lat,
		DestinationLng:    dest.Lng,
		DistanceKm:        req.DistanceKm(),
		Passengers:        req.Passengers(),
		StandardFareCents: req.StandardFareCents(),
		AgreedFareCents:   req.AgreedFareCents(),
		Currency:          req.Currency(),
		AcceptedAt:        req.AcceptedAt(),
		StartedAt:         req.StartedAt(),
		CompletedAt:       req.CompletedAt(),
		CancelledAt:       req.CancelledAt(),
		CancelNote:        req.CancelNote(),
		Version:           req.Version(),
		CreatedAt:         req.CreatedAt(),
		UpdatedAt:         req.UpdatedAt(),
	}
}

func toDomainTripRequest(m *TripRequestModel) *tripDomain.TripRequest {
	return tripDomain.ReconstructTripRequest(
		m.ID,
		m.RequestNumber,
		m.PassengerID,
		m.DriverID,
		tripDomain.TripStatus(m.Status),
		tripDomain.Stop{Name: m.OriginName, Lat: m.OriginLat, Lng: m.OriginLng},
		tripDomain.Stop{Name: m.DestinationName, Lat: m.DestinationLat, Lng: m.DestinationLng},
		m.DistanceKm,
		m.Passengers,
		m.StandardFareCents,
		m.AgreedFareCents,
		m.Currency,
		m.AcceptedAt,
		m.StartedAt,
		m.CompletedAt,
		m.CancelledAt,
		m.CancelNote,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
}

func toCounterofferModel(offer *tripDomain.Counteroffer) *CounterofferModel {
	return &CounterofferModel{
		ID:               offer.ID(),
		TripRequestID:    offer.TripRequestID(),
		DriverID:         offer.DriverID(),
		OfferedFareCents: offer.OfferedFareCents(),
		Message:          offer.Message(),
		Status:           string(offer.Status()),
		CreatedAt:        offer.CreatedAt(),
		UpdatedAt:        offer.UpdatedAt(),
	}
}

func toDomainCounteroffer(m *CounterofferModel) *tripDomain.Counteroffer {
	return tripDomain.ReconstructCounteroffer(
		m.ID,
		m.TripRequestID,
		m.DriverID,
		m.OfferedFareCents,
		m.Message,
		tripDomain.CounterofferStatus(m.Status),
		m.CreatedAt,
		m.UpdatedAt,
	)
}
