//go:build integration

package main_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TransPort-Lima/service-rides/internal/events"
)

// TestSettlementConfirmed_CompletesTrip verifies that when a
// SettlementConfirmedEvent is published to settlement.events, the rides
// service picks it up and transitions the trip to "completada".
func TestSettlementConfirmed_CompletesTrip(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupRidesStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	// Seed a trip in "en_curso" state.
	tripID := uuid.New()
	passengerID := uuid.New()
	driverID := uuid.New()
	seedTripInProgress(t, infra.DB, tripID, passengerID, driverID)

	// Start the consumer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	// Publish SettlementConfirmedEvent.
	evt := events.SettlementConfirmedEvent{
		TripRequestID: tripID,
		SettlementID:  uuid.New(),
		AmountCents:   588,
		Currency:      "PEN",
	}
	publishTestEvent(t, infra.KafkaBrokers, events.TopicSettlementEvents,
		"service-payments", events.SettlementConfirmed, evt)

	// Assert: trip transitions to "completada".
	model := waitForTripStatus(t, infra.DB, tripID, "completada", 15*time.Second)
	assert.NotNil(t, model.CompletedAt, "completed_at should be set")
	assert.Equal(t, int64(4), model.Version)

	// Assert: TripCompletedEvent on trip.events.
	ce := consumeOneEvent(t, infra.KafkaBrokers, events.TopicTripEvents,
		events.TripCompleted, 15*time.Second)

	var completed events.TripCompletedEvent
	require.NoError(t, ce.ParseData(&completed))
	assert.Equal(t, tripID, completed.TripRequestID)
	assert.Equal(t, int64(588), completed.FareCents)
}
