package application

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TransPort-Lima/service-rides/internal/events"
	"github.com/TransPort-Lima/service-rides/internal/kafka"
)

// SettlementEventConsumer listens to settlement events and completes the
// corresponding trips.
type SettlementEventConsumer struct {
	consumer *kafka.Consumer
	service  *RideService
	logger   *zap.Logger
}

// NewSettlementEventConsumer creates a new SettlementEventConsumer.
func NewSettlementEventConsumer(
	brokers []string,
	groupID string,
	service *RideService,
	logger *zap.Logger,
) *SettlementEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicSettlementEvents, logger)
	return &SettlementEventConsumer{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming settlement events. This blocks until the context is cancelled.
func (c *SettlementEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *SettlementEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *SettlementEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var cloudEvent kafka.CloudEvent
	if err := json.Unmarshal(msg.Value, &cloudEvent); err != nil {
		c.logger.Error("failed to parse cloud event from settlement topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case events.SettlementConfirmed:
		return c.handleSettlementConfirmed(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled settlement event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *SettlementEventConsumer) handleSettlementConfirmed(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt events.SettlementConfirmedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse SettlementConfirmedEvent data",
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing settlement confirmed event",
		zap.String("trip_request_id", evt.TripRequestID.String()),
		zap.String("settlement_id", evt.SettlementID.String()),
	)

	if _, err := c.service.CompleteTrip(ctx, evt.TripRequestID); err != nil {
		c.logger.Error("failed to complete trip after settlement",
			zap.String("trip_request_id", evt.TripRequestID.String()),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("trip completed after settlement",
		zap.String("trip_request_id", evt.TripRequestID.String()),
	)
	return nil
}
