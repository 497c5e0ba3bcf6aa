package filtering

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sieve/internal/broker"
	"sieve/internal/constants"
	"sieve/internal/logger"
	"sieve/pkg/models"
)

// EventPublisher announces saved filter changes to other instances.
type EventPublisher interface {
	PublishFilterEvent(ctx context.Context, action, filterID string) error
}

type ConfigEventProducer struct {
	producer broker.Producer
	topic    string
}

func NewConfigEventProducer(producer broker.Producer, topic string) *ConfigEventProducer {
	return &ConfigEventProducer{
		producer: producer,
		topic:    topic,
	}
}

func (p *ConfigEventProducer) PublishFilterEvent(ctx context.Context, action, filterID string) error {
	if p.producer == nil || p.topic == "" {
		return nil
	}

	event := models.ConfigUpdateEvent{
		EventType: models.EventTypeFilterUpdated,
		FilterID:  filterID,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}

	payload, err := eventPayload(event)
	if err != nil {
		return err
	}

	envelope := models.MessageEnvelope{
		ID:        uuid.New().String(),
		Source:    constants.ServiceName,
		Timestamp: event.Timestamp,
		Payload:   payload,
	}

	return p.producer.Publish(ctx, p.topic, envelope)
}

func eventPayload(event models.ConfigUpdateEvent) (map[string]interface{}, error) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config event: %w", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(eventJSON, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
	}
	return payload, nil
}

type Reloader interface {
	ReloadFilters(ctx context.Context, skipJitter ...bool) error
}

// EventHandler reloads the stream filters when a filter_updated event
// arrives on the config update topic. Other event types are ignored.
type EventHandler struct {
	reloader Reloader
	logger   logger.Logger
}

func NewEventHandler(reloader Reloader, log logger.Logger) *EventHandler {
	return &EventHandler{reloader: reloader, logger: log}
}

func (h *EventHandler) HandleConfigUpdateEvent(ctx context.Context, envelope models.MessageEnvelope) error {
	eventType, ok := envelope.Payload["event_type"].(string)
	if !ok {
		h.logger.WarnwCtx(ctx, "Config event missing event_type", "id", envelope.ID)
		return nil
	}
	if eventType != models.EventTypeFilterUpdated {
		return nil
	}

	var event models.ConfigUpdateEvent
	eventJSON, err := json.Marshal(envelope.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to unmarshal config event", "error", err, "id", envelope.ID)
		return nil
	}

	h.logger.InfowCtx(ctx, "Received config update event",
		"action", event.Action,
		"filter_id", event.FilterID,
	)

	if err := h.reloader.ReloadFilters(ctx); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to reload filters after config update", "error", err)
		return err
	}

	return nil
}
