package event_bus

import (
	"encoding/json"
	"fmt"
	"github.com/asaskevich/EventBus"
	"go.uber.org/zap"
)

const SpanFinishedTopic = "span_finished"

type TelemetryEventBus[EventType any] interface {
	// Subscribe registers an asynchronous handler. A transactional handler receives events one
	// at a time in publish order.
	Subscribe(topic string, handler func(event EventType) error, transactional bool) error
	Publish(topic string, event EventType) error
	// Wait blocks until every asynchronous handler has returned.
	Wait()
}

type TelemetryEventBusImpl[EventType any] struct {
	eventBus EventBus.Bus
	logger   *zap.Logger
}

func NewTelemetryEventBus[EventType any](
	eventBus EventBus.Bus,
	logger *zap.Logger,
) *TelemetryEventBusImpl[EventType] {
	return &TelemetryEventBusImpl[EventType]{
		eventBus: eventBus,
		logger:   logger,
	}
}

func (ev *TelemetryEventBusImpl[EventType]) Subscribe(
	topic string,
	handler func(event EventType) error,
	transactional bool,
) error {
	err := ev.eventBus.SubscribeAsync(
		topic,
		func(arg string) {
			var event EventType
			if err := json.Unmarshal([]byte(arg), &event); err != nil {
				ev.logger.Error(
					"Failed to unmarshal event during subscription of topic",
					zap.String("topic", topic),
					zap.Error(err),
				)
				return
			}
			if err := handler(event); err != nil {
				ev.logger.Error(
					"Failed to handle event during subscription of topic",
					zap.String("topic", topic),
					zap.Error(err),
				)
			}
		},
		transactional,
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return nil
}

// Publish serialises the event so subscribers never share memory with the publisher.
func (ev *TelemetryEventBusImpl[EventType]) Publish(topic string, event EventType) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event during publishing of topic %s: %w", topic, err)
	}
	ev.eventBus.Publish(topic, string(eventBytes))
	return nil
}

func (ev *TelemetryEventBusImpl[EventType]) Wait() {
	ev.eventBus.WaitAsync()
}
