package messaging

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"

	"example.com/logitrack/services/warehouse/internal/metrics"
	"example.com/logitrack/services/warehouse/internal/models"
)

// EventHandlerFunc handles one parsed warehouse event
type EventHandlerFunc func(ctx context.Context, event models.WarehouseEvent) error

// Processor is the event router: it parses inbound envelopes and dispatches
// them to the handler registered for the event type. Malformed envelopes and
// unknown event types are logged and dropped - a malformed envelope can never
// become parseable and unknown types must never crash the consumer.
type Processor struct {
	handlers map[string]EventHandlerFunc
	metrics  *metrics.Metrics
}

// NewProcessor creates an event router with no registered handlers
func NewProcessor(collector *metrics.Metrics) *Processor {
	return &Processor{
		handlers: make(map[string]EventHandlerFunc),
		metrics:  collector,
	}
}

// Register binds an event type to its handler
func (p *Processor) Register(eventType string, handler EventHandlerFunc) {
	p.handlers[eventType] = handler
}

// ProcessMessage parses the envelope and dispatches to the registered
// handler. It returns nil for dropped messages so the consumer completes
// them; requeueing cannot fix a parse failure or an unknown event type.
func (p *Processor) ProcessMessage(ctx context.Context, queueName string, message *azservicebus.ReceivedMessage) error {
	return p.process(ctx, queueName, message.Body)
}

func (p *Processor) process(ctx context.Context, queueName string, body []byte) error {
	var event models.WarehouseEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error().
			Err(err).
			Str("queue", queueName).
			Msg("Dropping malformed envelope")
		p.metrics.IncrementCounter(metrics.MessagesDropped)
		return nil
	}

	handler, ok := p.handlers[event.EventType]
	if !ok {
		log.Warn().
			Str("queue", queueName).
			Str("event_type", event.EventType).
			Str("order_id", event.OrderID).
			Msg("Dropping event with no registered handler")
		p.metrics.IncrementCounter(metrics.MessagesDropped)
		return nil
	}

	log.Info().
		Str("queue", queueName).
		Str("event_type", event.EventType).
		Str("order_id", event.OrderID).
		Msg("Processing event")

	if err := handler(ctx, event); err != nil {
		// Failures local to one order never abort processing of other
		// orders; the handler has already logged and recorded the outcome.
		log.Error().
			Err(err).
			Str("event_type", event.EventType).
			Str("order_id", event.OrderID).
			Msg("Event handler failed, requires manual intervention")
		return nil
	}

	p.metrics.IncrementCounter(metrics.MessagesProcessed)
	return nil
}
