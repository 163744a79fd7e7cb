package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/logitrack/services/warehouse/config"
)

// Publisher sends messages to a Service Bus queue. Messages carry a session
// ID (the order id) so consumers see per-order sequencing.
type Publisher interface {
	Publish(ctx context.Context, body interface{}, sessionID string) error
	Close() error
}

type serviceBusPublisher struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// mockPublisher is a mock implementation for local development
type mockPublisher struct {
	queueName string
}

// NewPublisher creates a Service Bus publisher for the given queue. With an
// empty connection string it returns a mock that only logs, for local runs.
func NewPublisher(cfg config.AzureConfig, queueName string) (Publisher, error) {
	if cfg.ConnectionString == "" {
		log.Warn().Str("queue", queueName).Msg("No Service Bus connection string, using mock publisher")
		return &mockPublisher{queueName: queueName}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(queueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusPublisher{
		client:    client,
		sender:    sender,
		queueName: queueName,
	}, nil
}

// Publish sends a message to the queue with the given session ID
func (p *serviceBusPublisher) Publish(ctx context.Context, body interface{}, sessionID string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message body")
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"source": "warehouse-adapter",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}
	if sessionID != "" {
		msg.SessionID = &sessionID
	}

	return p.sender.SendMessage(ctx, msg, nil)
}

// Close closes the sender and the underlying client
func (p *serviceBusPublisher) Close() error {
	if p.sender != nil {
		if err := p.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if p.client != nil {
		return p.client.Close(context.Background())
	}
	return nil
}

// Publish implementation for mock publisher
func (m *mockPublisher) Publish(ctx context.Context, body interface{}, sessionID string) error {
	fmt.Printf("[MOCK ServiceBus] Message sent to %s with sessionID %s: %+v\n",
		m.queueName, sessionID, body)
	return nil
}

// Close implementation for mock publisher
func (m *mockPublisher) Close() error {
	return nil
}
