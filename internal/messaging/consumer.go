package messaging

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/logitrack/services/warehouse/config"
)

// MessageProcessor handles one received message to completion, including all
// side effects and retries, before the consumer moves to the next message in
// the session
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, queueName string, message *azservicebus.ReceivedMessage) error
}

// Consumer consumes session-enabled Service Bus queues. Sessions are keyed by
// order id, so messages for one order are always handled in the order they
// were produced; a slow downstream call throttles only that session.
type Consumer struct {
	client *azservicebus.Client
}

// NewConsumer creates a Service Bus consumer
func NewConsumer(cfg config.AzureConfig) (*Consumer, error) {
	client, err := azservicebus.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}
	return &Consumer{client: client}, nil
}

// ConsumeQueue accepts sessions from the queue until the context is
// cancelled, handling each session in its own goroutine
func (c *Consumer) ConsumeQueue(ctx context.Context, queueName string, processor MessageProcessor) error {
	log.Info().Str("queue", queueName).Msg("Starting session consumer")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		sessionReceiver, err := c.client.AcceptNextSessionForQueue(ctx, queueName, nil)
		if err != nil {
			var sbErr *azservicebus.Error
			if errors.As(err, &sbErr) && sbErr.Code == azservicebus.CodeTimeout {
				log.Debug().Str("queue", queueName).Msg("No session available, waiting...")
				select {
				case <-time.After(2 * time.Second):
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return errors.Wrapf(err, "failed to accept session on %s", queueName)
		}

		log.Info().
			Str("queue", queueName).
			Str("session", sessionReceiver.SessionID()).
			Msg("Session received")

		go c.handleSession(ctx, queueName, sessionReceiver, processor)
	}
}

// handleSession drains one session, strictly one message at a time
func (c *Consumer) handleSession(ctx context.Context, queueName string, receiver *azservicebus.SessionReceiver, processor MessageProcessor) {
	defer func() {
		log.Debug().Str("session", receiver.SessionID()).Msg("Closing session")
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Str("session", receiver.SessionID()).Msg("Error closing session")
		}
	}()

	for {
		messages, err := receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Str("session", receiver.SessionID()).Msg("Error receiving messages")
			}
			return
		}

		if len(messages) == 0 {
			// No more messages in this session
			return
		}

		for _, message := range messages {
			err := processor.ProcessMessage(ctx, queueName, message)
			if err != nil {
				// Processing errors are handled (logged, history-recorded)
				// inside the processor; an error here means the message could
				// not be handled at all, so return it to the queue.
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("Error processing message")
				if aerr := receiver.AbandonMessage(ctx, message, nil); aerr != nil {
					log.Error().Err(aerr).Str("message_id", message.MessageID).Msg("Failed to abandon message")
				}
				continue
			}

			if cerr := receiver.CompleteMessage(ctx, message, nil); cerr != nil {
				log.Error().Err(cerr).Str("message_id", message.MessageID).Msg("Failed to complete message")
			}
		}
	}
}
