package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"hearth/internal/logging"
)

const queueName = "chat.replies"

// ChatReply is an assistant reply heading back to a user.
type ChatReply struct {
	ConversationID string `json:"conversation_id"`
	MemberID       string `json:"member_id"`
	Channel        string `json:"channel"` // "web" or "sms"
	Message        string `json:"message"`
	HasAction      bool   `json:"has_action,omitempty"`
}

// Handler is called for each reply received.
type Handler func(ctx context.Context, msg *ChatReply) error

// Consumer consumes assistant replies from RabbitMQ.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logging.Logger
}

// New creates a new RabbitMQ consumer.
func New(rabbitMQURL string, logger *logging.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(rabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare the queue (idempotent)
	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// Set prefetch count
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	return &Consumer{
		conn:    conn,
		channel: ch,
		logger:  logger,
	}, nil
}

// Start begins consuming replies and calls the handler for each one.
func (c *Consumer) Start(ctx context.Context, handler Handler) error {
	msgs, err := c.channel.Consume(
		queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for messages on queue: %s", queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer shutting down")
			return ctx.Err()

		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}

			var msg ChatReply
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				c.logger.Error("Failed to parse reply: %v", err)
				delivery.Nack(false, false)
				continue
			}

			c.logger.Info("Delivering %s reply for conversation %s", msg.Channel, msg.ConversationID)

			if err := handler(ctx, &msg); err != nil {
				c.logger.Error("Failed to deliver reply: %v", err)
				// Requeue for retry
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
		}
	}
}

// Close cleanly shuts down the consumer.
func (c *Consumer) Close() error {
	if err := c.channel.Close(); err != nil {
		return err
	}
	return c.conn.Close()
}
