package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"hearth/internal/logging"
)

const queueName = "chat.requests"

// ChatRequest matches the format published by the gateway. Kind
// "message" is a new user message; the other kinds drive the pending
// action review flow.
type ChatRequest struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	FamilyID       string `json:"family_id"`
	MemberID       string `json:"member_id"`
	Channel        string `json:"channel"` // "web" or "sms"
	Kind           string `json:"kind"`    // "message", "confirm", "cancel", "select", "edit", "clear"
	Text           string `json:"text,omitempty"`

	// Pending-action edit addressing (kinds "select" and "edit").
	Collection string `json:"collection,omitempty"`
	Index      int    `json:"index,omitempty"`
	Field      string `json:"field,omitempty"`
	Value      string `json:"value,omitempty"`
	Selected   *bool  `json:"selected,omitempty"`

	IdempotencyKey string `json:"idempotency_key"`
}

// Handler is called for each request received.
type Handler func(ctx context.Context, msg *ChatRequest) error

// Consumer consumes chat requests from RabbitMQ.
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

	// Declare the queue (idempotent - won't fail if it exists)
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

	// One request at a time keeps pending-action mutations ordered per
	// conversation.
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

// Start begins consuming requests and calls the handler for each one.
func (c *Consumer) Start(ctx context.Context, handler Handler) error {
	msgs, err := c.channel.Consume(
		queueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (we manually ack after processing)
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

			var msg ChatRequest
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				c.logger.Error("Failed to parse message: %v", err)
				// Reject without requeue - bad message format
				delivery.Nack(false, false)
				continue
			}

			c.logger.Info("Received %s request for conversation %s", msg.Kind, msg.ConversationID)

			if err := handler(ctx, &msg); err != nil {
				c.logger.Error("Failed to process message: %v", err)
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
