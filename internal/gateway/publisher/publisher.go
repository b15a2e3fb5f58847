package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ChatRequestsQueue carries chat traffic from the gateway to the
// assistant service.
const ChatRequestsQueue = "chat.requests"

// ChatRequest is one unit of chat traffic. Kind "message" is a new user
// message; "confirm", "cancel", "select", "edit" and "clear" operate on
// the conversation's pending action.
type ChatRequest struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	FamilyID       string `json:"family_id"`
	MemberID       string `json:"member_id"`
	Channel        string `json:"channel"` // "web" or "sms"
	Kind           string `json:"kind"`
	Text           string `json:"text,omitempty"`

	Collection string `json:"collection,omitempty"`
	Index      int    `json:"index,omitempty"`
	Field      string `json:"field,omitempty"`
	Value      string `json:"value,omitempty"`
	Selected   *bool  `json:"selected,omitempty"`

	IdempotencyKey string `json:"idempotency_key"`
}

// Publisher handles RabbitMQ message publishing.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// New creates a new RabbitMQ publisher.
func New(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p := &Publisher{
		conn:    conn,
		channel: ch,
	}

	_, err = ch.QueueDeclare(
		ChatRequestsQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", ChatRequestsQueue, err)
	}

	return p, nil
}

// PublishRequest publishes one chat request.
func (p *Publisher) PublishRequest(ctx context.Context, msg *ChatRequest) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		"",                // exchange (default)
		ChatRequestsQueue, // routing key (queue name)
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", ChatRequestsQueue, err)
	}

	return nil
}

// Close gracefully shuts down the publisher.
func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
