package dispatch

import (
	"context"
	"fmt"

	"hearth/internal/notifier/consumer"
)

// SMSSender sends one SMS message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Pusher forwards a reply to the gateway for websocket delivery.
type Pusher interface {
	Push(ctx context.Context, reply interface{}) error
}

// Phones resolves a member id to a phone number.
type Phones interface {
	PhoneOf(ctx context.Context, memberID string) (string, error)
}

// Dispatcher routes replies to the right channel.
type Dispatcher struct {
	sms    SMSSender
	push   Pusher
	phones Phones
}

// New creates a dispatcher. sms may be nil when the SMS channel is not
// configured.
func New(sms SMSSender, push Pusher, phones Phones) *Dispatcher {
	return &Dispatcher{sms: sms, push: push, phones: phones}
}

// Dispatch delivers one reply.
func (d *Dispatcher) Dispatch(ctx context.Context, reply *consumer.ChatReply) error {
	switch reply.Channel {
	case "sms":
		if d.sms == nil {
			return fmt.Errorf("sms channel is not configured")
		}
		phone, err := d.phones.PhoneOf(ctx, reply.MemberID)
		if err != nil {
			return fmt.Errorf("failed to resolve phone for member %s: %w", reply.MemberID, err)
		}
		if phone == "" {
			return fmt.Errorf("member %s has no phone number", reply.MemberID)
		}
		return d.sms.SendSMS(ctx, phone, reply.Message)
	default:
		return d.push.Push(ctx, reply)
	}
}
