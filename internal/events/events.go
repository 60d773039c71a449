// Package events publishes domain events after their writes commit.
// Delivery is best effort; callers log failures and carry on.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bizops-backend/internal/config"
)

type Type string

const (
	TransactionRecorded Type = "transaction.recorded"
	CreditLimitChanged  Type = "credit_limit.changed"
	RoleToggled         Type = "role.toggled"
	MemberJoined        Type = "member.joined"
	MemberApproved      Type = "member.approved"
	MemberRejected      Type = "member.rejected"
	CreditLimitBreached Type = "credit_limit.breached"
)

type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	BusinessID string    `json:"business_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// New stamps an event with a fresh ID and the current time.
func New(t Type, businessID string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		BusinessID: businessID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher is the interface used by services to publish events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// NewPublisher builds the publisher selected by cfg.Driver.
func NewPublisher(cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		return NopPublisher{}, nil
	case "kafka":
		return NewKafkaPublisher(cfg.Brokers, cfg.Topic), nil
	case "amqp":
		p, err := DialAMQP(cfg.AMQPURL, cfg.Queue)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
