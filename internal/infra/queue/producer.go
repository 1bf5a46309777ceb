package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/zag-leads/internal/entity"
)

type SyncEvent string

const (
	EventLeadEnrolled     SyncEvent = "lead_enrolled"
	EventStepDispatched   SyncEvent = "step_dispatched"
	EventLeadUnsubscribed SyncEvent = "lead_unsubscribed"
	EventLeadEngaged      SyncEvent = "lead_engaged"
)

// LeadSyncPayload is the CRM-facing snapshot of a lead plus the event that
// triggered the sync.
type LeadSyncPayload struct {
	Event        SyncEvent `json:"event"`
	LeadID       string    `json:"lead_id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Company      string    `json:"company,omitempty"`
	Title        string    `json:"title,omitempty"`
	LinkedInURL  string    `json:"linkedin_url,omitempty"`
	Source       string    `json:"source,omitempty"`
	InterestedIn string    `json:"interested_in,omitempty"`
	Audience     string    `json:"audience,omitempty"`
	Score        int       `json:"score"`
	Tier         string    `json:"tier"`
	Status       string    `json:"status"`
	SequenceStep int       `json:"sequence_step"`

	StepName  string `json:"step_name,omitempty"`
	Channel   string `json:"channel,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Subject   string `json:"subject,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

func PayloadFromLead(event SyncEvent, l *entity.Lead, at time.Time) LeadSyncPayload {
	return LeadSyncPayload{
		Event:        event,
		LeadID:       l.ID,
		Email:        l.Email,
		FirstName:    l.FirstName,
		LastName:     l.LastName,
		Company:      l.Company,
		Title:        l.Title,
		LinkedInURL:  l.LinkedInURL,
		Source:       l.Source,
		InterestedIn: string(l.InterestedIn),
		Audience:     string(l.Audience),
		Score:        l.Score,
		Tier:         string(l.Tier),
		Status:       string(l.Status),
		SequenceStep: l.SequenceStep,
		OccurredAt:   at.UTC(),
	}
}

type QueueProducerInterface interface {
	PublishLeadSync(ctx context.Context, payload LeadSyncPayload) error
}

// Publisher is the part of *amqp.Channel the producer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQProducer struct {
	Ch Publisher
}

func NewProducer(ch Publisher) *RabbitMQProducer {
	return &RabbitMQProducer{Ch: ch}
}

func (p *RabbitMQProducer) PublishLeadSync(ctx context.Context, payload LeadSyncPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("queue: encode payload: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    fmt.Sprintf("%s:%s:%d", payload.Event, payload.LeadID, payload.OccurredAt.UnixNano()),
			Timestamp:    payload.OccurredAt,
			Type:         string(payload.Event),
		},
	)
	if err != nil {
		return fmt.Errorf("queue: publish %s for %s: %w", payload.Event, payload.LeadID, err)
	}
	return nil
}
