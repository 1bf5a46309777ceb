package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
)

type capturePublisher struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (c *capturePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

type MockCRM struct {
	mock.Mock
}

func (m *MockCRM) SyncLead(ctx context.Context, payload LeadSyncPayload) error {
	return m.Called(ctx, payload).Error(0)
}

type countingRecorder struct{ n int }

func (c *countingRecorder) RecordCRMSyncError(string) { c.n++ }

func sampleLead() *entity.Lead {
	return &entity.Lead{
		ID:           "lead-1",
		Email:        "sarah@startup.com",
		FirstName:    "Sarah",
		Company:      "TechStartup Inc",
		InterestedIn: entity.ServiceLinkedInPresence,
		Audience:     entity.AudienceB2BFounder,
		Score:        75,
		Tier:         entity.TierWarm,
		Status:       entity.StatusActive,
		SequenceStep: 1,
	}
}

func TestPublishLeadSyncUsesCRMTopology(t *testing.T) {
	pub := &capturePublisher{}
	p := NewProducer(pub)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	payload := PayloadFromLead(EventLeadEnrolled, sampleLead(), at)
	require.NoError(t, p.PublishLeadSync(context.Background(), payload))

	assert.Equal(t, ExchangeName, pub.exchange)
	assert.Equal(t, RoutingKey, pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, string(EventLeadEnrolled), pub.msg.Type)

	var got LeadSyncPayload
	require.NoError(t, json.Unmarshal(pub.msg.Body, &got))
	assert.Equal(t, "sarah@startup.com", got.Email)
	assert.Equal(t, "warm", got.Tier)
	assert.Equal(t, "linkedin_presence", got.InterestedIn)
	assert.True(t, at.Equal(got.OccurredAt))
}

func TestPublishLeadSyncWrapsBrokerError(t *testing.T) {
	pub := &capturePublisher{err: errors.New("channel closed")}
	err := NewProducer(pub).PublishLeadSync(context.Background(), PayloadFromLead(EventLeadEnrolled, sampleLead(), time.Now()))
	assert.ErrorContains(t, err, "channel closed")
}

func TestWorkerHandle(t *testing.T) {
	body, err := json.Marshal(PayloadFromLead(EventStepDispatched, sampleLead(), time.Now()))
	require.NoError(t, err)

	t.Run("success acks", func(t *testing.T) {
		crm := &MockCRM{}
		crm.On("SyncLead", mock.Anything, mock.MatchedBy(func(p LeadSyncPayload) bool {
			return p.LeadID == "lead-1" && p.Event == EventStepDispatched
		})).Return(nil).Once()

		w := &Worker{CRM: crm, Log: logger.Discard()}
		assert.Equal(t, ack, w.handle(context.Background(), body, false))
		crm.AssertExpectations(t)
	})

	t.Run("malformed body is dead-lettered without calling the crm", func(t *testing.T) {
		crm := &MockCRM{}
		w := &Worker{CRM: crm, Log: logger.Discard()}

		assert.Equal(t, deadLetter, w.handle(context.Background(), []byte("{not json"), false))
		assert.Equal(t, deadLetter, w.handle(context.Background(), []byte(`{"event":"lead_enrolled"}`), false))
		crm.AssertNotCalled(t, "SyncLead", mock.Anything, mock.Anything)
	})

	t.Run("failure retries once then dead-letters", func(t *testing.T) {
		crm := &MockCRM{}
		crm.On("SyncLead", mock.Anything, mock.Anything).Return(errors.New("attio 503"))
		rec := &countingRecorder{}
		w := &Worker{CRM: crm, Errors: rec, Log: logger.Discard()}

		assert.Equal(t, retry, w.handle(context.Background(), body, false))
		assert.Equal(t, deadLetter, w.handle(context.Background(), body, true))
		assert.Equal(t, 2, rec.n)
	})
}
