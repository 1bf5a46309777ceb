package usecase

import (
	"context"
	"time"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/infra/queue"
)

// LeadStore is implemented by leadstore.Store.
type LeadStore interface {
	Upsert(ctx context.Context, attrs entity.LeadAttributes, hook entity.UpsertHook) (*entity.Lead, bool, error)
	Update(ctx context.Context, id string, mutation entity.LeadMutation) (*entity.Lead, error)
	Get(id string) (*entity.Lead, error)
	GetByEmail(email string) (*entity.Lead, error)
	List(filter entity.LeadFilter) []*entity.Lead
}

// Deliverer sends one rendered step through its channel. It must be safe to
// call concurrently for different leads.
type Deliverer interface {
	Deliver(ctx context.Context, req DeliveryRequest) (DeliveryResult, error)
}

type QueueProducerInterface = queue.QueueProducerInterface

type Metrics interface {
	RecordEnrollment(tier string)
	RecordDispatch(channel string)
	RecordDeliveryFailure(channel string)
}

type nopMetrics struct{}

func (nopMetrics) RecordEnrollment(string)      {}
func (nopMetrics) RecordDispatch(string)        {}
func (nopMetrics) RecordDeliveryFailure(string) {}

// LifecycleConfig carries the scheduling knobs shared by the lifecycle use cases.
type LifecycleConfig struct {
	// MinStepGap is the delay used when a step's planned slot is already past.
	MinStepGap time.Duration
	// ClaimLease is how long a pending dispatch blocks a retry of the same step.
	ClaimLease  time.Duration
	Concurrency int
}

func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		MinStepGap:  24 * time.Hour,
		ClaimLease:  10 * time.Minute,
		Concurrency: 8,
	}
}

func (c LifecycleConfig) withDefaults() LifecycleConfig {
	def := DefaultLifecycleConfig()
	if c.MinStepGap <= 0 {
		c.MinStepGap = def.MinStepGap
	}
	if c.ClaimLease <= 0 {
		c.ClaimLease = def.ClaimLease
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	return c
}
