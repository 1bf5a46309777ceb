package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
	"github.com/xavierca1/zag-leads/internal/infra/queue"
	"github.com/xavierca1/zag-leads/internal/sequence"
)

// LeadControlUseCase groups the operator actions on a single lead: unsubscribe,
// pause and resume.
type LeadControlUseCase struct {
	Store   LeadStore
	Catalog *sequence.Catalog
	Queue   QueueProducerInterface
	Log     *logger.Logger
	Now     func() time.Time
}

func NewLeadControlUseCase(store LeadStore, catalog *sequence.Catalog, producer QueueProducerInterface, log *logger.Logger) *LeadControlUseCase {
	if log == nil {
		log = logger.Discard()
	}
	return &LeadControlUseCase{Store: store, Catalog: catalog, Queue: producer, Log: log, Now: time.Now}
}

// Unsubscribe stops all outreach for the lead, whatever its state.
func (uc *LeadControlUseCase) Unsubscribe(ctx context.Context, id string) (*entity.Lead, error) {
	lead, err := uc.Store.Update(ctx, id, func(l *entity.Lead) error {
		l.Status = entity.StatusUnsubscribed
		l.NextActionAt = nil
		return nil
	})
	if err != nil {
		return nil, storeError("unsubscribe lead", err)
	}

	uc.Log.Info("lead_unsubscribed", slog.String("lead_id", lead.ID))
	uc.publish(ctx, queue.EventLeadUnsubscribed, lead)
	return lead, nil
}

func (uc *LeadControlUseCase) UnsubscribeByEmail(ctx context.Context, email string) (*entity.Lead, error) {
	lead, err := uc.Store.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	return uc.Unsubscribe(ctx, lead.ID)
}

// Pause holds an active lead; its next slot is kept for Resume.
func (uc *LeadControlUseCase) Pause(ctx context.Context, id string) (*entity.Lead, error) {
	lead, err := uc.Store.Update(ctx, id, func(l *entity.Lead) error {
		switch l.Status {
		case entity.StatusPaused:
			return nil
		case entity.StatusActive:
			l.Status = entity.StatusPaused
			return nil
		default:
			return invalidState(l, "paused")
		}
	})
	if err != nil {
		return nil, storeError("pause lead", err)
	}
	uc.Log.Info("lead_paused", slog.String("lead_id", lead.ID))
	return lead, nil
}

// Resume reactivates a paused lead and schedules its current step at its
// planned slot, or now if that slot has passed.
func (uc *LeadControlUseCase) Resume(ctx context.Context, id string) (*entity.Lead, error) {
	now := uc.Now().UTC()
	lead, err := uc.Store.Update(ctx, id, func(l *entity.Lead) error {
		switch l.Status {
		case entity.StatusActive:
			return nil
		case entity.StatusPaused:
		default:
			return invalidState(l, "resumed")
		}

		steps := uc.Catalog.StepsFor(l.InterestedIn, l.Audience)
		if l.SequenceStep >= len(steps) {
			l.Status = entity.StatusCompleted
			l.NextActionAt = nil
			return nil
		}
		at := anchorOf(l).Add(days(steps[l.SequenceStep].DayOffset))
		if at.Before(now) {
			at = now
		}
		l.Status = entity.StatusActive
		l.NextActionAt = &at
		return nil
	})
	if err != nil {
		return nil, storeError("resume lead", err)
	}
	uc.Log.Info("lead_resumed", slog.String("lead_id", lead.ID), slog.String("status", string(lead.Status)))
	return lead, nil
}

func (uc *LeadControlUseCase) publish(ctx context.Context, event queue.SyncEvent, lead *entity.Lead) {
	if uc.Queue == nil {
		return
	}
	if err := uc.Queue.PublishLeadSync(ctx, queue.PayloadFromLead(event, lead, uc.Now())); err != nil {
		uc.Log.Warn("crm_sync_publish_failed", slog.String("lead_id", lead.ID), slog.String("error", err.Error()))
	}
}

func invalidState(l *entity.Lead, action string) *DomainError {
	return &DomainError{
		Code:    "INVALID_STATE",
		Message: "lead " + l.ID + " is " + string(l.Status) + " and cannot be " + action,
	}
}
