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

const defaultSource = "landing_page"

type EnrollLeadUseCase struct {
	Store   LeadStore
	Catalog *sequence.Catalog
	Queue   QueueProducerInterface
	Metrics Metrics
	Log     *logger.Logger
	Now     func() time.Time
}

func NewEnrollLeadUseCase(
	store LeadStore,
	catalog *sequence.Catalog,
	producer QueueProducerInterface,
	metrics Metrics,
	log *logger.Logger,
) *EnrollLeadUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &EnrollLeadUseCase{
		Store:   store,
		Catalog: catalog,
		Queue:   producer,
		Metrics: metrics,
		Log:     log,
		Now:     time.Now,
	}
}

// Execute validates attrs and merges them into the store. New leads start the
// sequence for their interest right away; re-submissions keep their position
// unless the declared interest changed.
func (uc *EnrollLeadUseCase) Execute(ctx context.Context, attrs entity.LeadAttributes) (*EnrollLeadOutput, error) {
	attrs = normalizeAttributes(attrs)
	if errs := ValidateLeadAttributes(attrs); len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	now := uc.Now().UTC()
	restarted := false

	lead, created, err := uc.Store.Upsert(ctx, attrs, func(l, prev *entity.Lead) error {
		restarted = false
		if prev == nil {
			if l.Source == "" {
				l.Source = defaultSource
			}
			l.Status = entity.StatusActive
			enroll(l, uc.Catalog, l.CreatedAt)
			return nil
		}

		interestChanged := l.InterestedIn != prev.InterestedIn
		switch prev.Status {
		case entity.StatusUnsubscribed:
			// rescored by the store, nothing else
		case entity.StatusActive, entity.StatusCompleted:
			if interestChanged {
				l.Status = entity.StatusActive
				enroll(l, uc.Catalog, now)
				restarted = true
			}
		case entity.StatusPaused:
			if interestChanged {
				enroll(l, uc.Catalog, now)
				restarted = true
			}
		default:
			l.Status = entity.StatusActive
			enroll(l, uc.Catalog, now)
			restarted = true
		}
		return nil
	})
	if err != nil {
		return nil, storeError("enroll lead", err)
	}

	if created {
		uc.Metrics.RecordEnrollment(string(lead.Tier))
	}
	uc.Log.LeadEnrolled(lead.ID, lead.Email, lead.Score, string(lead.Tier), created)
	if restarted {
		uc.Log.Info("sequence_restarted",
			slog.String("lead_id", lead.ID),
			slog.String("interested_in", string(lead.InterestedIn)),
			slog.String("audience", string(lead.Audience)),
		)
	}

	if uc.Queue != nil {
		if err := uc.Queue.PublishLeadSync(ctx, queue.PayloadFromLead(queue.EventLeadEnrolled, lead, now)); err != nil {
			uc.Log.Warn("crm_sync_publish_failed", slog.String("lead_id", lead.ID), slog.String("error", err.Error()))
		}
	}

	return &EnrollLeadOutput{Lead: lead, Created: created, Restarted: restarted}, nil
}
