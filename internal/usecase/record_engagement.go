package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
	"github.com/xavierca1/zag-leads/internal/infra/queue"
	"github.com/xavierca1/zag-leads/internal/scoring"
)

type RecordEngagementUseCase struct {
	Store  LeadStore
	Scorer *scoring.Scorer
	Queue  QueueProducerInterface
	Log    *logger.Logger
	Now    func() time.Time
}

func NewRecordEngagementUseCase(store LeadStore, scorer *scoring.Scorer, producer QueueProducerInterface, log *logger.Logger) *RecordEngagementUseCase {
	if log == nil {
		log = logger.Discard()
	}
	return &RecordEngagementUseCase{Store: store, Scorer: scorer, Queue: producer, Log: log, Now: time.Now}
}

// Execute stores signal on the lead when it is stronger than the one already
// recorded. The store rescores on commit.
func (uc *RecordEngagementUseCase) Execute(ctx context.Context, input RecordEngagementInput) (*entity.Lead, error) {
	signal := strings.ToLower(strings.TrimSpace(input.Signal))
	points, known := uc.Scorer.EngagementPoints(signal)
	if !known {
		return nil, &DomainError{Code: "UNKNOWN_SIGNAL", Message: "unknown engagement signal: " + input.Signal}
	}

	id := input.LeadID
	if id == "" {
		if strings.TrimSpace(input.Email) == "" {
			return nil, validationFailed([]ValidationError{{Field: "lead_id", Message: "lead_id or email is required"}})
		}
		found, err := uc.Store.GetByEmail(input.Email)
		if err != nil {
			return nil, err
		}
		id = found.ID
	}

	lead, err := uc.Store.Update(ctx, id, func(l *entity.Lead) error {
		current, _ := uc.Scorer.EngagementPoints(l.EngagementSignal)
		if l.EngagementSignal == "" || points > current {
			l.EngagementSignal = signal
		}
		return nil
	})
	if err != nil {
		return nil, storeError("record engagement", err)
	}

	uc.Log.Info("engagement_recorded",
		slog.String("lead_id", lead.ID),
		slog.String("signal", signal),
		slog.String("kept", lead.EngagementSignal),
		slog.Int("score", lead.Score),
	)
	if uc.Queue != nil {
		if err := uc.Queue.PublishLeadSync(ctx, queue.PayloadFromLead(queue.EventLeadEngaged, lead, uc.Now())); err != nil {
			uc.Log.Warn("crm_sync_publish_failed", slog.String("lead_id", lead.ID), slog.String("error", err.Error()))
		}
	}
	return lead, nil
}
