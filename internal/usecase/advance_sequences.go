package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
	"github.com/xavierca1/zag-leads/internal/sequence"
)

var errStaleDispatch = errors.New("lead moved on since the dispatch was claimed")

type AdvanceSequencesUseCase struct {
	Store       LeadStore
	DispatchLog entity.DispatchLogInterface
	Catalog     *sequence.Catalog
	Deliverer   Deliverer
	Metrics     Metrics
	Log         *logger.Logger
	Config      LifecycleConfig
}

func NewAdvanceSequencesUseCase(
	store LeadStore,
	dispatchLog entity.DispatchLogInterface,
	catalog *sequence.Catalog,
	deliverer Deliverer,
	metrics Metrics,
	log *logger.Logger,
	cfg LifecycleConfig,
) *AdvanceSequencesUseCase {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &AdvanceSequencesUseCase{
		Store:       store,
		DispatchLog: dispatchLog,
		Catalog:     catalog,
		Deliverer:   deliverer,
		Metrics:     metrics,
		Log:         log.WithComponent("advance"),
		Config:      cfg.withDefaults(),
	}
}

// Execute sends the current step of every active lead due at now and moves it
// forward. Leads are handled concurrently; a failure on one lead is logged and
// never stops the others.
func (uc *AdvanceSequencesUseCase) Execute(ctx context.Context, now time.Time) ([]entity.DispatchedAction, error) {
	now = now.UTC()
	due := uc.Store.List(entity.LeadFilter{Status: entity.StatusActive, DueBefore: &now})
	if len(due) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		actions []entity.DispatchedAction
		g       errgroup.Group
	)
	g.SetLimit(uc.Config.Concurrency)

	for _, lead := range due {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			action, err := uc.advanceLead(ctx, lead, now)
			if err != nil {
				uc.Log.Error("advance_failed", slog.String("lead_id", lead.ID), slog.String("error", err.Error()))
				return nil
			}
			if action != nil {
				mu.Lock()
				actions = append(actions, *action)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(actions, func(i, j int) bool {
		if actions[i].LeadID != actions[j].LeadID {
			return actions[i].LeadID < actions[j].LeadID
		}
		return actions[i].StepIndex < actions[j].StepIndex
	})

	uc.Log.Info("advance_completed",
		slog.Int("due", len(due)),
		slog.Int("dispatched", len(actions)),
	)
	return actions, ctx.Err()
}

// advanceLead runs claim, send, mark sent and commit for one lead. The lead
// lock is only held during the final commit.
func (uc *AdvanceSequencesUseCase) advanceLead(ctx context.Context, lead *entity.Lead, now time.Time) (*entity.DispatchedAction, error) {
	seq := uc.Catalog.SequenceFor(lead.InterestedIn, lead.Audience)
	if lead.SequenceStep >= len(seq.Steps) {
		_, err := uc.Store.Update(ctx, lead.ID, func(l *entity.Lead) error {
			if l.Status == entity.StatusActive && l.SequenceStep >= len(uc.Catalog.StepsFor(l.InterestedIn, l.Audience)) {
				l.Status = entity.StatusCompleted
			}
			return nil
		})
		return nil, storeError("complete lead", err)
	}

	stepIndex := lead.SequenceStep
	step := seq.Steps[stepIndex]
	anchor := anchorOf(lead)
	msg, err := uc.Catalog.Render(step, lead)
	if err != nil {
		return nil, err
	}

	action := &entity.DispatchedAction{
		IdempotencyKey: entity.DispatchKey(lead.ID, stepIndex, anchor),
		LeadID:         lead.ID,
		StepIndex:      stepIndex,
		StepName:       step.Name,
		Channel:        step.Channel,
		Timestamp:      now,
	}

	var (
		alreadySent bool
		delivered   bool
		result      DeliveryResult
	)
	txn := NewTransaction(uc.Log)
	txn.AddOperation("claim_dispatch", func(ctx context.Context) error {
		state, err := uc.DispatchLog.Claim(ctx, action, uc.Config.ClaimLease)
		if err != nil {
			return err
		}
		alreadySent = state == entity.DispatchSent
		return nil
	})
	txn.AddCompensation("release_claim", func(ctx context.Context) error {
		if alreadySent || delivered {
			return nil
		}
		return uc.DispatchLog.Release(ctx, action.IdempotencyKey)
	})
	txn.AddOperation("deliver", func(ctx context.Context) error {
		if alreadySent {
			return nil
		}
		res, err := uc.Deliverer.Deliver(ctx, DeliveryRequest{
			IdempotencyKey: action.IdempotencyKey,
			Lead:           lead,
			StepIndex:      stepIndex,
			Step:           step,
			Message:        msg,
		})
		if err != nil {
			return &deliveryError{channel: step.Channel, err: err}
		}
		delivered = true
		result = res
		return nil
	})
	txn.AddOperation("mark_sent", func(ctx context.Context) error {
		if alreadySent {
			return nil
		}
		return uc.DispatchLog.MarkSent(ctx, action.IdempotencyKey, result.MessageID, now)
	})

	if err := txn.Execute(ctx); err != nil {
		var de *deliveryError
		switch {
		case errors.Is(err, entity.ErrDispatchInProgress):
			uc.Log.Debug("dispatch_in_progress", slog.String("lead_id", lead.ID), slog.String("key", action.IdempotencyKey))
			return nil, nil
		case errors.As(err, &de):
			uc.Metrics.RecordDeliveryFailure(string(de.channel))
			uc.Log.DeliveryFailed(lead.ID, step.Name, string(step.Channel), de.err)
			return nil, nil
		default:
			return nil, err
		}
	}

	if alreadySent {
		uc.Log.Info("dispatch_recovered", slog.String("lead_id", lead.ID), slog.String("key", action.IdempotencyKey))
	} else {
		uc.Metrics.RecordDispatch(string(step.Channel))
		uc.Log.StepDispatched(lead.ID, step.Name, string(step.Channel), action.IdempotencyKey)
		action.MessageID = result.MessageID
	}
	action.State = entity.DispatchSent

	_, err = uc.Store.Update(ctx, lead.ID, func(l *entity.Lead) error {
		if l.SequenceStep != stepIndex || !anchorOf(l).Equal(anchor) {
			return errStaleDispatch
		}
		sent := now
		l.LastContactedAt = &sent
		l.SequenceStep++
		if l.Status.Terminal() {
			return nil
		}
		steps := uc.Catalog.StepsFor(l.InterestedIn, l.Audience)
		if l.SequenceStep >= len(steps) {
			l.Status = entity.StatusCompleted
			l.NextActionAt = nil
			return nil
		}
		next := nextSlot(anchor, steps[l.SequenceStep].DayOffset, now, uc.Config.MinStepGap)
		l.NextActionAt = &next
		return nil
	})
	if errors.Is(err, errStaleDispatch) {
		uc.Log.Info("dispatch_superseded", slog.String("lead_id", lead.ID), slog.String("key", action.IdempotencyKey))
		return action, nil
	}
	if err != nil {
		return nil, storeError("commit dispatch", err)
	}
	return action, nil
}

type deliveryError struct {
	channel entity.Channel
	err     error
}

func (e *deliveryError) Error() string {
	return fmt.Sprintf("deliver via %s: %v", e.channel, e.err)
}

func (e *deliveryError) Unwrap() error {
	return e.err
}
