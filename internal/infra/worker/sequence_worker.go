package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
)

// Advancer is implemented by usecase.AdvanceSequencesUseCase.
type Advancer interface {
	Execute(ctx context.Context, now time.Time) ([]entity.DispatchedAction, error)
}

// AdvancerFunc adapts a plain function to Advancer.
type AdvancerFunc func(ctx context.Context, now time.Time) ([]entity.DispatchedAction, error)

func (f AdvancerFunc) Execute(ctx context.Context, now time.Time) ([]entity.DispatchedAction, error) {
	return f(ctx, now)
}

// ReportFunc sends the daily pipeline report.
type ReportFunc func(ctx context.Context, now time.Time) error

// SequenceWorker runs an advance pass on every tick, plus one at start.
type SequenceWorker struct {
	advancer     Advancer
	tickInterval time.Duration
	log          *logger.Logger

	report     ReportFunc
	reportHour int
	lastReport string

	Now func() time.Time
}

func NewSequenceWorker(advancer Advancer, tickInterval time.Duration, log *logger.Logger) *SequenceWorker {
	if tickInterval <= 0 {
		tickInterval = 15 * time.Minute
	}
	if log == nil {
		log = logger.Discard()
	}
	return &SequenceWorker{
		advancer:     advancer,
		tickInterval: tickInterval,
		log:          log.WithComponent("sequence_worker"),
		Now:          time.Now,
	}
}

// WithDailyReport makes the first tick at or after hour (UTC) each day send
// the report.
func (w *SequenceWorker) WithDailyReport(hour int, fn ReportFunc) *SequenceWorker {
	w.report = fn
	w.reportHour = hour
	return w
}

func (w *SequenceWorker) Start(ctx context.Context) {
	w.log.Info("sequence worker started", slog.Duration("interval", w.tickInterval))

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("sequence worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// RunOnce performs a single advance pass.
func (w *SequenceWorker) RunOnce(ctx context.Context) ([]entity.DispatchedAction, error) {
	now := w.Now().UTC()
	actions, err := w.advancer.Execute(ctx, now)
	if err != nil {
		w.log.Error("advance pass failed", slog.String("error", err.Error()))
		return actions, err
	}
	if len(actions) > 0 {
		w.log.Info("advance pass dispatched", slog.Int("count", len(actions)))
	}
	return actions, nil
}

func (w *SequenceWorker) tick(ctx context.Context) {
	_, _ = w.RunOnce(ctx)
	w.maybeReport(ctx)
}

func (w *SequenceWorker) maybeReport(ctx context.Context) {
	if w.report == nil {
		return
	}
	now := w.Now().UTC()
	day := now.Format("2006-01-02")
	if now.Hour() < w.reportHour || day == w.lastReport {
		return
	}
	if err := w.report(ctx, now); err != nil {
		w.log.Error("daily report failed", slog.String("error", err.Error()))
		return
	}
	w.lastReport = day
}
