// Package app wires the lead engine from configuration. Both binaries build
// the same object graph through it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xavierca1/zag-leads/internal/config"
	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/infra/database"
	"github.com/xavierca1/zag-leads/internal/infra/delivery"
	"github.com/xavierca1/zag-leads/internal/infra/http/middleware"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
	"github.com/xavierca1/zag-leads/internal/infra/mail"
	"github.com/xavierca1/zag-leads/internal/infra/queue"
	"github.com/xavierca1/zag-leads/internal/leadstore"
	"github.com/xavierca1/zag-leads/internal/scoring"
	"github.com/xavierca1/zag-leads/internal/sequence"
	"github.com/xavierca1/zag-leads/internal/usecase"
)

type App struct {
	Config *config.Config
	Log    *logger.Logger

	DB       *sql.DB
	RabbitMQ *queue.RabbitMQ
	Producer queue.QueueProducerInterface
	Mail     *mail.EmailSender
	Metrics  middleware.DomainMetrics

	Scorer      *scoring.Scorer
	Catalog     *sequence.Catalog
	Store       *leadstore.Store
	DispatchLog entity.DispatchLogInterface

	Enroll     *usecase.EnrollLeadUseCase
	Advance    *usecase.AdvanceSequencesUseCase
	Controls   *usecase.LeadControlUseCase
	Engagement *usecase.RecordEngagementUseCase
	Insights   *usecase.LeadInsightsUseCase
}

// Build opens storage and the broker, loads persisted leads and assembles the
// use cases. RabbitMQ is optional: without RABBITMQ_URL no CRM events are
// published.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	rules, err := loadRules(cfg.ScoringRulesPath)
	if err != nil {
		return nil, err
	}
	if a.Scorer, err = scoring.New(rules); err != nil {
		return nil, fmt.Errorf("app: scoring rules: %w", err)
	}
	if a.Catalog, err = loadCatalog(cfg.CatalogPath); err != nil {
		return nil, err
	}

	repo, dispatchLog, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}
	a.DispatchLog = dispatchLog
	a.Store = leadstore.New(repo, a.Scorer,
		leadstore.WithStepLimit(func(l *entity.Lead) int {
			return len(a.Catalog.StepsFor(l.InterestedIn, l.Audience))
		}),
	)
	n, err := a.Store.Load(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info("leads loaded", slog.Int("count", n), slog.String("driver", cfg.StoreDriver))

	if cfg.RabbitMQURL != "" {
		if a.RabbitMQ, err = queue.NewRabbitMQ(cfg.RabbitMQURL); err != nil {
			a.Close()
			return nil, err
		}
		a.Producer = queue.NewProducer(a.RabbitMQ.Ch)
	} else {
		log.Warn("RABBITMQ_URL not set, CRM sync disabled")
	}

	a.Mail = mail.NewEmailSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass, cfg.MailFrom, cfg.MailFromName, cfg.MailEnabled, log)
	router := delivery.NewRouter(a.Mail, a.Producer, cfg.OperatorEmail, cfg.PublicBaseURL, log)

	a.Enroll = usecase.NewEnrollLeadUseCase(a.Store, a.Catalog, a.Producer, a.Metrics, log)
	a.Advance = usecase.NewAdvanceSequencesUseCase(a.Store, a.DispatchLog, a.Catalog, router, a.Metrics, log, cfg.Lifecycle())
	a.Controls = usecase.NewLeadControlUseCase(a.Store, a.Catalog, a.Producer, log)
	a.Engagement = usecase.NewRecordEngagementUseCase(a.Store, a.Scorer, a.Producer, log)
	a.Insights = usecase.NewLeadInsightsUseCase(a.Store, a.Scorer, a.Catalog)
	return a, nil
}

func (a *App) openStorage(ctx context.Context) (entity.LeadRepositoryInterface, entity.DispatchLogInterface, error) {
	var (
		dialect database.Dialect
		err     error
	)
	switch a.Config.StoreDriver {
	case config.DriverMemory:
		a.Log.Warn("memory store selected, leads are lost on restart")
		return leadstore.NewMemoryRepository(), leadstore.NewMemoryDispatchLog(), nil
	case config.DriverPostgres:
		dialect = database.Postgres
		a.DB, err = database.NewPostgresConnection(a.Config.DatabaseURL)
	default:
		dialect = database.SQLite
		a.DB, err = database.NewSQLiteConnection(a.Config.SQLitePath)
	}
	if err != nil {
		return nil, nil, err
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.Migrate(migrateCtx, a.DB, dialect); err != nil {
		a.DB.Close()
		return nil, nil, err
	}
	return database.NewLeadRepository(a.DB, dialect), database.NewDispatchLogRepository(a.DB, dialect), nil
}

// SendReport emails the pipeline summary to REPORT_EMAIL.
func (a *App) SendReport(ctx context.Context, now time.Time) error {
	if a.Config.ReportEmail == "" {
		return errors.New("REPORT_EMAIL is not set")
	}
	return a.Mail.SendReport(ctx, a.Config.ReportEmail, a.Insights.PipelineSummary(now))
}

func (a *App) Close() {
	if a.RabbitMQ != nil {
		if err := a.RabbitMQ.Close(); err != nil {
			a.Log.Warn("close rabbitmq", slog.String("error", err.Error()))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.DatabaseError("close", err)
		}
	}
}

func loadRules(path string) (scoring.Rules, error) {
	if path == "" {
		return scoring.DefaultRules()
	}
	rules, err := scoring.LoadRules(path)
	if err != nil {
		return scoring.Rules{}, fmt.Errorf("app: load scoring rules: %w", err)
	}
	return rules, nil
}

func loadCatalog(path string) (*sequence.Catalog, error) {
	if path == "" {
		return sequence.Default()
	}
	c, err := sequence.Load(path)
	if err != nil {
		return nil, fmt.Errorf("app: load catalog: %w", err)
	}
	return c, nil
}
