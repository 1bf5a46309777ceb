package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xavierca1/zag-leads/internal/app"
	"github.com/xavierca1/zag-leads/internal/config"
	"github.com/xavierca1/zag-leads/internal/infra/http/handlers"
	"github.com/xavierca1/zag-leads/internal/infra/http/middleware"
	"github.com/xavierca1/zag-leads/internal/infra/integration/attio"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
	"github.com/xavierca1/zag-leads/internal/infra/queue"
	"github.com/xavierca1/zag-leads/internal/infra/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("development").Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	if a.RabbitMQ != nil && cfg.AttioAPIKey != "" {
		ch, err := a.RabbitMQ.Conn.Channel()
		if err != nil {
			log.Error("open worker channel", slog.String("error", err.Error()))
			a.Close()
			os.Exit(1)
		}
		defer ch.Close()
		crm := queue.NewWorker(ch, attio.NewClient(cfg.AttioAPIKey, cfg.AttioBaseURL, log), a.Metrics, log)
		g.Go(func() error { return crm.Start(gctx, queue.QueueName) })
	} else {
		log.Warn("CRM sync worker not started", slog.Bool("rabbitmq", a.RabbitMQ != nil), slog.Bool("attio", cfg.AttioAPIKey != ""))
	}

	if cfg.APIRunsScheduler {
		sw := worker.NewSequenceWorker(a.Advance, cfg.AdvanceInterval, log)
		if cfg.ReportEmail != "" {
			sw.WithDailyReport(cfg.ReportHour, a.SendReport)
		}
		g.Go(func() error {
			sw.Start(gctx)
			return nil
		})
	}

	var pinger handlers.Pinger
	if a.DB != nil {
		pinger = a.DB
	}
	var broker handlers.ConnectionState
	if a.RabbitMQ != nil {
		broker = a.RabbitMQ.Conn
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Webhooks: handlers.NewWebhookHandler(a.Enroll, a.Engagement, a.Controls, log),
		Leads:    handlers.NewLeadHandler(a.Store, a.Enroll, a.Insights, a.Controls, a.Advance, log),
		Health: handlers.NewHealthHandler(pinger, broker, a.Store, map[string]bool{
			"attio": cfg.AttioAPIKey != "",
			"smtp":  cfg.MailEnabled,
		}),
		Log:           log,
		CORSOrigins:   cfg.CORSOrigins,
		WebhookSecret: cfg.WebhookSecret,
		AdminToken:    cfg.AdminToken,
		TrustProxy:    cfg.TrustProxy,
		RateLimiter:   middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, log),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	g.Go(func() error {
		log.Info("server listening", slog.String("addr", cfg.HTTPAddr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", slog.String("error", err.Error()))
		a.Close()
		os.Exit(1)
	}
}
