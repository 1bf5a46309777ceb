// Command scheduler triggers advance passes on the API. The API process owns
// the lead store, so this binary never opens it; it calls the admin API.
//
//	scheduler            trigger a pass every ADVANCE_INTERVAL until interrupted
//	scheduler -run-now   trigger one pass and exit
//	scheduler -report    print the pipeline report and email it when REPORT_EMAIL is set
//
// Run the API with API_RUN_SCHEDULER=false when this binary does the ticking.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xavierca1/zag-leads/internal/config"
	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/infra/http/apiclient"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
	"github.com/xavierca1/zag-leads/internal/infra/mail"
	"github.com/xavierca1/zag-leads/internal/infra/worker"
)

func main() {
	runNow := flag.Bool("run-now", false, "trigger a single advance pass and exit")
	report := flag.Bool("report", false, "print the pipeline report and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *runNow, *report); err != nil {
		log.Error("scheduler failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, runNow, report bool) error {
	api := apiclient.NewClient(cfg.APIURL, cfg.AdminToken)
	sender := mail.NewEmailSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass, cfg.MailFrom, cfg.MailFromName, cfg.MailEnabled, log)

	sendReport := func(ctx context.Context, _ time.Time) error {
		summary, err := api.PipelineSummary(ctx)
		if err != nil {
			return err
		}
		return sender.SendReport(ctx, cfg.ReportEmail, summary)
	}

	advance := worker.AdvancerFunc(func(ctx context.Context, _ time.Time) ([]entity.DispatchedAction, error) {
		return api.RunOutreach(ctx)
	})
	sw := worker.NewSequenceWorker(advance, cfg.AdvanceInterval, log)

	switch {
	case report:
		summary, err := api.PipelineSummary(ctx)
		if err != nil {
			return err
		}
		fmt.Print(mail.ReportText(summary))
		if cfg.ReportEmail == "" {
			return nil
		}
		return sender.SendReport(ctx, cfg.ReportEmail, summary)

	case runNow:
		actions, err := sw.RunOnce(ctx)
		for _, act := range actions {
			fmt.Printf("%s  %-12s %-22s %s\n", act.Timestamp.Format(time.RFC3339), act.Channel, act.StepName, act.LeadID)
		}
		fmt.Printf("%d action(s) dispatched\n", len(actions))
		return err

	default:
		if cfg.APIRunsScheduler {
			log.Warn("API_RUN_SCHEDULER is on; the API already ticks, passes from here only add load")
		}
		if cfg.ReportEmail != "" {
			sw.WithDailyReport(cfg.ReportHour, sendReport)
		}
		sw.Start(ctx)
		return nil
	}
}
