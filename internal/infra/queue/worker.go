package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/zag-leads/internal/infra/logger"
)

// CRMClient mirrors a lead into the CRM.
type CRMClient interface {
	SyncLead(ctx context.Context, payload LeadSyncPayload) error
}

// ErrorRecorder counts sync failures; the HTTP metrics package implements it.
type ErrorRecorder interface {
	RecordCRMSyncError(event string)
}

type outcome int

const (
	ack outcome = iota
	retry
	deadLetter
)

type Worker struct {
	Channel *amqp.Channel
	CRM     CRMClient
	Errors  ErrorRecorder
	Log     *logger.Logger
}

func NewWorker(ch *amqp.Channel, crm CRMClient, errs ErrorRecorder, log *logger.Logger) *Worker {
	return &Worker{Channel: ch, CRM: crm, Errors: errs, Log: log.WithComponent("crm_sync_worker")}
}

// Start consumes queueName until ctx is cancelled or the channel closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	if err := w.Channel.Qos(10, 0, false); err != nil {
		return fmt.Errorf("queue: set qos: %w", err)
	}
	msgs, err := w.Channel.ConsumeWithContext(ctx, queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue: consume %s: %w", queueName, err)
	}

	w.Log.Info("worker_started", slog.String("queue", queueName))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("queue: delivery channel for %s closed", queueName)
			}
			w.settle(d, w.handle(ctx, d.Body, d.Redelivered))
		}
	}
}

func (w *Worker) settle(d amqp.Delivery, o outcome) {
	var err error
	switch o {
	case ack:
		err = d.Ack(false)
	case retry:
		err = d.Nack(false, true)
	default:
		err = d.Nack(false, false)
	}
	if err != nil {
		w.Log.Error("settle_failed", slog.String("error", err.Error()))
	}
}

// handle decides what happens to one message. Malformed bodies go straight to
// the dead letter queue; a failed sync is retried once, then dead-lettered.
func (w *Worker) handle(ctx context.Context, body []byte, redelivered bool) outcome {
	var payload LeadSyncPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		w.Log.Warn("malformed_sync_message", slog.String("error", err.Error()))
		return deadLetter
	}
	if payload.Email == "" || payload.Event == "" {
		w.Log.Warn("malformed_sync_message", slog.String("lead_id", payload.LeadID), slog.String("error", "missing email or event"))
		return deadLetter
	}

	if err := w.CRM.SyncLead(ctx, payload); err != nil {
		if w.Errors != nil {
			w.Errors.RecordCRMSyncError(string(payload.Event))
		}
		w.Log.Error("crm_sync_failed",
			slog.String("lead_id", payload.LeadID),
			slog.String("event", string(payload.Event)),
			slog.Bool("redelivered", redelivered),
			slog.String("error", err.Error()),
		)
		if redelivered {
			return deadLetter
		}
		return retry
	}

	w.Log.Debug("crm_synced", slog.String("lead_id", payload.LeadID), slog.String("event", string(payload.Event)))
	return ack
}
