// Package delivery routes rendered sequence steps to their channel and
// reports each send to the CRM sync queue.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
	"github.com/xavierca1/zag-leads/internal/infra/mail"
	"github.com/xavierca1/zag-leads/internal/infra/queue"
	"github.com/xavierca1/zag-leads/internal/usecase"
)

type Mailer interface {
	SendOutreach(ctx context.Context, e mail.OutreachEmail) (string, error)
	SendOperatorTask(ctx context.Context, t mail.OperatorTask) (string, error)
}

type Router struct {
	Mailer   Mailer
	Producer queue.QueueProducerInterface
	// OperatorEmail receives LinkedIn tasks. When empty the task is only logged.
	OperatorEmail string
	PublicBaseURL string
	Log           *logger.Logger
	Now           func() time.Time
}

func NewRouter(mailer Mailer, producer queue.QueueProducerInterface, operatorEmail, publicBaseURL string, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Discard()
	}
	return &Router{
		Mailer:        mailer,
		Producer:      producer,
		OperatorEmail: operatorEmail,
		PublicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		Log:           log.WithComponent("delivery"),
		Now:           time.Now,
	}
}

var _ usecase.Deliverer = (*Router)(nil)

func (r *Router) Deliver(ctx context.Context, req usecase.DeliveryRequest) (usecase.DeliveryResult, error) {
	var (
		messageID string
		err       error
	)
	switch req.Step.Channel {
	case entity.ChannelEmail:
		messageID, err = r.sendEmail(ctx, req)
	case entity.ChannelLinkedIn:
		messageID, err = r.sendLinkedInTask(ctx, req)
	default:
		err = fmt.Errorf("delivery: unsupported channel %q", req.Step.Channel)
	}
	if err != nil {
		return usecase.DeliveryResult{}, err
	}

	r.publish(ctx, req, messageID)
	return usecase.DeliveryResult{MessageID: messageID}, nil
}

func (r *Router) sendEmail(ctx context.Context, req usecase.DeliveryRequest) (string, error) {
	e := mail.OutreachEmail{
		To:             req.Lead.Email,
		ToName:         req.Lead.FullName(),
		Subject:        req.Message.Subject,
		Body:           req.Message.Body,
		IdempotencyKey: req.IdempotencyKey,
	}
	if r.PublicBaseURL != "" {
		e.UnsubscribeURL = r.PublicBaseURL + "/unsubscribe/" + req.Lead.ID
	}
	return r.Mailer.SendOutreach(ctx, e)
}

// LinkedIn has no sending API here; the step becomes a task for a human.
func (r *Router) sendLinkedInTask(ctx context.Context, req usecase.DeliveryRequest) (string, error) {
	if r.OperatorEmail == "" {
		r.Log.Info("linkedin_task",
			slog.String("lead_id", req.Lead.ID),
			slog.String("step", req.Step.Name),
			slog.String("linkedin_url", req.Lead.LinkedInURL),
			slog.String("message", req.Message.Body),
		)
		return "linkedin-task:" + req.IdempotencyKey, nil
	}
	return r.Mailer.SendOperatorTask(ctx, mail.OperatorTask{
		To:             r.OperatorEmail,
		StepName:       req.Step.Name,
		LeadName:       req.Lead.FullName(),
		LeadEmail:      req.Lead.Email,
		Company:        req.Lead.Company,
		LinkedInURL:    req.Lead.LinkedInURL,
		Score:          req.Lead.Score,
		Tier:           string(req.Lead.Tier),
		Body:           req.Message.Body,
		IdempotencyKey: req.IdempotencyKey,
	})
}

// publish never fails the send: the message already left.
func (r *Router) publish(ctx context.Context, req usecase.DeliveryRequest, messageID string) {
	if r.Producer == nil {
		return
	}
	p := queue.PayloadFromLead(queue.EventStepDispatched, req.Lead, r.Now())
	p.SequenceStep = req.StepIndex + 1
	p.StepName = req.Step.Name
	p.Channel = string(req.Step.Channel)
	p.Subject = req.Message.Subject
	p.MessageID = messageID
	if err := r.Producer.PublishLeadSync(ctx, p); err != nil {
		r.Log.Warn("crm_sync_publish_failed",
			slog.String("lead_id", req.Lead.ID),
			slog.String("event", string(p.Event)),
			slog.String("error", err.Error()),
		)
	}
}
