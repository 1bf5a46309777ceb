package handlers

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
	"github.com/xavierca1/zag-leads/internal/usecase"
)

type LeadReader interface {
	Get(id string) (*entity.Lead, error)
}

type LeadInsights interface {
	Score(id string) (*usecase.ScoreOutput, error)
	Preview(id string) (*usecase.PreviewOutput, error)
	List(filter entity.LeadFilter) []usecase.LeadSummary
	PipelineSummary(now time.Time) usecase.PipelineSummary
}

type LeadControls interface {
	Unsubscribe(ctx context.Context, id string) (*entity.Lead, error)
	Pause(ctx context.Context, id string) (*entity.Lead, error)
	Resume(ctx context.Context, id string) (*entity.Lead, error)
}

type OutreachRunner interface {
	Execute(ctx context.Context, now time.Time) ([]entity.DispatchedAction, error)
}

// LeadHandler serves the admin API.
type LeadHandler struct {
	Leads    LeadReader
	Enroll   LeadEnroller
	Insights LeadInsights
	Controls LeadControls
	Outreach OutreachRunner
	Log      *logger.Logger
	Now      func() time.Time
}

func NewLeadHandler(leads LeadReader, enroll LeadEnroller, insights LeadInsights, controls LeadControls, outreach OutreachRunner, log *logger.Logger) *LeadHandler {
	return &LeadHandler{
		Leads:    leads,
		Enroll:   enroll,
		Insights: insights,
		Controls: controls,
		Outreach: outreach,
		Log:      log,
		Now:      time.Now,
	}
}

type LeadListResponse struct {
	Count int                   `json:"count"`
	Leads []usecase.LeadSummary `json:"leads"`
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}
	leads := h.Insights.List(filter)
	writeJSON(w, http.StatusOK, LeadListResponse{Count: len(leads), Leads: leads})
}

// Create adds a lead by hand; it goes through the same enrollment as webhooks.
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var attrs entity.LeadAttributes
	if !decode(w, r, &attrs) {
		return
	}
	if attrs.Source == "" {
		attrs.Source = "manual_entry"
	}
	out, err := h.Enroll.Execute(r.Context(), attrs)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	lead, err := h.Leads.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) Score(w http.ResponseWriter, r *http.Request) {
	out, err := h.Insights.Score(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LeadHandler) Preview(w http.ResponseWriter, r *http.Request) {
	out, err := h.Insights.Preview(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LeadHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.Controls.Unsubscribe)
}

func (h *LeadHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.Controls.Pause)
}

func (h *LeadHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.Controls.Resume)
}

func (h *LeadHandler) control(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*entity.Lead, error)) {
	lead, err := fn(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// UnsubscribePage is the target of the link in outreach emails. It only
// renders a confirmation form: mail scanners prefetch links, so GET must not
// change the lead.
func (h *LeadHandler) UnsubscribePage(w http.ResponseWriter, r *http.Request) {
	lead, err := h.Leads.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeHTML(w, fmt.Sprintf(`<form method="post"><p>Stop emails to %s?</p><button type="submit">Unsubscribe</button></form>`,
		html.EscapeString(lead.Email)))
}

// UnsubscribeLink handles the confirmation form and RFC 8058 one-click
// POSTs sent by mail clients.
func (h *LeadHandler) UnsubscribeLink(w http.ResponseWriter, r *http.Request) {
	lead, err := h.Controls.Unsubscribe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeHTML(w, fmt.Sprintf("<p>%s has been unsubscribed. You will not hear from us again.</p>", html.EscapeString(lead.Email)))
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "<!DOCTYPE html><html><body>%s</body></html>", body)
}

func (h *LeadHandler) Pipeline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Insights.PipelineSummary(h.Now()))
}

type OutreachRunResponse struct {
	Success       bool                      `json:"success"`
	OutreachCount int                       `json:"outreach_count"`
	Actions       []entity.DispatchedAction `json:"actions"`
}

func (h *LeadHandler) RunOutreach(w http.ResponseWriter, r *http.Request) {
	actions, err := h.Outreach.Execute(r.Context(), h.Now().UTC())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if actions == nil {
		actions = []entity.DispatchedAction{}
	}
	writeJSON(w, http.StatusOK, OutreachRunResponse{Success: true, OutreachCount: len(actions), Actions: actions})
}

func parseFilter(r *http.Request) (entity.LeadFilter, error) {
	q := r.URL.Query()
	var f entity.LeadFilter

	if v := q.Get("tier"); v != "" {
		switch t := entity.Tier(v); t {
		case entity.TierHot, entity.TierWarm, entity.TierCool, entity.TierCold:
			f.Tier = t
		default:
			return f, fmt.Errorf("unknown tier %q", v)
		}
	}
	if v := q.Get("status"); v != "" {
		switch s := entity.Status(v); s {
		case entity.StatusNew, entity.StatusActive, entity.StatusPaused, entity.StatusCompleted, entity.StatusUnsubscribed:
			f.Status = s
		default:
			return f, fmt.Errorf("unknown status %q", v)
		}
	}
	if v := q.Get("service"); v != "" {
		switch s := entity.Service(v); s {
		case entity.ServiceLinkedInPresence, entity.ServiceCustomerResearch, entity.ServiceBoth, entity.ServiceUnknown:
			f.Service = s
		default:
			return f, fmt.Errorf("unknown service %q", v)
		}
	}
	if v := q.Get("due_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("due_before must be RFC3339: %w", err)
		}
		f.DueBefore = &t
	}
	return f, nil
}
