package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
	"github.com/xavierca1/zag-leads/internal/usecase"
)

const maxWebhookBody = 1 << 20

type LeadEnroller interface {
	Execute(ctx context.Context, attrs entity.LeadAttributes) (*usecase.EnrollLeadOutput, error)
}

type EngagementRecorder interface {
	Execute(ctx context.Context, input usecase.RecordEngagementInput) (*entity.Lead, error)
}

type EmailUnsubscriber interface {
	UnsubscribeByEmail(ctx context.Context, email string) (*entity.Lead, error)
}

// WebhookHandler turns inbound form submissions into enrollments.
type WebhookHandler struct {
	Enroll       LeadEnroller
	Engagements  EngagementRecorder
	Unsubscriber EmailUnsubscriber
	Log          *logger.Logger
}

func NewWebhookHandler(enroll LeadEnroller, engagement EngagementRecorder, unsubscriber EmailUnsubscriber, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		Enroll:       enroll,
		Engagements:  engagement,
		Unsubscriber: unsubscriber,
		Log:          log,
	}
}

type WebhookResponse struct {
	Success   bool          `json:"success"`
	LeadID    string        `json:"lead_id"`
	Score     int           `json:"score"`
	Tier      entity.Tier   `json:"tier"`
	Status    entity.Status `json:"status"`
	Created   bool          `json:"created"`
	Restarted bool          `json:"restarted,omitempty"`
}

// Lead is the landing page endpoint: a flat JSON object with known field
// aliases.
func (h *WebhookHandler) Lead(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if !decode(w, r, &data) {
		return
	}
	h.enroll(w, r, attributesFromForm(data))
}

// Generic is Lead for arbitrary integrations; the source defaults to
// generic_webhook.
func (h *WebhookHandler) Generic(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if !decode(w, r, &data) {
		return
	}
	attrs := attributesFromForm(data)
	if attrs.Source == "" {
		attrs.Source = "generic_webhook"
	}
	h.enroll(w, r, attrs)
}

func (h *WebhookHandler) Webflow(w http.ResponseWriter, r *http.Request) {
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	var (
		payload webflowPayload
		flat    map[string]any
	)
	if json.Unmarshal(raw, &payload) != nil || json.Unmarshal(raw, &flat) != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	h.enroll(w, r, payload.attributes(flat))
}

func (h *WebhookHandler) Typeform(w http.ResponseWriter, r *http.Request) {
	var payload typeformPayload
	if !decode(w, r, &payload) {
		return
	}
	h.enroll(w, r, payload.attributes())
}

func (h *WebhookHandler) Tally(w http.ResponseWriter, r *http.Request) {
	var payload tallyPayload
	if !decode(w, r, &payload) {
		return
	}
	h.enroll(w, r, payload.attributes())
}

type engagementRequest struct {
	Email  string `json:"email"`
	LeadID string `json:"lead_id"`
	Signal string `json:"signal"`
	Event  string `json:"event"`
}

// Engagement records an email provider event. "unsubscribed" ends the
// sequence; anything else is scored as an engagement signal.
func (h *WebhookHandler) Engagement(w http.ResponseWriter, r *http.Request) {
	var req engagementRequest
	if !decode(w, r, &req) {
		return
	}
	signal := strings.TrimSpace(req.Signal)
	if signal == "" {
		signal = strings.TrimSpace(req.Event)
	}
	if signal == "" || (req.Email == "" && req.LeadID == "") {
		writeErrorResponse(w, http.StatusBadRequest, "MISSING_FIELDS", "signal and email or lead_id are required")
		return
	}

	var (
		lead *entity.Lead
		err  error
	)
	if strings.EqualFold(signal, "unsubscribed") || strings.EqualFold(signal, "unsubscribe") {
		if req.Email == "" {
			writeErrorResponse(w, http.StatusBadRequest, "MISSING_FIELDS", "email is required to unsubscribe")
			return
		}
		lead, err = h.Unsubscriber.UnsubscribeByEmail(r.Context(), req.Email)
	} else {
		lead, err = h.Engagements.Execute(r.Context(), usecase.RecordEngagementInput{
			LeadID: req.LeadID,
			Email:  req.Email,
			Signal: signal,
		})
	}
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, WebhookResponse{
		Success: true,
		LeadID:  lead.ID,
		Score:   lead.Score,
		Tier:    lead.Tier,
		Status:  lead.Status,
	})
}

func (h *WebhookHandler) enroll(w http.ResponseWriter, r *http.Request, attrs entity.LeadAttributes) {
	out, err := h.Enroll.Execute(r.Context(), attrs)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, WebhookResponse{
		Success:   true,
		LeadID:    out.Lead.ID,
		Score:     out.Lead.Score,
		Tier:      out.Lead.Tier,
		Status:    out.Lead.Status,
		Created:   out.Created,
		Restarted: out.Restarted,
	})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_BODY", "could not read body")
		return nil, false
	}
	return raw, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(v); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return false
	}
	return true
}
