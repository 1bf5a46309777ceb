package usecase

import (
	"time"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/scoring"
	"github.com/xavierca1/zag-leads/internal/sequence"
)

type EnrollLeadOutput struct {
	Lead      *entity.Lead `json:"lead"`
	Created   bool         `json:"created"`
	Restarted bool         `json:"restarted"`
}

type DeliveryRequest struct {
	IdempotencyKey string
	Lead           *entity.Lead
	StepIndex      int
	Step           sequence.Step
	Message        sequence.Message
}

type DeliveryResult struct {
	MessageID string
}

type RecordEngagementInput struct {
	LeadID string `json:"lead_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Signal string `json:"signal"`
}

type PreviewOutput struct {
	LeadID      string           `json:"lead_id"`
	StepIndex   int              `json:"step_index"`
	TotalSteps  int              `json:"total_steps"`
	Sequence    string           `json:"sequence"`
	ScheduledAt *time.Time       `json:"scheduled_at,omitempty"`
	Message     sequence.Message `json:"message"`
}

type ScoreOutput struct {
	LeadID string         `json:"lead_id"`
	Result scoring.Result `json:"result"`
}

type LeadSummary struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	Name         string          `json:"name,omitempty"`
	Company      string          `json:"company,omitempty"`
	Title        string          `json:"title,omitempty"`
	Score        int             `json:"score"`
	Tier         entity.Tier     `json:"tier"`
	Status       entity.Status   `json:"status"`
	InterestedIn entity.Service  `json:"interested_in"`
	Audience     entity.Audience `json:"audience"`
	SequenceStep int             `json:"sequence_step"`
	NextActionAt *time.Time      `json:"next_action_at,omitempty"`
}

func summarize(l *entity.Lead) LeadSummary {
	return LeadSummary{
		ID:           l.ID,
		Email:        l.Email,
		Name:         l.FullName(),
		Company:      l.Company,
		Title:        l.Title,
		Score:        l.Score,
		Tier:         l.Tier,
		Status:       l.Status,
		InterestedIn: l.InterestedIn,
		Audience:     l.Audience,
		SequenceStep: l.SequenceStep,
		NextActionAt: l.NextActionAt,
	}
}

type PipelineSummary struct {
	GeneratedAt  time.Time               `json:"generated_at"`
	Total        int                     `json:"total"`
	DueNow       int                     `json:"due_now"`
	ByStatus     map[entity.Status]int   `json:"by_status"`
	ByService    map[entity.Service]int  `json:"by_service"`
	ByAudience   map[entity.Audience]int `json:"by_audience"`
	ByTier       map[entity.Tier]int     `json:"by_tier"`
	HighPriority []LeadSummary           `json:"high_priority"`
}
