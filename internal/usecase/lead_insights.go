package usecase

import (
	"sort"
	"time"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/scoring"
	"github.com/xavierca1/zag-leads/internal/sequence"
)

const highPriorityScore = 70

// LeadInsightsUseCase answers read-only questions about leads: score
// breakdown, next message preview and the pipeline summary.
type LeadInsightsUseCase struct {
	Store   LeadStore
	Scorer  *scoring.Scorer
	Catalog *sequence.Catalog
}

func NewLeadInsightsUseCase(store LeadStore, scorer *scoring.Scorer, catalog *sequence.Catalog) *LeadInsightsUseCase {
	return &LeadInsightsUseCase{Store: store, Scorer: scorer, Catalog: catalog}
}

func (uc *LeadInsightsUseCase) Score(id string) (*ScoreOutput, error) {
	lead, err := uc.Store.Get(id)
	if err != nil {
		return nil, err
	}
	return &ScoreOutput{LeadID: lead.ID, Result: uc.Scorer.Score(scoring.InputFromLead(lead))}, nil
}

// Preview renders the message the next advance would send to the lead.
func (uc *LeadInsightsUseCase) Preview(id string) (*PreviewOutput, error) {
	lead, err := uc.Store.Get(id)
	if err != nil {
		return nil, err
	}
	if lead.Status.Terminal() {
		return nil, invalidState(lead, "previewed")
	}

	seq := uc.Catalog.SequenceFor(lead.InterestedIn, lead.Audience)
	if lead.Audience == "" {
		seq = uc.Catalog.SequenceFor(lead.InterestedIn, uc.Catalog.ResolveAudience(lead))
	}
	if lead.SequenceStep >= len(seq.Steps) {
		return nil, &DomainError{Code: "NO_NEXT_STEP", Message: "lead " + lead.ID + " has no remaining steps"}
	}

	msg, err := uc.Catalog.Render(seq.Steps[lead.SequenceStep], lead)
	if err != nil {
		return nil, &TechnicalError{Code: "RENDER_FAILED", Message: "render preview", Err: err}
	}
	return &PreviewOutput{
		LeadID:      lead.ID,
		StepIndex:   lead.SequenceStep,
		TotalSteps:  len(seq.Steps),
		Sequence:    seq.Name,
		ScheduledAt: lead.NextActionAt,
		Message:     msg,
	}, nil
}

func (uc *LeadInsightsUseCase) List(filter entity.LeadFilter) []LeadSummary {
	leads := uc.Store.List(filter)
	out := make([]LeadSummary, len(leads))
	for i, l := range leads {
		out[i] = summarize(l)
	}
	return out
}

// PipelineSummary counts leads per status, service, audience and tier and
// lists the high priority ones, best score first.
func (uc *LeadInsightsUseCase) PipelineSummary(now time.Time) PipelineSummary {
	s := PipelineSummary{
		GeneratedAt:  now.UTC(),
		ByStatus:     make(map[entity.Status]int),
		ByService:    make(map[entity.Service]int),
		ByAudience:   make(map[entity.Audience]int),
		ByTier:       make(map[entity.Tier]int),
		HighPriority: []LeadSummary{},
	}
	for _, l := range uc.Store.List(entity.LeadFilter{}) {
		s.Total++
		s.ByStatus[l.Status]++
		s.ByService[l.InterestedIn]++
		if l.Audience != "" {
			s.ByAudience[l.Audience]++
		}
		s.ByTier[l.Tier]++
		if l.IsDue(now) {
			s.DueNow++
		}
		if l.Score >= highPriorityScore && !l.Status.Terminal() {
			s.HighPriority = append(s.HighPriority, summarize(l))
		}
	}
	sort.SliceStable(s.HighPriority, func(i, j int) bool {
		return s.HighPriority[i].Score > s.HighPriority[j].Score
	})
	return s
}
