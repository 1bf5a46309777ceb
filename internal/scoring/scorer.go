// Package scoring maps lead attributes to a 0-100 score and a tier. It is pure:
// the same input and rules always produce the same result.
package scoring

import (
	"strings"
	"unicode"

	"github.com/xavierca1/zag-leads/internal/entity"
)

type Input struct {
	Title            string
	Company          string
	EmailDomain      string
	Source           string
	LinkedInURL      string
	Industry         string
	Website          string
	EngagementSignal string
}

func InputFromLead(l *entity.Lead) Input {
	return Input{
		Title:            l.Title,
		Company:          l.Company,
		EmailDomain:      l.EmailDomain(),
		Source:           l.Source,
		LinkedInURL:      l.LinkedInURL,
		Industry:         l.Industry,
		Website:          l.Website,
		EngagementSignal: l.EngagementSignal,
	}
}

type Breakdown struct {
	Title        int    `json:"title"`
	TitleMatch   string `json:"title_match,omitempty"`
	Company      int    `json:"company"`
	CompanyMatch string `json:"company_match,omitempty"`
	Source       int    `json:"source"`
	Profile      int    `json:"profile"`
	Engagement   int    `json:"engagement"`
}

type Result struct {
	Total     int         `json:"total"`
	Tier      entity.Tier `json:"tier"`
	Breakdown Breakdown   `json:"breakdown"`
}

type Scorer struct {
	rules Rules
}

func New(rules Rules) (*Scorer, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{rules: rules.normalized()}, nil
}

// TierFor is the fixed threshold table: >=80 hot, >=60 warm, >=40 cool.
func TierFor(score int) entity.Tier {
	switch {
	case score >= 80:
		return entity.TierHot
	case score >= 60:
		return entity.TierWarm
	case score >= 40:
		return entity.TierCool
	default:
		return entity.TierCold
	}
}

func (s *Scorer) Score(in Input) Result {
	var b Breakdown
	b.Title, b.TitleMatch = matchKeywords(s.rules.Title, s.rules.TitleDefault, MaxTitle, in.Title)
	b.Company, b.CompanyMatch = matchKeywords(s.rules.Company, s.rules.CompanyDefault, MaxCompany, in.Company+" "+in.EmailDomain)
	b.Source = s.sourcePoints(in.Source)
	b.Profile = s.profilePoints(in)
	b.Engagement, _ = s.EngagementPoints(in.EngagementSignal)

	total := clamp(b.Title+b.Company+b.Source+b.Profile+b.Engagement, 0, 100)
	return Result{Total: total, Tier: TierFor(total), Breakdown: b}
}

// Apply rescores the lead in place and returns the result.
func (s *Scorer) Apply(l *entity.Lead) Result {
	res := s.Score(InputFromLead(l))
	l.Score = res.Total
	l.Tier = res.Tier
	return res
}

// EngagementPoints reports the points for a signal and whether it is known.
func (s *Scorer) EngagementPoints(signal string) (int, bool) {
	if strings.TrimSpace(signal) == "" {
		return 0, false
	}
	pts, ok := s.rules.Engagement[normalizeTag(signal)]
	return clamp(pts, 0, MaxEngagement), ok
}

func (s *Scorer) sourcePoints(source string) int {
	tag := normalizeTag(source)
	if pts, ok := s.rules.Sources[tag]; ok && tag != "" {
		return clamp(pts, 0, MaxSource)
	}
	return clamp(s.rules.SourceDefault, 0, MaxSource)
}

func (s *Scorer) profilePoints(in Input) int {
	pts := 0
	if strings.TrimSpace(in.LinkedInURL) != "" {
		pts += s.rules.Profile.LinkedIn
	}
	for _, field := range []string{in.Industry, in.Website} {
		if strings.TrimSpace(field) != "" {
			pts += s.rules.Profile.EnrichmentField
		}
	}
	return clamp(pts, 0, MaxProfile)
}

func matchKeywords(rules []KeywordRule, def, max int, text string) (int, string) {
	haystack := strings.ToLower(text)
	if strings.TrimSpace(haystack) == "" {
		return clamp(def, 0, max), ""
	}
	var tokens map[string]struct{}
	for _, r := range rules {
		if r.WholeWord {
			if tokens == nil {
				tokens = tokenize(haystack)
			}
			if _, ok := tokens[r.Keyword]; !ok {
				continue
			}
		} else if !strings.Contains(haystack, r.Keyword) {
			continue
		}
		return clamp(r.Points, 0, max), r.Keyword
	}
	return clamp(def, 0, max), ""
}

func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
