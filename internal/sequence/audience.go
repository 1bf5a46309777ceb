package sequence

import (
	"strings"

	"github.com/xavierca1/zag-leads/internal/entity"
)

// AudienceRule matches when any title keyword or any company keyword is
// present and, if Industry is set, one industry keyword is present as well.
type AudienceRule struct {
	Audience entity.Audience
	Title    []string
	Company  []string
	Industry []string
}

// DefaultAudienceRules is evaluated top to bottom; the first match wins.
func DefaultAudienceRules() []AudienceRule {
	founder := []string{"founder", "co-founder", "ceo", "owner"}
	return []AudienceRule{
		{
			Audience: entity.AudienceB2CFounder,
			Title:    founder,
			Industry: []string{"consumer", "retail", "ecommerce", "e-commerce", "d2c", "dtc", "cpg"},
		},
		{Audience: entity.AudienceB2BFounder, Title: founder},
		{
			Audience: entity.AudienceVCInvestor,
			Title:    []string{"investor", "partner", "vc", "venture"},
			Company:  []string{"ventures", "capital"},
		},
		{
			Audience: entity.AudienceConsultant,
			Title:    []string{"consultant", "coach", "advisor", "freelance"},
			Company:  []string{"consulting", "coaching", "advisory"},
		},
	}
}

func (r AudienceRule) matches(title, company, industry string) bool {
	if !containsAny(title, r.Title) && !containsAny(company, r.Company) {
		return false
	}
	return len(r.Industry) == 0 || containsAny(industry, r.Industry)
}

// ResolveAudience classifies a lead. Anything that no rule matches is generic.
func (c *Catalog) ResolveAudience(l *entity.Lead) entity.Audience {
	title := strings.ToLower(l.Title)
	company := strings.ToLower(l.Company)
	industry := strings.ToLower(l.Industry)
	for _, r := range c.audiences {
		if r.matches(title, company, industry) {
			return r.Audience
		}
	}
	return entity.AudienceGeneric
}

func containsAny(s string, terms []string) bool {
	if s == "" {
		return false
	}
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
