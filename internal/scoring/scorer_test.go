package scoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/zag-leads/internal/entity"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	rules, err := DefaultRules()
	require.NoError(t, err)
	s, err := New(rules)
	require.NoError(t, err)
	return s
}

func TestTitleCEOOrFounderAlwaysScores30(t *testing.T) {
	s := newTestScorer(t)

	titles := []string{
		"CEO", "ceo", "Co-CEO", "CEO & Founder", "Founder", "co-founder",
		"FOUNDER and Chief Dreamer", "Vice President and Founder",
		"Senior Manager, ex-founder", "xCEOx", "Head of Product / Founder",
	}
	for _, title := range titles {
		res := s.Score(Input{Title: title})
		assert.Equal(t, 30, res.Breakdown.Title, "title %q", title)
	}
}

func TestTitleRulesFirstMatchWins(t *testing.T) {
	s := newTestScorer(t)

	cases := map[string]int{
		"Marketing Director":      18,
		"Managing Director":       25,
		"Vice President of Sales": 20,
		"President":               25,
		"Product Manager":         12,
		"VP Engineering":          20,
		"Team Lead":               10,
		"Leadership coach":        20,
		"Intern":                  0,
		"":                        0,
	}
	for title, want := range cases {
		assert.Equal(t, want, s.Score(Input{Title: title}).Breakdown.Title, "title %q", title)
	}
}

func TestCompanySignal(t *testing.T) {
	s := newTestScorer(t)

	assert.Equal(t, 15, s.Score(Input{Company: "TechStartup Inc"}).Breakdown.Company)
	assert.Equal(t, 15, s.Score(Input{Company: "Acme", EmailDomain: "acme-saas.io"}).Breakdown.Company)
	assert.Equal(t, 18, s.Score(Input{Company: "Growth Ventures"}).Breakdown.Company)
	assert.Equal(t, 12, s.Score(Input{Company: "Acme AI"}).Breakdown.Company)
	assert.Equal(t, 0, s.Score(Input{Company: "Big Corp", EmailDomain: "gmail.com"}).Breakdown.Company)
	assert.Equal(t, 0, s.Score(Input{}).Breakdown.Company)
}

func TestSourceSignal(t *testing.T) {
	s := newTestScorer(t)

	assert.Equal(t, 20, s.Score(Input{Source: "referral"}).Breakdown.Source)
	assert.Equal(t, 18, s.Score(Input{Source: "LinkedIn Organic"}).Breakdown.Source)
	assert.Equal(t, 18, s.Score(Input{Source: "organic"}).Breakdown.Source)
	assert.Equal(t, 8, s.Score(Input{Source: "paid"}).Breakdown.Source)
	assert.Equal(t, 5, s.Score(Input{Source: "carrier-pigeon"}).Breakdown.Source)
	assert.Equal(t, 5, s.Score(Input{}).Breakdown.Source)
}

func TestProfileCompleteness(t *testing.T) {
	s := newTestScorer(t)

	assert.Equal(t, 0, s.Score(Input{}).Breakdown.Profile)
	assert.Equal(t, 10, s.Score(Input{LinkedInURL: "https://linkedin.com/in/x"}).Breakdown.Profile)
	assert.Equal(t, 15, s.Score(Input{LinkedInURL: "https://linkedin.com/in/x", Industry: "saas"}).Breakdown.Profile)
	assert.Equal(t, 15, s.Score(Input{LinkedInURL: "x", Industry: "saas", Website: "https://x.io"}).Breakdown.Profile)
	assert.Equal(t, 10, s.Score(Input{Industry: "saas", Website: "https://x.io"}).Breakdown.Profile)
}

func TestEngagementIsZeroWithoutSignal(t *testing.T) {
	s := newTestScorer(t)

	assert.Equal(t, 0, s.Score(Input{Title: "CEO"}).Breakdown.Engagement)
	assert.Equal(t, 15, s.Score(Input{EngagementSignal: "replied"}).Breakdown.Engagement)
	assert.Equal(t, 0, s.Score(Input{EngagementSignal: "sent_a_fax"}).Breakdown.Engagement)

	pts, known := s.EngagementPoints("clicked link")
	assert.True(t, known)
	assert.Equal(t, 10, pts)
}

func TestTierBoundaries(t *testing.T) {
	cases := map[int]entity.Tier{
		100: entity.TierHot,
		80:  entity.TierHot,
		79:  entity.TierWarm,
		60:  entity.TierWarm,
		59:  entity.TierCool,
		40:  entity.TierCool,
		39:  entity.TierCold,
		0:   entity.TierCold,
	}
	for score, want := range cases {
		assert.Equal(t, want, TierFor(score), "score %d", score)
	}
}

func TestScoreStaysInRangeAndIsDeterministic(t *testing.T) {
	s := newTestScorer(t)

	in := Input{
		Title:            "CEO & Founder",
		Company:          "Startup Ventures Capital",
		Source:           "referral",
		LinkedInURL:      "https://linkedin.com/in/max",
		Industry:         "saas",
		Website:          "https://max.io",
		EngagementSignal: "replied",
	}
	first := s.Score(in)
	assert.Equal(t, 98, first.Total)
	assert.Equal(t, entity.TierHot, first.Tier)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Score(in))
	}

	for i := 0; i < 50; i++ {
		res := s.Score(Input{Title: fmt.Sprintf("title %d", i), Source: fmt.Sprintf("src-%d", i)})
		assert.GreaterOrEqual(t, res.Total, 0)
		assert.LessOrEqual(t, res.Total, 100)
		assert.Equal(t, TierFor(res.Total), res.Tier)
	}
}

func TestSarahScenario(t *testing.T) {
	s := newTestScorer(t)

	lead := &entity.Lead{
		Email:       "sarah@startup.com",
		Title:       "CEO & Founder",
		Company:     "TechStartup Inc",
		Source:      "referral",
		LinkedInURL: "https://linkedin.com/in/sarah",
	}
	res := s.Apply(lead)

	assert.Equal(t, 30, res.Breakdown.Title)
	assert.GreaterOrEqual(t, res.Breakdown.Company, 10)
	assert.Equal(t, 20, res.Breakdown.Source)
	assert.Equal(t, 10, res.Breakdown.Profile)
	assert.GreaterOrEqual(t, res.Total, 70)
	assert.Equal(t, 75, lead.Score)
	if lead.Score >= 80 {
		assert.Equal(t, entity.TierHot, lead.Tier)
	} else {
		assert.Equal(t, entity.TierWarm, lead.Tier)
	}
}

func TestParseRulesRejectsOutOfRangePoints(t *testing.T) {
	_, err := ParseRules([]byte("title:\n  - { keyword: ceo, points: 31 }\n"))
	assert.Error(t, err)

	_, err = ParseRules([]byte("sources:\n  referral: 25\n"))
	assert.Error(t, err)

	_, err = ParseRules([]byte("   "))
	assert.Error(t, err)
}

func TestLoadRulesDefaultsWhenPathEmpty(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.NotEmpty(t, rules.Title)
	assert.Equal(t, 5, rules.SourceDefault)
}
