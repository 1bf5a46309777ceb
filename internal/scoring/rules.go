package scoring

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category caps. A rule table may never award more than its category allows.
const (
	MaxTitle      = 30
	MaxCompany    = 20
	MaxSource     = 20
	MaxProfile    = 15
	MaxEngagement = 15
)

//go:embed rules.yaml
var defaultRulesYAML []byte

type KeywordRule struct {
	Keyword   string `yaml:"keyword"`
	Points    int    `yaml:"points"`
	WholeWord bool   `yaml:"whole_word"`
}

type ProfileRules struct {
	LinkedIn        int `yaml:"linkedin"`
	EnrichmentField int `yaml:"enrichment_field"`
}

// Rules is the immutable scoring configuration handed to a Scorer.
type Rules struct {
	Title          []KeywordRule  `yaml:"title"`
	TitleDefault   int            `yaml:"title_default"`
	Company        []KeywordRule  `yaml:"company"`
	CompanyDefault int            `yaml:"company_default"`
	Sources        map[string]int `yaml:"sources"`
	SourceDefault  int            `yaml:"source_default"`
	Profile        ProfileRules   `yaml:"profile"`
	Engagement     map[string]int `yaml:"engagement"`
}

// ParseRules decodes and validates a YAML rules payload.
func ParseRules(data []byte) (Rules, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Rules{}, fmt.Errorf("scoring: rules payload is empty")
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("scoring: decode rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r.normalized(), nil
}

// LoadRules reads rules from path, or the embedded defaults when path is empty.
func LoadRules(path string) (Rules, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("scoring: read %s: %w", path, err)
	}
	r, err := ParseRules(data)
	if err != nil {
		return Rules{}, fmt.Errorf("scoring: %s: %w", path, err)
	}
	return r, nil
}

func DefaultRules() (Rules, error) {
	return ParseRules(defaultRulesYAML)
}

func (r Rules) Validate() error {
	if err := validateKeywords("title", r.Title, r.TitleDefault, MaxTitle); err != nil {
		return err
	}
	if err := validateKeywords("company", r.Company, r.CompanyDefault, MaxCompany); err != nil {
		return err
	}
	for tag, pts := range r.Sources {
		if pts < 0 || pts > MaxSource {
			return fmt.Errorf("scoring: source %q awards %d, allowed 0-%d", tag, pts, MaxSource)
		}
	}
	if r.SourceDefault < 0 || r.SourceDefault > MaxSource {
		return fmt.Errorf("scoring: source_default %d out of range 0-%d", r.SourceDefault, MaxSource)
	}
	if r.Profile.LinkedIn < 0 || r.Profile.LinkedIn > MaxProfile || r.Profile.EnrichmentField < 0 {
		return fmt.Errorf("scoring: profile points out of range")
	}
	for signal, pts := range r.Engagement {
		if pts < 0 || pts > MaxEngagement {
			return fmt.Errorf("scoring: engagement %q awards %d, allowed 0-%d", signal, pts, MaxEngagement)
		}
	}
	return nil
}

func validateKeywords(category string, rules []KeywordRule, def, max int) error {
	for i, rule := range rules {
		if strings.TrimSpace(rule.Keyword) == "" {
			return fmt.Errorf("scoring: %s rule %d has no keyword", category, i)
		}
		if rule.Points < 0 || rule.Points > max {
			return fmt.Errorf("scoring: %s rule %q awards %d, allowed 0-%d", category, rule.Keyword, rule.Points, max)
		}
	}
	if def < 0 || def > max {
		return fmt.Errorf("scoring: %s default %d out of range 0-%d", category, def, max)
	}
	return nil
}

// normalized returns a copy with lower-cased keys so lookups never allocate.
func (r Rules) normalized() Rules {
	out := r
	out.Title = lowerRules(r.Title)
	out.Company = lowerRules(r.Company)
	out.Sources = make(map[string]int, len(r.Sources))
	for k, v := range r.Sources {
		out.Sources[normalizeTag(k)] = v
	}
	out.Engagement = make(map[string]int, len(r.Engagement))
	for k, v := range r.Engagement {
		out.Engagement[normalizeTag(k)] = v
	}
	return out
}

func lowerRules(in []KeywordRule) []KeywordRule {
	out := make([]KeywordRule, len(in))
	for i, r := range in {
		r.Keyword = strings.ToLower(strings.TrimSpace(r.Keyword))
		out[i] = r
	}
	return out
}

func normalizeTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
