// Package sequence holds the outreach catalog: which ordered steps a lead walks
// through for its service and audience, and the message copy for each step.
package sequence

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/xavierca1/zag-leads/internal/entity"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type Step struct {
	Name      string         `yaml:"name" json:"name"`
	DayOffset int            `yaml:"day" json:"day_offset"`
	Channel   entity.Channel `yaml:"channel" json:"channel"`
	Template  string         `yaml:"template" json:"template"`
}

type Sequence struct {
	Name     string          `yaml:"name" json:"name"`
	Service  entity.Service  `yaml:"service" json:"service"`
	Audience entity.Audience `yaml:"audience" json:"audience"`
	Steps    []Step          `yaml:"steps" json:"steps"`
}

type TemplateSource struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type document struct {
	Signature string                    `yaml:"signature"`
	Default   Sequence                  `yaml:"default"`
	Sequences []Sequence                `yaml:"sequences"`
	Templates map[string]TemplateSource `yaml:"templates"`
}

type key struct {
	service  entity.Service
	audience entity.Audience
}

type compiled struct {
	subject *template.Template
	body    *template.Template
}

// Catalog is immutable after Parse and safe for concurrent use.
type Catalog struct {
	signature string
	fallback  Sequence
	sequences map[key]Sequence
	templates map[string]compiled
	audiences []AudienceRule
}

// Parse decodes a YAML catalog, checks every sequence and compiles its templates.
func Parse(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("sequence: catalog payload is empty")
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sequence: decode catalog: %w", err)
	}

	c := &Catalog{
		signature: strings.TrimSpace(doc.Signature),
		sequences: make(map[key]Sequence, len(doc.Sequences)),
		templates: make(map[string]compiled, len(doc.Templates)),
		audiences: DefaultAudienceRules(),
	}

	for name, src := range doc.Templates {
		ct, err := compile(name, src)
		if err != nil {
			return nil, err
		}
		c.templates[name] = ct
	}

	if doc.Default.Name == "" {
		doc.Default.Name = "default"
	}
	if err := c.validate(doc.Default); err != nil {
		return nil, err
	}
	c.fallback = doc.Default

	for _, seq := range doc.Sequences {
		if seq.Service == "" || seq.Audience == "" {
			return nil, fmt.Errorf("sequence: %q needs both service and audience", seq.Name)
		}
		if err := c.validate(seq); err != nil {
			return nil, err
		}
		k := key{seq.Service, seq.Audience}
		if _, dup := c.sequences[k]; dup {
			return nil, fmt.Errorf("sequence: duplicate sequence for %s/%s", seq.Service, seq.Audience)
		}
		c.sequences[k] = seq
	}
	return c, nil
}

// Load reads a catalog from path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sequence: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("sequence: %s: %w", path, err)
	}
	return c, nil
}

func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

func (c *Catalog) validate(seq Sequence) error {
	if len(seq.Steps) == 0 {
		return fmt.Errorf("sequence: %q has no steps", seq.Name)
	}
	prev := 0
	for i, st := range seq.Steps {
		if st.DayOffset < 0 {
			return fmt.Errorf("sequence: %q step %d has negative offset", seq.Name, i)
		}
		if st.DayOffset < prev {
			return fmt.Errorf("sequence: %q step %d offset %d is before previous step (%d)", seq.Name, i, st.DayOffset, prev)
		}
		prev = st.DayOffset
		if st.Channel != entity.ChannelEmail && st.Channel != entity.ChannelLinkedIn {
			return fmt.Errorf("sequence: %q step %d has unknown channel %q", seq.Name, i, st.Channel)
		}
		if _, ok := c.templates[st.Template]; !ok {
			return fmt.Errorf("sequence: %q step %d references missing template %q", seq.Name, i, st.Template)
		}
	}
	return nil
}

// SequenceFor resolves (service, audience), then (service, generic), then the
// default sequence. The returned steps are a copy.
func (c *Catalog) SequenceFor(service entity.Service, audience entity.Audience) Sequence {
	seq, ok := c.sequences[key{service, audience}]
	if !ok {
		seq, ok = c.sequences[key{service, entity.AudienceGeneric}]
	}
	if !ok {
		seq = c.fallback
	}
	seq.Steps = append([]Step(nil), seq.Steps...)
	return seq
}

func (c *Catalog) StepsFor(service entity.Service, audience entity.Audience) []Step {
	return c.SequenceFor(service, audience).Steps
}

// StepAt returns the step at index for the lead's sequence; ok is false once
// the index is past the end.
func (c *Catalog) StepAt(service entity.Service, audience entity.Audience, index int) (Step, bool) {
	steps := c.StepsFor(service, audience)
	if index < 0 || index >= len(steps) {
		return Step{}, false
	}
	return steps[index], true
}

// Sequences lists every configured sequence plus the default, for diagnostics.
func (c *Catalog) Sequences() []Sequence {
	out := make([]Sequence, 0, len(c.sequences)+1)
	for _, s := range c.sequences {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return append(out, c.fallback)
}
