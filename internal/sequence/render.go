package sequence

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/xavierca1/zag-leads/internal/entity"
)

// Message is a rendered step, ready for a delivery channel. Subject is empty
// for LinkedIn steps.
type Message struct {
	StepName string         `json:"step_name"`
	Channel  entity.Channel `json:"channel"`
	Subject  string         `json:"subject,omitempty"`
	Body     string         `json:"body"`
}

// TemplateData is what step templates can reference.
type TemplateData struct {
	FirstName string
	LastName  string
	Company   string
	Title     string
	Signature string
}

func dataFor(l *entity.Lead, signature string) TemplateData {
	or := func(v, def string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	}
	return TemplateData{
		FirstName: or(l.FirstName, "there"),
		LastName:  l.LastName,
		Company:   or(l.Company, "your company"),
		Title:     or(l.Title, "your role"),
		Signature: signature,
	}
}

func compile(name string, src TemplateSource) (compiled, error) {
	var ct compiled
	if strings.TrimSpace(src.Body) == "" {
		return ct, fmt.Errorf("sequence: template %q has an empty body", name)
	}
	var err error
	ct.body, err = template.New(name + ".body").Option("missingkey=error").Parse(src.Body)
	if err != nil {
		return ct, fmt.Errorf("sequence: template %q body: %w", name, err)
	}
	if src.Subject != "" {
		ct.subject, err = template.New(name + ".subject").Option("missingkey=error").Parse(src.Subject)
		if err != nil {
			return ct, fmt.Errorf("sequence: template %q subject: %w", name, err)
		}
	}
	return ct, nil
}

// Render fills the step's template with the lead's details.
func (c *Catalog) Render(step Step, l *entity.Lead) (Message, error) {
	ct, ok := c.templates[step.Template]
	if !ok {
		return Message{}, fmt.Errorf("sequence: unknown template %q", step.Template)
	}
	data := dataFor(l, c.signature)

	msg := Message{StepName: step.Name, Channel: step.Channel}
	var buf bytes.Buffer
	if err := ct.body.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("sequence: render %q: %w", step.Template, err)
	}
	msg.Body = strings.TrimSpace(buf.String())

	if ct.subject != nil && step.Channel == entity.ChannelEmail {
		buf.Reset()
		if err := ct.subject.Execute(&buf, data); err != nil {
			return Message{}, fmt.Errorf("sequence: render %q subject: %w", step.Template, err)
		}
		msg.Subject = strings.TrimSpace(buf.String())
	}
	if step.Channel == entity.ChannelEmail && msg.Subject == "" {
		msg.Subject = fmt.Sprintf("Following up, %s", data.FirstName)
	}
	return msg, nil
}
