package handlers

import (
	"fmt"
	"strings"

	"github.com/xavierca1/zag-leads/internal/entity"
)

// fieldAliases lists, per attribute, the form field names seen in the wild.
// The first non-empty alias wins.
var fieldAliases = []struct {
	set     func(*entity.LeadAttributes, string)
	aliases []string
}{
	{func(a *entity.LeadAttributes, v string) { a.Email = v }, []string{"email", "email_address", "emailAddress", "Email", "EMAIL", "e-mail"}},
	{func(a *entity.LeadAttributes, v string) { a.FirstName = v }, []string{"first_name", "firstName", "first", "First Name", "fname", "given_name"}},
	{func(a *entity.LeadAttributes, v string) { a.LastName = v }, []string{"last_name", "lastName", "last", "Last Name", "lname", "family_name", "surname"}},
	{func(a *entity.LeadAttributes, v string) { a.Company = v }, []string{"company", "company_name", "companyName", "Company", "organization", "org"}},
	{func(a *entity.LeadAttributes, v string) { a.Title = v }, []string{"title", "job_title", "jobTitle", "role", "position", "Job Title"}},
	{func(a *entity.LeadAttributes, v string) { a.LinkedInURL = v }, []string{"linkedin_url", "linkedinUrl", "linkedin", "LinkedIn", "linkedin_profile"}},
	{func(a *entity.LeadAttributes, v string) { a.InterestedIn = v }, []string{"interested_in", "interestedIn", "service", "interest", "Service Interest"}},
	{func(a *entity.LeadAttributes, v string) { a.Source = v }, []string{"source", "utm_source", "referrer", "lead_source"}},
	{func(a *entity.LeadAttributes, v string) { a.Industry = v }, []string{"industry", "Industry", "sector"}},
	{func(a *entity.LeadAttributes, v string) { a.Website = v }, []string{"website", "Website", "company_website", "url"}},
}

// attributesFromForm maps a flat form submission onto LeadAttributes. A
// single "name" field is split into first and last name.
func attributesFromForm(data map[string]any) entity.LeadAttributes {
	var attrs entity.LeadAttributes
	for _, f := range fieldAliases {
		for _, alias := range f.aliases {
			if v := stringValue(data[alias]); v != "" {
				f.set(&attrs, v)
				break
			}
		}
	}
	if attrs.FirstName == "" {
		for _, key := range []string{"name", "Name", "full_name", "fullName"} {
			if full := stringValue(data[key]); full != "" {
				first, last, _ := strings.Cut(full, " ")
				attrs.FirstName = first
				if attrs.LastName == "" {
					attrs.LastName = strings.TrimSpace(last)
				}
				break
			}
		}
	}
	return attrs
}

// labelledField is one question/answer pair from a hosted form.
type labelledField struct {
	Label string
	Value string
}

// attributesFromLabels maps fields by keywords found in their label, for form
// builders that identify answers by question text.
func attributesFromLabels(fields []labelledField) entity.LeadAttributes {
	var attrs entity.LeadAttributes
	for _, f := range fields {
		label := strings.ToLower(f.Label)
		v := strings.TrimSpace(f.Value)
		if v == "" {
			continue
		}
		switch {
		case strings.Contains(label, "email"):
			attrs.Email = v
		case strings.Contains(label, "linkedin"):
			attrs.LinkedInURL = v
		case strings.Contains(label, "first"):
			attrs.FirstName = v
		case strings.Contains(label, "last"):
			attrs.LastName = v
		case strings.Contains(label, "full name") || label == "name":
			first, last, _ := strings.Cut(v, " ")
			attrs.FirstName, attrs.LastName = first, strings.TrimSpace(last)
		case strings.Contains(label, "company"):
			attrs.Company = v
		case strings.Contains(label, "title") || strings.Contains(label, "role"):
			attrs.Title = v
		case strings.Contains(label, "interest") || strings.Contains(label, "service"):
			attrs.InterestedIn = v
		case strings.Contains(label, "industry"):
			attrs.Industry = v
		case strings.Contains(label, "website"):
			attrs.Website = v
		}
	}
	return attrs
}

type webflowPayload struct {
	Data map[string]any `json:"data"`
}

func (p webflowPayload) attributes(raw map[string]any) entity.LeadAttributes {
	data := p.Data
	if data == nil {
		data = raw
	}
	attrs := attributesFromForm(data)
	attrs.Source = "webflow"
	return attrs
}

type typeformPayload struct {
	FormResponse struct {
		Definition struct {
			Fields []struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"fields"`
		} `json:"definition"`
		Answers []struct {
			Field struct {
				ID string `json:"id"`
			} `json:"field"`
			Email  string `json:"email"`
			Text   string `json:"text"`
			URL    string `json:"url"`
			Choice *struct {
				Label string `json:"label"`
			} `json:"choice"`
		} `json:"answers"`
	} `json:"form_response"`
}

func (p typeformPayload) attributes() entity.LeadAttributes {
	titles := make(map[string]string, len(p.FormResponse.Definition.Fields))
	for _, f := range p.FormResponse.Definition.Fields {
		titles[f.ID] = f.Title
	}
	fields := make([]labelledField, 0, len(p.FormResponse.Answers))
	for _, a := range p.FormResponse.Answers {
		var v string
		switch {
		case a.Email != "":
			v = a.Email
		case a.Text != "":
			v = a.Text
		case a.URL != "":
			v = a.URL
		case a.Choice != nil:
			v = a.Choice.Label
		}
		fields = append(fields, labelledField{Label: titles[a.Field.ID], Value: v})
	}
	attrs := attributesFromLabels(fields)
	attrs.Source = "typeform"
	return attrs
}

type tallyPayload struct {
	Data struct {
		Fields []struct {
			Label string `json:"label"`
			Value any    `json:"value"`
		} `json:"fields"`
	} `json:"data"`
}

func (p tallyPayload) attributes() entity.LeadAttributes {
	fields := make([]labelledField, 0, len(p.Data.Fields))
	for _, f := range p.Data.Fields {
		fields = append(fields, labelledField{Label: f.Label, Value: stringValue(f.Value)})
	}
	attrs := attributesFromLabels(fields)
	attrs.Source = "tally"
	return attrs
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case float64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}
