// Package attio mirrors leads into Attio as people records.
package attio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xavierca1/zag-leads/internal/infra/logger"
	"github.com/xavierca1/zag-leads/internal/infra/queue"
)

const DefaultBaseURL = "https://api.attio.com/v2"

var ErrNotConfigured = errors.New("attio: api key not configured")

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

func NewClient(apiKey, baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.WithComponent("attio"),
	}
}

// SyncLead upserts the person by email, links it to its company when the lead
// names one and, for dispatched steps, attaches a note describing what was
// sent.
func (c *Client) SyncLead(ctx context.Context, p queue.LeadSyncPayload) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}

	recordID, err := c.findPersonByEmail(ctx, p.Email)
	if err != nil {
		return fmt.Errorf("attio: find person: %w", err)
	}

	values := personValues(p)
	if company := strings.TrimSpace(p.Company); company != "" {
		companyID, err := c.findOrCreateCompany(ctx, company)
		if err != nil {
			return fmt.Errorf("attio: company %q: %w", company, err)
		}
		values["company"] = []recordReference{{TargetObject: "companies", TargetRecordID: companyID}}
	}

	if recordID == "" {
		recordID, err = c.createPerson(ctx, values)
		if err != nil {
			return fmt.Errorf("attio: create person: %w", err)
		}
		c.log.Info("attio person created", "record_id", recordID, "lead_id", p.LeadID)
	} else {
		if err := c.updatePerson(ctx, recordID, values); err != nil {
			return fmt.Errorf("attio: update person: %w", err)
		}
	}

	if p.Event == queue.EventStepDispatched {
		if err := c.createNote(ctx, recordID, p); err != nil {
			return fmt.Errorf("attio: create note: %w", err)
		}
	}
	return nil
}

func (c *Client) findPersonByEmail(ctx context.Context, email string) (string, error) {
	body := queryRequest{
		Filter: map[string]any{"email_addresses": email},
		Limit:  1,
	}
	var out recordsResponse
	if err := c.do(ctx, http.MethodPost, "/objects/people/records/query", body, &out); err != nil {
		return "", err
	}
	if len(out.Data) == 0 {
		return "", nil
	}
	return out.Data[0].ID.RecordID, nil
}

func (c *Client) createPerson(ctx context.Context, values map[string]any) (string, error) {
	var req recordRequest
	req.Data.Values = values
	var out recordResponse
	if err := c.do(ctx, http.MethodPost, "/objects/people/records", req, &out); err != nil {
		return "", err
	}
	if out.Data.ID.RecordID == "" {
		return "", errors.New("empty record id in response")
	}
	return out.Data.ID.RecordID, nil
}

func (c *Client) findOrCreateCompany(ctx context.Context, name string) (string, error) {
	var found recordsResponse
	query := queryRequest{Filter: map[string]any{"name": name}, Limit: 1}
	if err := c.do(ctx, http.MethodPost, "/objects/companies/records/query", query, &found); err != nil {
		return "", err
	}
	if len(found.Data) > 0 && found.Data[0].ID.RecordID != "" {
		return found.Data[0].ID.RecordID, nil
	}

	var req recordRequest
	req.Data.Values = map[string]any{"name": []companyName{{Value: name}}}
	var created recordResponse
	if err := c.do(ctx, http.MethodPost, "/objects/companies/records", req, &created); err != nil {
		return "", err
	}
	if created.Data.ID.RecordID == "" {
		return "", errors.New("empty record id in response")
	}
	c.log.Info("attio company created", "record_id", created.Data.ID.RecordID, "name", name)
	return created.Data.ID.RecordID, nil
}

func (c *Client) updatePerson(ctx context.Context, recordID string, values map[string]any) error {
	// email is the match key; PATCH must not append a second address
	delete(values, "email_addresses")
	var req recordRequest
	req.Data.Values = values
	return c.do(ctx, http.MethodPatch, "/objects/people/records/"+recordID, req, nil)
}

func (c *Client) createNote(ctx context.Context, recordID string, p queue.LeadSyncPayload) error {
	title := fmt.Sprintf("Outreach: %s (%s)", p.StepName, p.Channel)
	var content strings.Builder
	fmt.Fprintf(&content, "Step %s sent via %s on %s.", p.StepName, p.Channel, p.OccurredAt.Format(time.RFC3339))
	if p.Subject != "" {
		fmt.Fprintf(&content, "\nSubject: %s", p.Subject)
	}
	if p.MessageID != "" {
		fmt.Fprintf(&content, "\nMessage ID: %s", p.MessageID)
	}

	req := noteRequest{Data: noteData{
		ParentObject:   "people",
		ParentRecordID: recordID,
		Title:          title,
		Format:         "plaintext",
		Content:        content.String(),
	}}
	return c.do(ctx, http.MethodPost, "/notes", req, nil)
}

func personValues(p queue.LeadSyncPayload) map[string]any {
	values := map[string]any{
		"email_addresses": []string{p.Email},
		"lead_status":     p.Status,
		"lead_score":      p.Score,
		"lead_tier":       p.Tier,
		"sequence_step":   p.SequenceStep,
	}
	if p.FirstName != "" || p.LastName != "" {
		values["name"] = []personName{{
			FirstName: p.FirstName,
			LastName:  p.LastName,
			FullName:  strings.TrimSpace(p.FirstName + " " + p.LastName),
		}}
	}
	if p.Title != "" {
		values["job_title"] = p.Title
	}
	if p.LinkedInURL != "" {
		values["linkedin"] = p.LinkedInURL
	}
	if p.InterestedIn != "" {
		values["interested_in"] = p.InterestedIn
	}
	if p.Source != "" {
		values["lead_source"] = p.Source
	}
	return values
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
