// Package apiclient drives the lead API from other processes. The API owns
// the lead store; everything else goes through it.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/usecase"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, adminToken string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   adminToken,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

type outreachRunResponse struct {
	Success       bool                      `json:"success"`
	OutreachCount int                       `json:"outreach_count"`
	Actions       []entity.DispatchedAction `json:"actions"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunOutreach asks the API for one advance pass. The API decides what is due
// using its own clock.
func (c *Client) RunOutreach(ctx context.Context) ([]entity.DispatchedAction, error) {
	var out outreachRunResponse
	if err := c.do(ctx, http.MethodPost, "/api/outreach/run", &out); err != nil {
		return nil, err
	}
	return out.Actions, nil
}

func (c *Client) PipelineSummary(ctx context.Context) (usecase.PipelineSummary, error) {
	var out usecase.PipelineSummary
	err := c.do(ctx, http.MethodGet, "/api/pipeline", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		if json.Unmarshal(raw, &e) == nil && e.Code != "" {
			return fmt.Errorf("apiclient: %s %s: status %d: %s: %s", method, path, resp.StatusCode, e.Code, e.Message)
		}
		return fmt.Errorf("apiclient: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apiclient: decode %s: %w", path, err)
	}
	return nil
}
