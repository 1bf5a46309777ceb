package mail

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/usecase"
)

type captureSender struct {
	sent []*gomail.Message
	err  error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m...)
	return nil
}

func raw(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func newTestSender(enabled bool) (*EmailSender, *captureSender) {
	capture := &captureSender{}
	s := NewEmailSender("smtp.test", 587, "u", "p", "hello@zag.test", "Zag", enabled, nil).WithSender(capture)
	return s, capture
}

func TestSendOutreachBuildsMultipartMessage(t *testing.T) {
	s, capture := newTestSender(true)

	id, err := s.SendOutreach(context.Background(), OutreachEmail{
		To:             "sarah@startup.com",
		ToName:         "Sarah",
		Subject:        "Quick question",
		Body:           "Hi Sarah,\n\nShort note.\nSecond line.",
		IdempotencyKey: "lead-1:0:1772442000",
		UnsubscribeURL: "https://zag.test/unsubscribe/lead-1",
	})
	require.NoError(t, err)
	assert.Contains(t, id, "@zag.test>")

	require.Len(t, capture.sent, 1)
	m := capture.sent[0]
	assert.Equal(t, []string{"Quick question"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"lead-1:0:1772442000"}, m.GetHeader("X-Idempotency-Key"))
	assert.Equal(t, []string{id}, m.GetHeader("Message-ID"))
	assert.Equal(t, []string{"<https://zag.test/unsubscribe/lead-1>"}, m.GetHeader("List-Unsubscribe"))
	assert.Equal(t, []string{"List-Unsubscribe=One-Click"}, m.GetHeader("List-Unsubscribe-Post"))

	out := raw(t, m)
	assert.Contains(t, out, "text/plain")
	assert.Contains(t, out, "text/html")
	assert.Contains(t, out, "<br>")
}

func TestSendOutreachDryRunWhenDisabled(t *testing.T) {
	s, capture := newTestSender(false)

	id, err := s.SendOutreach(context.Background(), OutreachEmail{To: "a@b.io", Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Empty(t, capture.sent)
}

func TestSendOutreachWrapsSMTPErrors(t *testing.T) {
	s, capture := newTestSender(true)
	capture.err = errors.New("connection refused")

	_, err := s.SendOutreach(context.Background(), OutreachEmail{To: "a@b.io", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSendOperatorTaskSubject(t *testing.T) {
	s, capture := newTestSender(true)

	_, err := s.SendOperatorTask(context.Background(), OperatorTask{
		To:        "ops@zag.test",
		StepName:  "follow_up_2",
		LeadEmail: "sarah@startup.com",
		Body:      "Sarah - saw your recent work.",
	})
	require.NoError(t, err)
	require.Len(t, capture.sent, 1)
	assert.Equal(t, []string{"[LinkedIn] follow_up_2 for sarah@startup.com"}, capture.sent[0].GetHeader("Subject"))
}

func TestReportText(t *testing.T) {
	summary := usecase.PipelineSummary{
		GeneratedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Total:       3,
		DueNow:      1,
		ByStatus:    map[entity.Status]int{entity.StatusActive: 2, entity.StatusCompleted: 1},
		ByTier:      map[entity.Tier]int{entity.TierWarm: 3},
		HighPriority: []usecase.LeadSummary{
			{Email: "sarah@startup.com", Name: "Sarah Chen", Company: "TechStartup", Score: 75, Status: entity.StatusActive},
		},
	}

	text := ReportText(summary)
	assert.Contains(t, text, "3 leads, 1 due now")
	assert.Contains(t, text, "active")
	assert.Contains(t, text, "Sarah Chen")
	assert.Less(t, bytes.Index([]byte(text), []byte("active")), bytes.Index([]byte(text), []byte("completed")))

	s, capture := newTestSender(true)
	require.NoError(t, s.SendReport(context.Background(), "ops@zag.test", summary))
	require.Len(t, capture.sent, 1)
	assert.Equal(t, []string{"Lead pipeline report 2026-03-02"}, capture.sent[0].GetHeader("Subject"))
}

func TestParagraphs(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, paragraphs("a\nb\n\n\n\nc\n"))
}
