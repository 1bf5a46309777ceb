package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/xavierca1/zag-leads/internal/infra/logger"
	"github.com/xavierca1/zag-leads/internal/usecase"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func NewEmailSender(host string, port int, user, password, from, fromName string, enabled bool, log *logger.Logger) *EmailSender {
	if log == nil {
		log = logger.Discard()
	}
	return &EmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		FromName: fromName,
		Enabled:  enabled,
		dialer:   gomail.NewDialer(host, port, user, password),
		log:      log.WithComponent("mail"),
	}
}

// WithSender swaps the SMTP dialer, mostly for tests.
func (s *EmailSender) WithSender(d Sender) *EmailSender {
	s.dialer = d
	return s
}

// SendOutreach sends one sequence email with a plain text part and an HTML
// alternative. It returns the Message-ID it stamped on the email.
func (s *EmailSender) SendOutreach(ctx context.Context, e OutreachEmail) (string, error) {
	var html bytes.Buffer
	data := outreachData{Paragraphs: paragraphs(e.Body), UnsubscribeURL: e.UnsubscribeURL}
	if err := templates.ExecuteTemplate(&html, "outreach.html", data); err != nil {
		return "", fmt.Errorf("mail: render outreach: %w", err)
	}

	m := s.newMessage()
	m.SetAddressHeader("To", e.To, e.ToName)
	m.SetHeader("Subject", e.Subject)
	if e.IdempotencyKey != "" {
		m.SetHeader("X-Idempotency-Key", e.IdempotencyKey)
	}
	if e.UnsubscribeURL != "" {
		m.SetHeader("List-Unsubscribe", "<"+e.UnsubscribeURL+">")
		m.SetHeader("List-Unsubscribe-Post", "List-Unsubscribe=One-Click")
	}
	m.SetBody("text/plain", e.Body)
	m.AddAlternative("text/html", html.String())

	return s.send(ctx, m, e.To, e.Subject)
}

// SendOperatorTask asks a human to perform a LinkedIn touch.
func (s *EmailSender) SendOperatorTask(ctx context.Context, t OperatorTask) (string, error) {
	var html bytes.Buffer
	if err := templates.ExecuteTemplate(&html, "operator_task.html", t); err != nil {
		return "", fmt.Errorf("mail: render operator task: %w", err)
	}

	subject := fmt.Sprintf("[LinkedIn] %s for %s", t.StepName, displayName(t.LeadName, t.LeadEmail))
	m := s.newMessage()
	m.SetHeader("To", t.To)
	m.SetHeader("Subject", subject)
	if t.IdempotencyKey != "" {
		m.SetHeader("X-Idempotency-Key", t.IdempotencyKey)
	}
	m.SetBody("text/html", html.String())

	return s.send(ctx, m, t.To, subject)
}

// SendReport emails the pipeline summary.
func (s *EmailSender) SendReport(ctx context.Context, to string, summary usecase.PipelineSummary) error {
	var html bytes.Buffer
	if err := templates.ExecuteTemplate(&html, "pipeline_report.html", newReportData(summary)); err != nil {
		return fmt.Errorf("mail: render report: %w", err)
	}

	subject := "Lead pipeline report " + summary.GeneratedAt.Format("2006-01-02")
	m := s.newMessage()
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", ReportText(summary))
	m.AddAlternative("text/html", html.String())

	_, err := s.send(ctx, m, to, subject)
	return err
}

// ReportText is the plain text rendition of the pipeline summary.
func ReportText(summary usecase.PipelineSummary) string {
	data := newReportData(summary)
	var b strings.Builder
	fmt.Fprintf(&b, "Pipeline report %s\n", data.GeneratedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "%d leads, %d due now\n", data.Total, data.DueNow)
	for _, sec := range data.Sections {
		fmt.Fprintf(&b, "\n%s\n", sec.Title)
		for _, r := range sec.Rows {
			fmt.Fprintf(&b, "  %-26s %5d\n", r.Label, r.Count)
		}
	}
	if len(data.HighPriority) > 0 {
		b.WriteString("\nHigh priority\n")
		for _, l := range data.HighPriority {
			fmt.Fprintf(&b, "  %3d  %-30s %-24s %s\n", l.Score, displayName(l.Name, l.Email), l.Company, l.Status)
		}
	}
	return b.String()
}

func (s *EmailSender) newMessage() *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.From, s.FromName)
	return m
}

func (s *EmailSender) send(ctx context.Context, m *gomail.Message, to, subject string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(s.From))
	m.SetHeader("Message-ID", messageID)

	if !s.Enabled {
		s.log.Info("mail disabled, dry run", "to", to, "subject", subject, "message_id", messageID)
		return messageID, nil
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("mail: smtp send to %s: %w", to, err)
	}
	s.log.Debug("mail sent", "to", to, "message_id", messageID)
	return messageID, nil
}

func newReportData(summary usecase.PipelineSummary) reportData {
	data := reportData{
		GeneratedAt: summary.GeneratedAt,
		Total:       summary.Total,
		DueNow:      summary.DueNow,
		Sections: []reportSection{
			{Title: "By status", Rows: rowsOf(summary.ByStatus)},
			{Title: "By tier", Rows: rowsOf(summary.ByTier)},
			{Title: "By service", Rows: rowsOf(summary.ByService)},
			{Title: "By audience", Rows: rowsOf(summary.ByAudience)},
		},
	}
	for _, l := range summary.HighPriority {
		data.HighPriority = append(data.HighPriority, reportLead{
			Name:    l.Name,
			Email:   l.Email,
			Company: l.Company,
			Score:   l.Score,
			Status:  string(l.Status),
		})
	}
	return data
}

func rowsOf[K ~string](counts map[K]int) []reportRow {
	rows := make([]reportRow, 0, len(counts))
	for k, v := range counts {
		rows = append(rows, reportRow{Label: string(k), Count: v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Label < rows[j].Label
	})
	return rows
}

// paragraphs splits a plain text body on blank lines, keeping line breaks
// inside each paragraph.
func paragraphs(body string) [][]string {
	var out [][]string
	for _, block := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		out = append(out, strings.Split(block, "\n"))
	}
	return out
}

func displayName(name, email string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return email
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
