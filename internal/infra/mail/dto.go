package mail

import (
	"time"

	"gopkg.in/gomail.v2"

	"github.com/xavierca1/zag-leads/internal/infra/logger"
)

// Sender is satisfied by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	// Enabled false turns every send into a logged dry run.
	Enabled bool

	dialer Sender
	log    *logger.Logger
}

type OutreachEmail struct {
	To             string
	ToName         string
	Subject        string
	Body           string
	IdempotencyKey string
	UnsubscribeURL string
}

type OperatorTask struct {
	To             string
	StepName       string
	LeadName       string
	LeadEmail      string
	Company        string
	LinkedInURL    string
	Score          int
	Tier           string
	Body           string
	IdempotencyKey string
}

type reportRow struct {
	Label string
	Count int
}

type reportSection struct {
	Title string
	Rows  []reportRow
}

type reportLead struct {
	Name    string
	Email   string
	Company string
	Score   int
	Status  string
}

type reportData struct {
	GeneratedAt  time.Time
	Total        int
	DueNow       int
	Sections     []reportSection
	HighPriority []reportLead
}

type outreachData struct {
	Paragraphs     [][]string
	UnsubscribeURL string
}
