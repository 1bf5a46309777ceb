package entity

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrLeadNotFound       = errors.New("lead not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrStoreWriteFailed   = errors.New("lead store write failed")
)

type Service string

const (
	ServiceLinkedInPresence Service = "linkedin_presence"
	ServiceCustomerResearch Service = "customer_voice_research"
	ServiceBoth             Service = "both"
	ServiceUnknown          Service = "unknown"
)

// ParseService maps a free-form "interested in" answer to a Service. When the
// answer is blank a LinkedIn source is taken as a hint for the presence offer.
func ParseService(raw, source string) Service {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch Service(v) {
	case ServiceLinkedInPresence, ServiceCustomerResearch, ServiceBoth, ServiceUnknown:
		return Service(v)
	}

	wantsPresence := containsAny(v, "linkedin", "presence", "zag")
	wantsResearch := containsAny(v, "research", "validation", "voice")
	switch {
	case strings.Contains(v, "both") || (wantsPresence && wantsResearch):
		return ServiceBoth
	case wantsPresence:
		return ServiceLinkedInPresence
	case wantsResearch:
		return ServiceCustomerResearch
	}

	if v == "" && strings.Contains(strings.ToLower(source), "linkedin") {
		return ServiceLinkedInPresence
	}
	return ServiceUnknown
}

type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCool Tier = "cool"
	TierCold Tier = "cold"
)

type Status string

const (
	StatusNew          Status = "new"
	StatusActive       Status = "active"
	StatusPaused       Status = "paused"
	StatusCompleted    Status = "completed"
	StatusUnsubscribed Status = "unsubscribed"
)

// Terminal reports whether no further outreach can be scheduled.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusUnsubscribed
}

type Audience string

const (
	AudienceB2BFounder Audience = "b2b_founder"
	AudienceB2CFounder Audience = "b2c_founder"
	AudienceVCInvestor Audience = "vc_investor"
	AudienceConsultant Audience = "consultant_coach"
	AudienceGeneric    Audience = "generic"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelLinkedIn Channel = "linkedin"
)

// LeadAttributes is the normalized bundle an inbound source hands to the core.
// Vendor specific field mapping happens before this point.
type LeadAttributes struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	FirstName    string `json:"first_name,omitempty" validate:"max=100"`
	LastName     string `json:"last_name,omitempty" validate:"max=100"`
	Company      string `json:"company,omitempty" validate:"max=200"`
	Title        string `json:"title,omitempty" validate:"max=200"`
	LinkedInURL  string `json:"linkedin_url,omitempty" validate:"omitempty,max=500"`
	InterestedIn string `json:"interested_in,omitempty" validate:"max=100"`
	Source       string `json:"source,omitempty" validate:"max=100"`
	Industry     string `json:"industry,omitempty" validate:"max=100"`
	Website      string `json:"website,omitempty" validate:"max=500"`
}

type Lead struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name,omitempty"`
	LastName         string     `json:"last_name,omitempty"`
	Company          string     `json:"company,omitempty"`
	Title            string     `json:"title,omitempty"`
	LinkedInURL      string     `json:"linkedin_url,omitempty"`
	Industry         string     `json:"industry,omitempty"`
	Website          string     `json:"website,omitempty"`
	InterestedIn     Service    `json:"interested_in"`
	Source           string     `json:"source"`
	Audience         Audience   `json:"audience"`
	Score            int        `json:"score"`
	Tier             Tier       `json:"tier"`
	EngagementSignal string     `json:"engagement_signal,omitempty"`
	SequenceStep     int        `json:"sequence_step"`
	Status           Status     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	EnrolledAt       *time.Time `json:"enrolled_at,omitempty"`
	LastContactedAt  *time.Time `json:"last_contacted_at,omitempty"`
	NextActionAt     *time.Time `json:"next_action_at,omitempty"`
}

// NormalizeEmail is the dedup key form of an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Merge copies every non-empty incoming attribute onto the lead. Empty values
// never erase what is already stored.
func (l *Lead) Merge(attrs LeadAttributes) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&l.FirstName, attrs.FirstName)
	set(&l.LastName, attrs.LastName)
	set(&l.Company, attrs.Company)
	set(&l.Title, attrs.Title)
	set(&l.LinkedInURL, attrs.LinkedInURL)
	set(&l.Industry, attrs.Industry)
	set(&l.Website, attrs.Website)
	set(&l.Source, attrs.Source)

	if strings.TrimSpace(attrs.InterestedIn) != "" || l.InterestedIn == "" {
		l.InterestedIn = ParseService(attrs.InterestedIn, l.Source)
	}
}

func (l *Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// EmailDomain returns the part after "@" or an empty string.
func (l *Lead) EmailDomain() string {
	if i := strings.LastIndex(l.Email, "@"); i >= 0 {
		return l.Email[i+1:]
	}
	return ""
}

// Clone returns a deep copy; callers outside the store only ever see clones.
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	c := *l
	c.EnrolledAt = cloneTime(l.EnrolledAt)
	c.LastContactedAt = cloneTime(l.LastContactedAt)
	c.NextActionAt = cloneTime(l.NextActionAt)
	return &c
}

// IsDue reports whether the lead should be picked by an advance pass at now.
func (l *Lead) IsDue(now time.Time) bool {
	return l.Status == StatusActive && l.NextActionAt != nil && !l.NextActionAt.After(now)
}

type LeadFilter struct {
	Tier      Tier
	Status    Status
	Service   Service
	DueBefore *time.Time
}

// Matches applies every set field with AND semantics.
func (f LeadFilter) Matches(l *Lead) bool {
	if f.Tier != "" && l.Tier != f.Tier {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.Service != "" && l.InterestedIn != f.Service {
		return false
	}
	if f.DueBefore != nil && (l.NextActionAt == nil || l.NextActionAt.After(*f.DueBefore)) {
		return false
	}
	return true
}

// LeadMutation is applied to a private copy of a lead inside its critical section.
type LeadMutation func(lead *Lead) error

// UpsertHook runs inside the upsert critical section after the merge. previous
// is nil when the lead was just created.
type UpsertHook func(lead *Lead, previous *Lead) error

type LeadRepositoryInterface interface {
	LoadAll(ctx context.Context) ([]*Lead, error)
	Save(ctx context.Context, lead *Lead) error
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
