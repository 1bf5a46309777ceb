package entity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrDispatchInProgress = errors.New("dispatch already in progress")
	ErrDispatchNotFound   = errors.New("dispatch not found")
)

type DispatchState string

const (
	DispatchPending DispatchState = "pending"
	DispatchSent    DispatchState = "sent"
)

// DispatchedAction is the audit record of one sequence step sent to a lead.
type DispatchedAction struct {
	IdempotencyKey string        `json:"idempotency_key"`
	LeadID         string        `json:"lead_id"`
	StepIndex      int           `json:"step_index"`
	StepName       string        `json:"step_name"`
	Channel        Channel       `json:"channel"`
	Timestamp      time.Time     `json:"timestamp"`
	MessageID      string        `json:"message_id,omitempty"`
	State          DispatchState `json:"state"`
}

// DispatchKey identifies a step of one enrollment. A restarted sequence gets a
// new enrollment time and therefore new keys.
func DispatchKey(leadID string, step int, enrolledAt time.Time) string {
	return fmt.Sprintf("%s:%d:%d", leadID, step, enrolledAt.Unix())
}

type DispatchLogInterface interface {
	// Claim records a pending dispatch before anything is sent. It returns the
	// state already on record: DispatchSent means the message went out and only
	// the commit is missing. A pending claim younger than lease yields
	// ErrDispatchInProgress.
	Claim(ctx context.Context, action *DispatchedAction, lease time.Duration) (DispatchState, error)
	MarkSent(ctx context.Context, key, messageID string, at time.Time) error
	Release(ctx context.Context, key string) error
	ListByLead(ctx context.Context, leadID string) ([]DispatchedAction, error)
}
