package leadstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xavierca1/zag-leads/internal/entity"
)

// MemoryRepository keeps leads in process. Used by tests and STORE_DRIVER=memory.
type MemoryRepository struct {
	mu    sync.Mutex
	leads map[string]*entity.Lead
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{leads: make(map[string]*entity.Lead)}
}

func (r *MemoryRepository) LoadAll(ctx context.Context) ([]*entity.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Lead, 0, len(r.leads))
	for _, l := range r.leads {
		out = append(out, l.Clone())
	}
	return out, nil
}

func (r *MemoryRepository) Save(ctx context.Context, lead *entity.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := entity.NormalizeEmail(lead.Email)
	for id, l := range r.leads {
		if id != lead.ID && entity.NormalizeEmail(l.Email) == email {
			return entity.ErrEmailAlreadyExists
		}
	}
	r.leads[lead.ID] = lead.Clone()
	return nil
}

type MemoryDispatchLog struct {
	mu      sync.Mutex
	actions map[string]entity.DispatchedAction
}

func NewMemoryDispatchLog() *MemoryDispatchLog {
	return &MemoryDispatchLog{actions: make(map[string]entity.DispatchedAction)}
}

func (d *MemoryDispatchLog) Claim(ctx context.Context, action *entity.DispatchedAction, lease time.Duration) (entity.DispatchState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.actions[action.IdempotencyKey]; ok {
		if existing.State == entity.DispatchSent {
			*action = existing
			return entity.DispatchSent, nil
		}
		if action.Timestamp.Sub(existing.Timestamp) < lease {
			return "", entity.ErrDispatchInProgress
		}
	}
	action.State = entity.DispatchPending
	d.actions[action.IdempotencyKey] = *action
	return entity.DispatchPending, nil
}

func (d *MemoryDispatchLog) MarkSent(ctx context.Context, key, messageID string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.actions[key]
	if !ok {
		return entity.ErrDispatchNotFound
	}
	a.State = entity.DispatchSent
	a.MessageID = messageID
	a.Timestamp = at
	d.actions[key] = a
	return nil
}

// Release drops a pending claim so the step can be retried. Sent records stay.
func (d *MemoryDispatchLog) Release(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.actions[key]; ok && a.State == entity.DispatchPending {
		delete(d.actions, key)
	}
	return nil
}

func (d *MemoryDispatchLog) ListByLead(ctx context.Context, leadID string) ([]entity.DispatchedAction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []entity.DispatchedAction
	for _, a := range d.actions {
		if a.LeadID == leadID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].StepIndex < out[j].StepIndex
	})
	return out, nil
}
