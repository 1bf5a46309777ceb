// Package leadstore is the in-memory arena of leads. Records are addressed by
// id, serialized per id, and written through to a repository before a change
// becomes visible to readers.
package leadstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/scoring"
)

var ErrInvariant = errors.New("lead invariant violated")

type Option func(*Store)

// WithClock overrides time.Now for CreatedAt/UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithStepLimit bounds SequenceStep by the length of the lead's sequence.
func WithStepLimit(limit func(l *entity.Lead) int) Option {
	return func(s *Store) { s.stepLimit = limit }
}

type Store struct {
	repo      entity.LeadRepositoryInterface
	scorer    *scoring.Scorer
	stepLimit func(l *entity.Lead) int
	now       func() time.Time

	mu      sync.RWMutex
	leads   map[string]*entity.Lead
	byEmail map[string]string

	idLocks    keyedMutex
	emailLocks keyedMutex
}

func New(repo entity.LeadRepositoryInterface, scorer *scoring.Scorer, opts ...Option) *Store {
	s := &Store{
		repo:    repo,
		scorer:  scorer,
		now:     time.Now,
		leads:   make(map[string]*entity.Lead),
		byEmail: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the arena with whatever the repository holds. Scores are
// recomputed so a rules change takes effect on restart.
func (s *Store) Load(ctx context.Context) (int, error) {
	leads, err := s.repo.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("leadstore: load: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = make(map[string]*entity.Lead, len(leads))
	s.byEmail = make(map[string]string, len(leads))
	for _, l := range leads {
		s.scorer.Apply(l)
		s.leads[l.ID] = l
		s.byEmail[entity.NormalizeEmail(l.Email)] = l.ID
	}
	return len(leads), nil
}

// Upsert merges attrs into the lead with the same email, or creates one. hook
// runs on the merged copy inside the same critical section; returning an error
// from it aborts the upsert with nothing written.
func (s *Store) Upsert(ctx context.Context, attrs entity.LeadAttributes, hook entity.UpsertHook) (*entity.Lead, bool, error) {
	email := entity.NormalizeEmail(attrs.Email)
	if email == "" {
		return nil, false, fmt.Errorf("leadstore: upsert without email")
	}
	unlockEmail := s.emailLocks.Lock(email)
	defer unlockEmail()

	s.mu.RLock()
	id, exists := s.byEmail[email]
	s.mu.RUnlock()

	if exists {
		unlock := s.idLocks.Lock(id)
		defer unlock()

		current, err := s.current(id)
		if err != nil {
			return nil, false, err
		}
		next := current.Clone()
		next.Merge(attrs)
		if hook != nil {
			if err := hook(next, current.Clone()); err != nil {
				return nil, false, err
			}
		}
		if err := s.commit(ctx, current, next); err != nil {
			return nil, false, err
		}
		return next.Clone(), false, nil
	}

	now := s.now().UTC()
	next := &entity.Lead{
		ID:        uuid.NewString(),
		Email:     email,
		Status:    entity.StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	unlock := s.idLocks.Lock(next.ID)
	defer unlock()

	next.Merge(attrs)
	if hook != nil {
		if err := hook(next, nil); err != nil {
			return nil, false, err
		}
	}
	if err := s.commit(ctx, nil, next); err != nil {
		return nil, false, err
	}
	return next.Clone(), true, nil
}

// Update applies mutation to a private copy of the lead and commits it. A
// mutation error leaves the lead untouched and is returned as is.
func (s *Store) Update(ctx context.Context, id string, mutation entity.LeadMutation) (*entity.Lead, error) {
	unlock := s.idLocks.Lock(id)
	defer unlock()

	current, err := s.current(id)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if err := mutation(next); err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Email = current.Email
	next.CreatedAt = current.CreatedAt

	if err := s.commit(ctx, current, next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (s *Store) Get(id string) (*entity.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, entity.ErrLeadNotFound
	}
	return l.Clone(), nil
}

func (s *Store) GetByEmail(email string) (*entity.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[entity.NormalizeEmail(email)]
	if !ok {
		return nil, entity.ErrLeadNotFound
	}
	return s.leads[id].Clone(), nil
}

// List returns copies of every matching lead, oldest first.
func (s *Store) List(filter entity.LeadFilter) []*entity.Lead {
	s.mu.RLock()
	out := make([]*entity.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		if filter.Matches(l) {
			out = append(out, l.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leads)
}

func (s *Store) current(id string) (*entity.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, entity.ErrLeadNotFound
	}
	return l, nil
}

// commit must be called with the id lock held. previous is nil for inserts.
func (s *Store) commit(ctx context.Context, previous, next *entity.Lead) error {
	if err := s.enforce(next); err != nil {
		return err
	}
	next.UpdatedAt = s.now().UTC()

	if err := s.repo.Save(ctx, next); err != nil {
		if errors.Is(err, entity.ErrEmailAlreadyExists) {
			return err
		}
		return fmt.Errorf("%w: %w", entity.ErrStoreWriteFailed, err)
	}

	s.mu.Lock()
	s.leads[next.ID] = next
	if previous == nil {
		s.byEmail[entity.NormalizeEmail(next.Email)] = next.ID
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) enforce(l *entity.Lead) error {
	s.scorer.Apply(l)

	if l.Status.Terminal() {
		l.NextActionAt = nil
	} else if l.Status == entity.StatusActive && l.NextActionAt == nil {
		return fmt.Errorf("%w: active lead %s has no next action", ErrInvariant, l.ID)
	}
	if l.SequenceStep < 0 {
		return fmt.Errorf("%w: negative sequence step for %s", ErrInvariant, l.ID)
	}
	if s.stepLimit != nil {
		if limit := s.stepLimit(l); l.SequenceStep > limit {
			return fmt.Errorf("%w: step %d past sequence length %d for %s", ErrInvariant, l.SequenceStep, limit, l.ID)
		}
	}
	return nil
}
