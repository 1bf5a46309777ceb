package leadstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/scoring"
)

type flakyRepository struct {
	*MemoryRepository
	mu   sync.Mutex
	fail error
}

func (f *flakyRepository) Save(ctx context.Context, l *entity.Lead) error {
	f.mu.Lock()
	err := f.fail
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryRepository.Save(ctx, l)
}

func (f *flakyRepository) failWith(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func newScorer(t *testing.T) *scoring.Scorer {
	t.Helper()
	rules, err := scoring.DefaultRules()
	require.NoError(t, err)
	s, err := scoring.New(rules)
	require.NoError(t, err)
	return s
}

func newStore(t *testing.T) (*Store, *flakyRepository) {
	t.Helper()
	repo := &flakyRepository{MemoryRepository: NewMemoryRepository()}
	return New(repo, newScorer(t)), repo
}

func TestUpsertCreatesAndScores(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	lead, created, err := s.Upsert(ctx, entity.LeadAttributes{
		Email:   " Sarah@Startup.com ",
		Title:   "CEO & Founder",
		Company: "TechStartup Inc",
		Source:  "referral",
	}, nil)
	require.NoError(t, err)

	assert.True(t, created)
	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, "sarah@startup.com", lead.Email)
	assert.Equal(t, entity.StatusNew, lead.Status)
	assert.Equal(t, 65, lead.Score)
	assert.Equal(t, scoring.TierFor(lead.Score), lead.Tier)
	assert.Equal(t, 1, s.Count())
}

func TestUpsertMergesByEmailWithoutDuplicating(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	first, _, err := s.Upsert(ctx, entity.LeadAttributes{Email: "a@x.io", FirstName: "Ann", Company: "Acme"}, nil)
	require.NoError(t, err)

	second, created, err := s.Upsert(ctx, entity.LeadAttributes{Email: "A@X.IO", Title: "Founder", Company: ""}, nil)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ann", second.FirstName)
	assert.Equal(t, "Acme", second.Company)
	assert.Equal(t, "Founder", second.Title)
	assert.Greater(t, second.Score, first.Score)
	assert.Equal(t, 1, s.Count())
}

func TestUpsertHookSeesPreviousAndCanAbort(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, _, err := s.Upsert(ctx, entity.LeadAttributes{Email: "a@x.io"}, func(l, prev *entity.Lead) error {
		assert.Nil(t, prev)
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, _, err = s.Upsert(ctx, entity.LeadAttributes{Email: "a@x.io", Company: "Changed"}, func(l, prev *entity.Lead) error {
		require.NotNil(t, prev)
		assert.Equal(t, "Changed", l.Company)
		assert.Empty(t, prev.Company)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetByEmail("a@x.io")
	require.NoError(t, err)
	assert.Empty(t, got.Company)
}

func TestGetUnknownIDIsNotFound(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, entity.ErrLeadNotFound)

	_, err = s.Update(context.Background(), "missing", func(*entity.Lead) error { return nil })
	assert.ErrorIs(t, err, entity.ErrLeadNotFound)
}

func TestListAppliesFiltersWithAndSemantics(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mk := func(email, title, interest string, status entity.Status, next *time.Time) {
		_, _, err := s.Upsert(ctx, entity.LeadAttributes{Email: email, Title: title, InterestedIn: interest, Source: "referral"},
			func(l, _ *entity.Lead) error {
				l.Status = status
				l.NextActionAt = next
				return nil
			})
		require.NoError(t, err)
	}
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	mk("a@x.io", "CEO", "linkedin_presence", entity.StatusActive, &past)
	mk("b@x.io", "CEO", "customer_voice_research", entity.StatusActive, &past)
	mk("c@x.io", "Intern", "linkedin_presence", entity.StatusActive, &future)
	mk("d@x.io", "CEO", "linkedin_presence", entity.StatusPaused, &past)

	assert.Len(t, s.List(entity.LeadFilter{}), 4)
	assert.Len(t, s.List(entity.LeadFilter{Status: entity.StatusActive}), 3)
	assert.Len(t, s.List(entity.LeadFilter{Status: entity.StatusActive, Service: entity.ServiceLinkedInPresence}), 2)
	assert.Len(t, s.List(entity.LeadFilter{Status: entity.StatusActive, DueBefore: &now}), 2)

	due := s.List(entity.LeadFilter{Status: entity.StatusActive, Service: entity.ServiceLinkedInPresence, DueBefore: &now})
	require.Len(t, due, 1)
	assert.Equal(t, "a@x.io", due[0].Email)

	warm := s.List(entity.LeadFilter{Tier: entity.TierCold})
	for _, l := range warm {
		assert.Equal(t, entity.TierCold, l.Tier)
	}
}

func TestFailedWriteLeavesRecordUnchanged(t *testing.T) {
	s, repo := newStore(t)
	ctx := context.Background()

	lead, _, err := s.Upsert(ctx, entity.LeadAttributes{Email: "a@x.io", Company: "Acme"}, nil)
	require.NoError(t, err)

	repo.failWith(errors.New("disk full"))
	_, err = s.Update(ctx, lead.ID, func(l *entity.Lead) error {
		l.Company = "Other"
		l.SequenceStep = 2
		return nil
	})
	assert.ErrorIs(t, err, entity.ErrStoreWriteFailed)

	got, err := s.Get(lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Company)
	assert.Equal(t, 0, got.SequenceStep)

	_, _, err = s.Upsert(ctx, entity.LeadAttributes{Email: "new@x.io"}, nil)
	assert.ErrorIs(t, err, entity.ErrStoreWriteFailed)
	_, err = s.GetByEmail("new@x.io")
	assert.ErrorIs(t, err, entity.ErrLeadNotFound)
	assert.Equal(t, 1, s.Count())
}

func TestReturnedLeadsAreCopies(t *testing.T) {
	s, _ := newStore(t)
	lead, _, err := s.Upsert(context.Background(), entity.LeadAttributes{Email: "a@x.io", Company: "Acme"}, nil)
	require.NoError(t, err)

	lead.Company = "mutated"
	got, err := s.Get(lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Company)
}

func TestEnforcesInvariants(t *testing.T) {
	repo := NewMemoryRepository()
	s := New(repo, newScorer(t), WithStepLimit(func(*entity.Lead) int { return 4 }))
	ctx := context.Background()

	lead, _, err := s.Upsert(ctx, entity.LeadAttributes{Email: "a@x.io"}, nil)
	require.NoError(t, err)

	_, err = s.Update(ctx, lead.ID, func(l *entity.Lead) error {
		l.Status = entity.StatusActive
		return nil
	})
	assert.ErrorIs(t, err, ErrInvariant)

	_, err = s.Update(ctx, lead.ID, func(l *entity.Lead) error {
		l.SequenceStep = 5
		return nil
	})
	assert.ErrorIs(t, err, ErrInvariant)

	next := time.Now()
	done, err := s.Update(ctx, lead.ID, func(l *entity.Lead) error {
		l.Status = entity.StatusCompleted
		l.NextActionAt = &next
		l.Score = 99
		l.Tier = entity.TierHot
		return nil
	})
	require.NoError(t, err)
	assert.Nil(t, done.NextActionAt)
	assert.Equal(t, scoring.TierFor(done.Score), done.Tier)
	assert.NotEqual(t, 99, done.Score)
}

func TestUpdateCannotChangeIdentity(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	lead, _, err := s.Upsert(ctx, entity.LeadAttributes{Email: "a@x.io"}, nil)
	require.NoError(t, err)

	got, err := s.Update(ctx, lead.ID, func(l *entity.Lead) error {
		l.ID = "other"
		l.Email = "b@x.io"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)
	assert.Equal(t, "a@x.io", got.Email)
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	lead, _, err := s.Upsert(ctx, entity.LeadAttributes{Email: "a@x.io"}, nil)
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, lead.ID, func(l *entity.Lead) error {
				l.SequenceStep++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(lead.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.SequenceStep)
}

func TestConcurrentUpsertsOfSameEmailCreateOneLead(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.Upsert(ctx, entity.LeadAttributes{Email: "same@x.io"}, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.Count())
}

func TestLoadRestoresArena(t *testing.T) {
	repo := NewMemoryRepository()
	scorer := newScorer(t)
	ctx := context.Background()

	first := New(repo, scorer)
	lead, _, err := first.Upsert(ctx, entity.LeadAttributes{Email: "a@x.io", Title: "CEO"}, nil)
	require.NoError(t, err)

	second := New(repo, scorer)
	n, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := second.GetByEmail("A@x.io")
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)
	assert.Equal(t, lead.Score, got.Score)
}

func TestMemoryDispatchLogClaimLease(t *testing.T) {
	log := NewMemoryDispatchLog()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	claim := func(at time.Time) (entity.DispatchState, error) {
		a := &entity.DispatchedAction{IdempotencyKey: "k", LeadID: "l", Timestamp: at}
		return log.Claim(ctx, a, 10*time.Minute)
	}

	state, err := claim(t0)
	require.NoError(t, err)
	assert.Equal(t, entity.DispatchPending, state)

	_, err = claim(t0.Add(time.Minute))
	assert.ErrorIs(t, err, entity.ErrDispatchInProgress)

	state, err = claim(t0.Add(11 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, entity.DispatchPending, state)

	require.NoError(t, log.MarkSent(ctx, "k", "msg-1", t0.Add(12*time.Minute)))
	state, err = claim(t0.Add(13 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, entity.DispatchSent, state)

	require.NoError(t, log.Release(ctx, "k"))
	actions, err := log.ListByLead(ctx, "l")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "msg-1", actions[0].MessageID)

	assert.ErrorIs(t, log.MarkSent(ctx, "nope", "", t0), entity.ErrDispatchNotFound)
}
