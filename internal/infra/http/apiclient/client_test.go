package apiclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/infra/database"
	"github.com/xavierca1/zag-leads/internal/infra/http/apiclient"
	"github.com/xavierca1/zag-leads/internal/infra/http/handlers"
	"github.com/xavierca1/zag-leads/internal/infra/logger"
	"github.com/xavierca1/zag-leads/internal/leadstore"
	"github.com/xavierca1/zag-leads/internal/scoring"
	"github.com/xavierca1/zag-leads/internal/sequence"
	"github.com/xavierca1/zag-leads/internal/usecase"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type okDeliverer struct{}

func (okDeliverer) Deliver(_ context.Context, req usecase.DeliveryRequest) (usecase.DeliveryResult, error) {
	return usecase.DeliveryResult{MessageID: "msg-" + req.IdempotencyKey}, nil
}

type apiServer struct {
	*httptest.Server
	store  *leadstore.Store
	repo   *database.LeadRepository
	scorer *scoring.Scorer
}

func newAPIServer(t *testing.T, adminToken string) *apiServer {
	t.Helper()
	rules, err := scoring.DefaultRules()
	require.NoError(t, err)
	scorer, err := scoring.New(rules)
	require.NoError(t, err)
	catalog, err := sequence.Default()
	require.NoError(t, err)

	db, err := database.NewSQLiteConnection(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.SQLite))
	repo := database.NewLeadRepository(db, database.SQLite)

	clock := t0
	now := func() time.Time { return clock }
	log := logger.Discard()
	store := leadstore.New(repo, scorer,
		leadstore.WithClock(now),
		leadstore.WithStepLimit(func(l *entity.Lead) int { return len(catalog.StepsFor(l.InterestedIn, l.Audience)) }),
	)

	enroll := usecase.NewEnrollLeadUseCase(store, catalog, nil, nil, log)
	enroll.Now = now
	controls := usecase.NewLeadControlUseCase(store, catalog, nil, log)
	engage := usecase.NewRecordEngagementUseCase(store, scorer, nil, log)
	insights := usecase.NewLeadInsightsUseCase(store, scorer, catalog)
	advance := usecase.NewAdvanceSequencesUseCase(store, database.NewDispatchLogRepository(db, database.SQLite),
		catalog, okDeliverer{}, nil, log, usecase.DefaultLifecycleConfig())

	leads := handlers.NewLeadHandler(store, enroll, insights, controls, advance, log)
	leads.Now = func() time.Time { return clock.Add(time.Minute) }

	srv := httptest.NewServer(handlers.NewRouter(handlers.RouterConfig{
		Webhooks:    handlers.NewWebhookHandler(enroll, engage, controls, log),
		Leads:       leads,
		Health:      handlers.NewHealthHandler(db, nil, store, nil),
		Log:         log,
		CORSOrigins: []string{"*"},
		AdminToken:  adminToken,
	}))
	t.Cleanup(srv.Close)
	return &apiServer{Server: srv, store: store, repo: repo, scorer: scorer}
}

func (s *apiServer) post(t *testing.T, path string, body any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Less(t, resp.StatusCode, 300)
}

func TestRunOutreachSeesLeadsEnrolledLater(t *testing.T) {
	ctx := context.Background()
	s := newAPIServer(t, "tok")
	client := apiclient.NewClient(s.URL+"/", "tok")

	actions, err := client.RunOutreach(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions)

	s.post(t, "/webhook/lead", map[string]any{
		"email":         "sarah@startup.com",
		"name":          "Sarah Chen",
		"title":         "CEO & Founder",
		"interested_in": "linkedin_presence",
	})

	actions, err = client.RunOutreach(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, 0, actions[0].StepIndex)

	// a later write through the API must keep the progress the pass made
	s.post(t, "/webhook/engagement", map[string]any{"email": "sarah@startup.com", "signal": "replied"})

	reloaded := leadstore.New(s.repo, s.scorer)
	_, err = reloaded.Load(ctx)
	require.NoError(t, err)
	lead, err := reloaded.GetByEmail("sarah@startup.com")
	require.NoError(t, err)
	assert.Equal(t, 1, lead.SequenceStep)
	require.NotNil(t, lead.LastContactedAt)
	assert.Equal(t, entity.StatusActive, lead.Status)

	summary, err := client.PipelineSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.ByStatus[entity.StatusActive])
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	s := newAPIServer(t, "tok")

	_, err := apiclient.NewClient(s.URL, "wrong").RunOutreach(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "UNAUTHORIZED")
}
