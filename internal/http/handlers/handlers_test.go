package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propintel/backend/internal/engine"
	"github.com/propintel/backend/internal/models"
	"github.com/propintel/backend/internal/service"
)

var fixtureNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

// memoryStore serves both the handler and the service side of the database.
type memoryStore struct {
	clients    []models.Client
	properties []models.Property
	recs       []models.BrokerRecommendation
	insights   []models.MarketInsight
	runs       []models.Run
	readIDs    []string

	listLimit, listOffset int
}

func (m *memoryStore) Ping(ctx context.Context) error { return nil }

func (m *memoryStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error { return fn(nil) }

func (m *memoryStore) GetClient(ctx context.Context, id string) (models.Client, error) {
	for _, c := range m.clients {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Client{}, pgx.ErrNoRows
}

func (m *memoryStore) ListClients(ctx context.Context, status string) ([]models.Client, error) {
	return m.clients, nil
}

func (m *memoryStore) ListProperties(ctx context.Context, area, category, status string, limit, offset int) ([]models.Property, error) {
	return m.properties, nil
}

func (m *memoryStore) ListBrokers(ctx context.Context) ([]models.Broker, error) { return nil, nil }

func (m *memoryStore) ListSentProperties(ctx context.Context, clientID string) ([]models.SentProperty, error) {
	return nil, nil
}

func (m *memoryStore) ReplaceMatches(ctx context.Context, tx pgx.Tx, clientID string, matches []models.PropertyMatch, computedAt time.Time) error {
	return nil
}

func (m *memoryStore) UpsertIntentScore(ctx context.Context, tx pgx.Tx, score models.ClientIntentScore) error {
	return nil
}

func (m *memoryStore) InsertInsights(ctx context.Context, tx pgx.Tx, insights []models.MarketInsight) error {
	m.insights = append(m.insights, insights...)
	return nil
}

func (m *memoryStore) InsertRecommendations(ctx context.Context, tx pgx.Tx, recs []models.BrokerRecommendation) error {
	m.recs = append(m.recs, recs...)
	return nil
}

func (m *memoryStore) ListInsights(ctx context.Context, area, category string, now time.Time) ([]models.MarketInsight, error) {
	return m.insights, nil
}

func (m *memoryStore) ListRecommendations(ctx context.Context, clientID string, unreadOnly bool, limit, offset int) ([]models.BrokerRecommendation, error) {
	m.listLimit, m.listOffset = limit, offset
	return m.recs, nil
}

func (m *memoryStore) MarkRecommendationRead(ctx context.Context, id string) error {
	for _, r := range m.recs {
		if r.ID == id {
			m.readIDs = append(m.readIDs, id)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memoryStore) CreateRun(ctx context.Context, kind, status string) (string, error) {
	id := "run-" + kind
	m.runs = append(m.runs, models.Run{ID: id, Kind: kind, Status: status})
	return id, nil
}

func (m *memoryStore) FinishRun(ctx context.Context, runID string, status string, summary []byte) error {
	for i := range m.runs {
		if m.runs[i].ID == runID {
			m.runs[i].Status = status
			m.runs[i].Summary = summary
		}
	}
	return nil
}

func (m *memoryStore) GetLatestRun(ctx context.Context, kind string) (models.Run, error) {
	if len(m.runs) == 0 {
		return models.Run{}, pgx.ErrNoRows
	}
	return m.runs[len(m.runs)-1], nil
}

func ptr[T any](v T) *T { return &v }

func fixtureClient() models.Client {
	return models.Client{
		ID:               "c1",
		Name:             "Sara",
		BudgetMin:        ptr(500000.0),
		BudgetMax:        ptr(700000.0),
		PreferredAreas:   []string{"Downtown"},
		Categories:       []models.Category{models.CategoryApartment},
		UrgencyLevel:     3,
		LastContactAt:    ptr(fixtureNow.AddDate(0, 0, -10)),
		ContactFrequency: 4,
		InteractionScore: 0.5,
		Status:           models.ClientActive,
		CreatedAt:        fixtureNow.AddDate(0, 0, -28),
	}
}

func fixtureProperties() []models.Property {
	var out []models.Property
	for _, id := range []string{"p1", "p2", "p3"} {
		out = append(out, models.Property{
			ID:        id,
			Price:     600000,
			Size:      120,
			Bedrooms:  2,
			Bathrooms: 2,
			Category:  models.CategoryApartment,
			AreaName:  "Downtown",
			ListedAt:  fixtureNow.AddDate(0, 0, -10),
			Status:    models.PropertyAvailable,
		})
	}
	return out
}

func newTestRouter(store *memoryStore) *gin.Engine {
	eng := engine.New(engine.DefaultConfig(), engine.WithClock(func() time.Time { return fixtureNow }))
	h := &Handler{
		Store:     store,
		Service:   &service.AnalysisService{Store: store, Engine: eng, Logger: zerolog.Nop()},
		Engine:    eng,
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
	}
	r := gin.New()
	r.POST("/api/analyze", h.Analyze)
	r.POST("/api/match", h.Match)
	r.POST("/api/intent", h.Intent)
	r.POST("/api/insights/analyze", h.AnalyzeInsights)
	r.POST("/api/recommendations/generate", h.GenerateRecommendations)
	r.GET("/api/recommendations", h.RecommendationsList)
	r.GET("/api/runs/latest", h.RunsLatest)
	r.POST("/api/clients/:id/analyze", h.AnalyzeClient)
	r.POST("/api/process/insights", h.ProcessInsights)
	r.POST("/api/recommendations/:id/read", h.MarkRecommendationRead)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Error.Code
}

func TestAnalyze(t *testing.T) {
	r := newTestRouter(&memoryStore{})
	w := doJSON(t, r, http.MethodPost, "/api/analyze", AnalyzeRequest{
		Client:          fixtureClient(),
		Properties:      fixtureProperties(),
		SentPropertyIDs: []string{"p2"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res models.AIAnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "c1", res.ClientID)
	require.Len(t, res.Matches, 3)
	assert.Len(t, res.Insights, 1)
	assert.True(t, fixtureNow.Equal(res.GeneratedAt))

	for _, m := range res.Matches {
		assert.Equal(t, m.PropertyID == "p2", m.PreviouslySent, m.PropertyID)
	}
}

func TestAnalyzeRejectsInvertedBudget(t *testing.T) {
	client := fixtureClient()
	client.BudgetMin, client.BudgetMax = ptr(700000.0), ptr(500000.0)

	r := newTestRouter(&memoryStore{})
	w := doJSON(t, r, http.MethodPost, "/api/analyze", AnalyzeRequest{Client: client, Properties: fixtureProperties()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, w))
}

func TestAnalyzeRequestErrors(t *testing.T) {
	r := newTestRouter(&memoryStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))

	w = doJSON(t, r, http.MethodPost, "/api/analyze", AnalyzeRequest{Client: fixtureClient()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestMatchSkipsBrokenProperties(t *testing.T) {
	props := fixtureProperties()
	props[1].Price = 0

	r := newTestRouter(&memoryStore{})
	w := doJSON(t, r, http.MethodPost, "/api/match", MatchRequest{Client: fixtureClient(), Properties: props})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Items   []models.PropertyMatch `json:"items"`
		Skipped []models.SkippedItem   `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Items, 2)
	require.Len(t, body.Skipped, 1)
	assert.Equal(t, "p2", body.Skipped[0].ID)
}

func TestIntent(t *testing.T) {
	r := newTestRouter(&memoryStore{})
	w := doJSON(t, r, http.MethodPost, "/api/intent", IntentRequest{Client: fixtureClient()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var score models.ClientIntentScore
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &score))
	assert.Equal(t, "c1", score.ClientID)
	assert.GreaterOrEqual(t, score.Overall, 1)
	assert.LessOrEqual(t, score.Overall, 5)
}

func TestAnalyzeInsights(t *testing.T) {
	r := newTestRouter(&memoryStore{})
	w := doJSON(t, r, http.MethodPost, "/api/insights/analyze", InsightsRequest{Properties: fixtureProperties()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Items []models.MarketInsight `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Downtown", body.Items[0].AreaName)
	assert.Equal(t, 3, body.Items[0].TotalCount)
}

func TestGenerateRecommendationsFollowUpOverride(t *testing.T) {
	r := newTestRouter(&memoryStore{})
	kinds := func(w *httptest.ResponseRecorder) []models.RecommendationKind {
		var body struct {
			Items []models.BrokerRecommendation `json:"items"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		var out []models.RecommendationKind
		for _, rec := range body.Items {
			out = append(out, rec.Kind)
		}
		return out
	}

	w := doJSON(t, r, http.MethodPost, "/api/recommendations/generate", RecommendationsRequest{
		Clients:    []models.Client{fixtureClient()},
		Properties: fixtureProperties(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, kinds(w), models.RecommendFollowUp)

	w = doJSON(t, r, http.MethodPost, "/api/recommendations/generate", RecommendationsRequest{
		Clients:      []models.Client{fixtureClient()},
		Properties:   fixtureProperties(),
		FollowUpDays: ptr(30),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, kinds(w), models.RecommendFollowUp)
}

func TestRunsLatestNotFound(t *testing.T) {
	r := newTestRouter(&memoryStore{})
	w := doJSON(t, r, http.MethodGet, "/api/runs/latest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestProcessInsightsRecordsRun(t *testing.T) {
	store := &memoryStore{properties: fixtureProperties()}
	r := newTestRouter(store)

	w := doJSON(t, r, http.MethodPost, "/api/process/insights", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, store.runs, 1)
	assert.Equal(t, service.RunInsights, store.runs[0].Kind)
	assert.Equal(t, service.StatusSuccess, store.runs[0].Status)
	assert.Len(t, store.insights, 1)

	w = doJSON(t, r, http.MethodGet, "/api/runs/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var run models.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, "run-insights", run.ID)
	assert.NotEmpty(t, run.Summary)
}

func TestAnalyzeStoredClient(t *testing.T) {
	store := &memoryStore{clients: []models.Client{fixtureClient()}, properties: fixtureProperties()}
	r := newTestRouter(store)

	w := doJSON(t, r, http.MethodPost, "/api/clients/c1/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, store.recs)

	w = doJSON(t, r, http.MethodPost, "/api/clients/nobody/analyze", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarkRecommendationRead(t *testing.T) {
	id := "2f1d5b8e-3c1a-5f43-9d0e-7a6b5c4d3e2f"
	store := &memoryStore{recs: []models.BrokerRecommendation{{ID: id}}}
	r := newTestRouter(store)

	w := doJSON(t, r, http.MethodPost, "/api/recommendations/"+id+"/read", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{id}, store.readIDs)

	w = doJSON(t, r, http.MethodPost, "/api/recommendations/not-a-uuid/read", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/recommendations/00000000-0000-0000-0000-000000000000/read", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecommendationsListClampsPaging(t *testing.T) {
	cases := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"?limit=0&offset=-3", 50, 0},
		{"?limit=500", 50, 0},
		{"?limit=20&offset=40", 20, 40},
	}
	for _, tc := range cases {
		store := &memoryStore{}
		r := newTestRouter(store)
		w := doJSON(t, r, http.MethodGet, "/api/recommendations"+tc.query, nil)
		require.Equal(t, http.StatusOK, w.Code, tc.query)

		var body struct {
			Limit  int `json:"limit"`
			Offset int `json:"offset"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.wantLimit, body.Limit, tc.query)
		assert.Equal(t, tc.wantOffset, body.Offset, tc.query)
		assert.Equal(t, tc.wantLimit, store.listLimit, tc.query)
		assert.Equal(t, tc.wantOffset, store.listOffset, tc.query)
	}
}
