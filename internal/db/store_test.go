package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/propintel/backend/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := New(ctx, url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	t.Cleanup(store.Close)

	schema, err := os.ReadFile("../../migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := store.Pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := store.Pool.Exec(ctx, `TRUNCATE runs, broker_recommendations, market_insights, client_intent_scores, property_matches, sent_properties, properties, clients, brokers`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return store
}

func TestStoreRoundTripIntegration(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	budgetMin, budgetMax := 500000.0, 700000.0

	if _, err := store.InsertBrokers(ctx, []models.Broker{{ID: "b1", Name: "Omar", Areas: []string{"Downtown"}, UpdatedAt: now}}); err != nil {
		t.Fatalf("insert brokers: %v", err)
	}
	client := models.Client{
		ID: "c1", Name: "Sara", BudgetMin: &budgetMin, BudgetMax: &budgetMax,
		PreferredAreas: []string{"Downtown"}, Categories: []models.Category{models.CategoryApartment},
		UrgencyLevel: 3, Status: models.ClientActive, CreatedAt: now, UpdatedAt: now,
	}
	if _, err := store.InsertClients(ctx, []models.Client{client}); err != nil {
		t.Fatalf("insert clients: %v", err)
	}
	prop := models.Property{ID: "p1", Price: 600000, Size: 120, Category: models.CategoryApartment, AreaName: "Downtown", ListedAt: now, Status: models.PropertyAvailable}
	if _, err := store.InsertProperties(ctx, []models.Property{prop}); err != nil {
		t.Fatalf("insert properties: %v", err)
	}
	if _, err := store.InsertSentProperties(ctx, []models.SentProperty{{ClientID: "c1", PropertyID: "p1"}}); err != nil {
		t.Fatalf("insert sent: %v", err)
	}

	got, err := store.GetClient(ctx, "c1")
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if got.BudgetMax == nil || *got.BudgetMax != budgetMax || len(got.Categories) != 1 {
		t.Fatalf("unexpected client %+v", got)
	}
	if _, err := store.GetClient(ctx, "missing"); err != pgx.ErrNoRows {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}

	props, err := store.ListProperties(ctx, "downtown", "apartment", "", 0, 0)
	if err != nil || len(props) != 1 {
		t.Fatalf("list properties: %v %d", err, len(props))
	}
	sent, err := store.ListSentProperties(ctx, "c1")
	if err != nil || len(sent) != 1 || sent[0].SentAt != nil {
		t.Fatalf("list sent: %v %+v", err, sent)
	}

	recID := "2f1d5b8e-3c1a-5f43-9d0e-7a6b5c4d3e2f"
	clientID := "c1"
	err = store.WithTx(ctx, func(tx pgx.Tx) error {
		if err := store.ReplaceMatches(ctx, tx, "c1", []models.PropertyMatch{{ClientID: "c1", PropertyID: "p1", Score: 91, Reasons: []string{"High match"}, PreviouslySent: true}}, now); err != nil {
			return err
		}
		if err := store.UpsertIntentScore(ctx, tx, models.ClientIntentScore{ClientID: "c1", Overall: 4, ComputedAt: now}); err != nil {
			return err
		}
		return store.InsertRecommendations(ctx, tx, []models.BrokerRecommendation{{
			ID: recID, Kind: models.RecommendFollowUp, Priority: models.PriorityUrgent, Title: "Follow up", Message: "Call",
			ClientID: &clientID, ActionRequired: true, CreatedAt: now,
		}})
	})
	if err != nil {
		t.Fatalf("save results: %v", err)
	}

	recs, err := store.ListRecommendations(ctx, "c1", true, 10, 0)
	if err != nil || len(recs) != 1 {
		t.Fatalf("list recommendations: %v %d", err, len(recs))
	}
	if err := store.MarkRecommendationRead(ctx, recID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if recs, _ := store.ListRecommendations(ctx, "c1", true, 10, 0); len(recs) != 0 {
		t.Fatalf("expected no unread recommendations")
	}

	runID, err := store.CreateRun(ctx, "insights", "RUNNING")
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := store.FinishRun(ctx, runID, "SUCCESS", []byte(`{"counts":{}}`)); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	run, err := store.GetLatestRun(ctx, "insights")
	if err != nil || run.ID != runID || run.FinishedAt == nil {
		t.Fatalf("latest run: %v %+v", err, run)
	}
}
