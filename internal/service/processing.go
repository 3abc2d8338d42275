package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/propintel/backend/internal/cache"
	"github.com/propintel/backend/internal/engine"
	"github.com/propintel/backend/internal/messaging"
	"github.com/propintel/backend/internal/models"
)

const (
	RunRecommendations = "recommendations"
	RunInsights        = "insights"
	RunAnalyzeAll      = "analyze_all"

	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

var ErrClientNotFound = errors.New("client not found")

// Store is the part of the database layer the analysis runs need.
type Store interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	GetClient(ctx context.Context, id string) (models.Client, error)
	ListClients(ctx context.Context, status string) ([]models.Client, error)
	ListProperties(ctx context.Context, area, category, status string, limit, offset int) ([]models.Property, error)
	ListBrokers(ctx context.Context) ([]models.Broker, error)
	ListSentProperties(ctx context.Context, clientID string) ([]models.SentProperty, error)
	ReplaceMatches(ctx context.Context, tx pgx.Tx, clientID string, matches []models.PropertyMatch, computedAt time.Time) error
	UpsertIntentScore(ctx context.Context, tx pgx.Tx, score models.ClientIntentScore) error
	InsertInsights(ctx context.Context, tx pgx.Tx, insights []models.MarketInsight) error
	InsertRecommendations(ctx context.Context, tx pgx.Tx, recs []models.BrokerRecommendation) error
}

type AnalysisService struct {
	Store        Store
	Engine       *engine.Engine
	Cache        *cache.InsightCache
	Sender       messaging.Sender
	Logger       zerolog.Logger
	Region       string
	NotifyUrgent bool
}

type RunSummary struct {
	Events  []map[string]any     `json:"events"`
	Counts  map[string]any       `json:"counts"`
	Skipped []models.SkippedItem `json:"skipped,omitempty"`
}

// AnalyzeClient runs the full analysis for one stored client and persists its
// matches, intent score and recommendations.
func (s *AnalysisService) AnalyzeClient(ctx context.Context, clientID string) (models.AIAnalysisResult, error) {
	client, err := s.Store.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AIAnalysisResult{}, fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
		}
		return models.AIAnalysisResult{}, fmt.Errorf("load client: %w", err)
	}
	props, err := s.Store.ListProperties(ctx, "", "", "", 0, 0)
	if err != nil {
		return models.AIAnalysisResult{}, fmt.Errorf("load properties: %w", err)
	}
	sent, err := s.Store.ListSentProperties(ctx, clientID)
	if err != nil {
		return models.AIAnalysisResult{}, fmt.Errorf("load sent properties: %w", err)
	}
	brokers, err := s.Store.ListBrokers(ctx)
	if err != nil {
		return models.AIAnalysisResult{}, fmt.Errorf("load brokers: %w", err)
	}

	market, _ := s.marketInsights(ctx, props)
	result, err := s.Engine.AnalyzeWith(client, props, sent, market)
	if err != nil {
		return models.AIAnalysisResult{}, err
	}
	suggestBrokers(result.Recommendations, []models.Client{client}, brokers)

	err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		return s.saveResult(ctx, tx, result)
	})
	if err != nil {
		return models.AIAnalysisResult{}, fmt.Errorf("save analysis: %w", err)
	}
	s.notifyUrgent(ctx, result.Recommendations, []models.Client{client})
	return result, nil
}

// RunRecommendations generates recommendations for every stored client.
func (s *AnalysisService) RunRecommendations(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	summary := RunSummary{Counts: map[string]any{}}

	clients, err := s.Store.ListClients(ctx, "")
	if err != nil {
		return summary, fmt.Errorf("load clients: %w", err)
	}
	props, err := s.Store.ListProperties(ctx, "", "", "", 0, 0)
	if err != nil {
		return summary, fmt.Errorf("load properties: %w", err)
	}
	brokers, err := s.Store.ListBrokers(ctx)
	if err != nil {
		return summary, fmt.Errorf("load brokers: %w", err)
	}
	summary.Events = append(summary.Events, snapshotEvent(len(clients), len(props), len(brokers)))

	recs, skipped := s.Engine.RecommendAll(clients, props)
	summary.Skipped = skipped
	suggested, fallback := suggestBrokers(recs, clients, brokers)

	byKind := map[models.RecommendationKind]int{}
	byPriority := map[models.Priority]int{}
	for _, r := range recs {
		byKind[r.Kind]++
		byPriority[r.Priority]++
	}
	summary.Events = append(summary.Events, map[string]any{
		"type":              "recommendations",
		"generated":         len(recs),
		"brokers_suggested": suggested,
		"area_fallback":     fallback,
		"time":              time.Now().UTC(),
	})

	if err := s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		return s.Store.InsertRecommendations(ctx, tx, recs)
	}); err != nil {
		return summary, fmt.Errorf("save recommendations: %w", err)
	}

	sent, failed := s.notifyUrgent(ctx, recs, clients)
	summary.Events = append(summary.Events, map[string]any{
		"type":       "db_save",
		"message":    "Recommendations saved",
		"elapsed_ms": time.Since(start).Milliseconds(),
		"time":       time.Now().UTC(),
	})

	summary.Counts["clients"] = len(clients)
	summary.Counts["recommendations"] = len(recs)
	summary.Counts["by_kind"] = byKind
	summary.Counts["by_priority"] = byPriority
	summary.Counts["skipped"] = len(skipped)
	summary.Counts["messages_sent"] = sent
	summary.Counts["messages_failed"] = failed
	return summary, nil
}

// RunInsights recomputes market insights over the stored listings.
func (s *AnalysisService) RunInsights(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	summary := RunSummary{Counts: map[string]any{}}

	props, err := s.Store.ListProperties(ctx, "", "", "", 0, 0)
	if err != nil {
		return summary, fmt.Errorf("load properties: %w", err)
	}
	summary.Events = append(summary.Events, snapshotEvent(0, len(props), 0))

	insights, cached := s.marketInsights(ctx, props)
	byKind := map[models.InsightKind]int{}
	for _, in := range insights {
		byKind[in.Kind]++
	}
	summary.Events = append(summary.Events, map[string]any{
		"type":     "insights",
		"computed": len(insights),
		"cached":   cached,
		"time":     time.Now().UTC(),
	})

	if err := s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		return s.Store.InsertInsights(ctx, tx, insights)
	}); err != nil {
		return summary, fmt.Errorf("save insights: %w", err)
	}
	summary.Events = append(summary.Events, map[string]any{
		"type":       "db_save",
		"message":    "Insights saved",
		"elapsed_ms": time.Since(start).Milliseconds(),
		"time":       time.Now().UTC(),
	})

	summary.Counts["properties"] = len(props)
	summary.Counts["insights"] = len(insights)
	summary.Counts["by_kind"] = byKind
	return summary, nil
}

// AnalyzeAll analyzes every active client and persists each result. A client
// that fails validation is counted and reported, not fatal.
func (s *AnalysisService) AnalyzeAll(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	summary := RunSummary{Counts: map[string]any{}}

	clients, err := s.Store.ListClients(ctx, string(models.ClientActive))
	if err != nil {
		return summary, fmt.Errorf("load clients: %w", err)
	}
	props, err := s.Store.ListProperties(ctx, "", "", "", 0, 0)
	if err != nil {
		return summary, fmt.Errorf("load properties: %w", err)
	}
	history, err := s.Store.ListSentProperties(ctx, "")
	if err != nil {
		return summary, fmt.Errorf("load sent properties: %w", err)
	}
	brokers, err := s.Store.ListBrokers(ctx)
	if err != nil {
		return summary, fmt.Errorf("load brokers: %w", err)
	}
	summary.Events = append(summary.Events, snapshotEvent(len(clients), len(props), len(brokers)))

	sent := map[string][]models.SentProperty{}
	for _, sp := range history {
		sent[sp.ClientID] = append(sent[sp.ClientID], sp)
	}

	batch := s.Engine.AnalyzeAll(clients, props, sent)
	highThreshold := s.Engine.Config().Thresholds.HighIntentScore
	var (
		matchCount   int
		highIntent   int
		recsCount    int
		saveFailures int
		allRecs      []models.BrokerRecommendation
	)
	for _, r := range batch.Results {
		allRecs = append(allRecs, r.Recommendations...)
	}
	suggestBrokers(allRecs, clients, brokers)
	recsByClient := map[string][]models.BrokerRecommendation{}
	for _, r := range allRecs {
		if r.ClientID != nil {
			recsByClient[*r.ClientID] = append(recsByClient[*r.ClientID], r)
		}
	}

	for _, r := range batch.Results {
		r.Recommendations = recsByClient[r.ClientID]
		if err := s.Store.WithTx(ctx, func(tx pgx.Tx) error {
			return s.saveResult(ctx, tx, r)
		}); err != nil {
			saveFailures++
			s.Logger.Error().Err(err).Str("client_id", r.ClientID).Msg("failed to save analysis")
			continue
		}
		matchCount += len(r.Matches)
		recsCount += len(r.Recommendations)
		if r.Intent.Overall >= highThreshold {
			highIntent++
		}
	}
	sentCount, failedCount := s.notifyUrgent(ctx, allRecs, clients)

	summary.Events = append(summary.Events, map[string]any{
		"type":       "analysis",
		"analyzed":   len(batch.Results),
		"failed":     len(batch.Failed),
		"time":       time.Now().UTC(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	summary.Skipped = append(batch.Failed, batch.Skipped...)

	summary.Counts["clients"] = len(clients)
	summary.Counts["analyzed"] = len(batch.Results) - saveFailures
	summary.Counts["failed"] = len(batch.Failed)
	summary.Counts["save_failures"] = saveFailures
	summary.Counts["matches"] = matchCount
	summary.Counts["high_intent_clients"] = highIntent
	summary.Counts["recommendations"] = recsCount
	summary.Counts["messages_sent"] = sentCount
	summary.Counts["messages_failed"] = failedCount
	return summary, nil
}

// marketInsights returns insights for the snapshot, from the cache when the
// same listings were already analyzed today.
func (s *AnalysisService) marketInsights(ctx context.Context, props []models.Property) ([]models.MarketInsight, bool) {
	key := cache.Key(engine.PropertySetVersion(props), time.Now())
	cached, ok, err := s.Cache.Get(ctx, key)
	if err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("insight cache read failed")
	}
	if ok {
		return cached, true
	}

	insights, skipped := s.Engine.InsightsAll(props)
	if len(skipped) > 0 {
		s.Logger.Warn().Int("skipped", len(skipped)).Msg("invalid properties left out of insights")
	}
	if err := s.Cache.Set(ctx, key, insights); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("insight cache write failed")
	}
	return insights, false
}

func (s *AnalysisService) saveResult(ctx context.Context, tx pgx.Tx, r models.AIAnalysisResult) error {
	if err := s.Store.ReplaceMatches(ctx, tx, r.ClientID, r.Matches, r.GeneratedAt); err != nil {
		return err
	}
	if err := s.Store.UpsertIntentScore(ctx, tx, r.Intent); err != nil {
		return err
	}
	return s.Store.InsertRecommendations(ctx, tx, r.Recommendations)
}

// notifyUrgent messages clients behind urgent follow-ups. Delivery failures
// are logged and counted, never returned.
func (s *AnalysisService) notifyUrgent(ctx context.Context, recs []models.BrokerRecommendation, clients []models.Client) (int, int) {
	if !s.NotifyUrgent || s.Sender == nil {
		return 0, 0
	}
	byID := make(map[string]models.Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}

	var sent, failed int
	for _, r := range recs {
		if r.Kind != models.RecommendFollowUp || r.Priority != models.PriorityUrgent || r.ClientID == nil {
			continue
		}
		client, ok := byID[*r.ClientID]
		if !ok {
			continue
		}
		msg, err := messaging.ForRecommendation(client, r, s.Region)
		if err == nil {
			err = s.Sender.Send(ctx, msg)
		}
		if err != nil {
			failed++
			s.Logger.Warn().Err(err).Str("client_id", client.ID).Msg("urgent follow-up not delivered")
			continue
		}
		sent++
	}
	return sent, failed
}

// suggestBrokers fills BrokerID on broker-assignment recommendations. Loads
// are tracked locally so one run spreads clients across brokers.
func suggestBrokers(recs []models.BrokerRecommendation, clients []models.Client, brokers []models.Broker) (int, int) {
	if len(brokers) == 0 {
		return 0, 0
	}
	byID := make(map[string]models.Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}
	loads := map[string]int{}
	for _, b := range brokers {
		loads[b.ID] = b.CurrentLoad
	}

	var suggested, fallback int
	for i := range recs {
		r := &recs[i]
		if r.Kind != models.RecommendBrokerAssignment || r.ClientID == nil {
			continue
		}
		client, ok := byID[*r.ClientID]
		if !ok {
			continue
		}
		elig := FilterBrokersForClient(applyLoads(brokers, loads), client)
		if len(elig.Eligible) == 0 {
			continue
		}
		if elig.Fallback {
			fallback++
		}
		picked, _ := PickBroker(client.ID, elig.Eligible)
		id := picked.ID
		r.BrokerID = &id
		r.Message = fmt.Sprintf("%s Suggested broker: %s.", r.Message, picked.Name)
		loads[picked.ID]++
		suggested++
	}
	return suggested, fallback
}

func applyLoads(brokers []models.Broker, loads map[string]int) []models.Broker {
	out := make([]models.Broker, 0, len(brokers))
	for _, b := range brokers {
		b.CurrentLoad = loads[b.ID]
		out = append(out, b)
	}
	return out
}

func snapshotEvent(clients, props, brokers int) map[string]any {
	return map[string]any{
		"type":       "snapshot",
		"message":    "Data loaded for processing",
		"clients":    clients,
		"properties": props,
		"brokers":    brokers,
		"time":       time.Now().UTC(),
	}
}
