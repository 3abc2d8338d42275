// Package engine scores property-to-client matches, client purchase intent
// and area market insights, and turns them into broker recommendations.
//
// Everything here is pure: no I/O, no logging and no shared mutable state.
// The current time is read once per call from the Engine's clock and passed
// down, so scoring functions given the same inputs return the same output.
// An Engine is safe for concurrent use.
package engine

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/propintel/backend/internal/models"
	"github.com/propintel/backend/internal/utils"
)

type Engine struct {
	cfg     Config
	now     func() time.Time
	workers int
}

type Option func(*Engine)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithWorkers bounds the fan-out of AnalyzeAll.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) ScoreMatch(c models.Client, p models.Property) (int, []string, error) {
	return ScoreMatch(c, p, e.cfg)
}

func (e *Engine) FindMatches(c models.Client, props []models.Property, sent []models.SentProperty) ([]models.PropertyMatch, []models.SkippedItem, error) {
	return FindMatches(c, props, sent, e.cfg)
}

func (e *Engine) ScoreIntent(c models.Client) (models.ClientIntentScore, error) {
	return ScoreIntent(c, e.now())
}

func (e *Engine) InsightsAll(props []models.Property) ([]models.MarketInsight, []models.SkippedItem) {
	return AnalyzeMarket(props, e.cfg, e.now())
}

// GenerateRecommendations runs the recommendation rules with an explicit
// follow-up threshold.
func (e *Engine) GenerateRecommendations(clients []models.Client, props []models.Property, followUpDays int) ([]models.BrokerRecommendation, []models.SkippedItem) {
	return Recommend(clients, props, followUpDays, e.cfg, e.now())
}

func (e *Engine) RecommendAll(clients []models.Client, props []models.Property) ([]models.BrokerRecommendation, []models.SkippedItem) {
	return e.GenerateRecommendations(clients, props, e.cfg.Thresholds.FollowUpDays)
}

// Analyze builds the consolidated result for one client.
func (e *Engine) Analyze(c models.Client, props []models.Property, sent []models.SentProperty) (models.AIAnalysisResult, error) {
	now := e.now()
	insights, skipped := AnalyzeMarket(props, e.cfg, now)
	return e.analyze(c, props, sent, insights, skipped, now)
}

// AnalyzeWith is Analyze with market insights computed by the caller, for
// callers that cache insights across requests.
func (e *Engine) AnalyzeWith(c models.Client, props []models.Property, sent []models.SentProperty, market []models.MarketInsight) (models.AIAnalysisResult, error) {
	return e.analyze(c, props, sent, market, nil, e.now())
}

func (e *Engine) analyze(c models.Client, props []models.Property, sent []models.SentProperty, market []models.MarketInsight, marketSkipped []models.SkippedItem, now time.Time) (models.AIAnalysisResult, error) {
	matches, skipped, err := FindMatches(c, props, sent, e.cfg)
	if err != nil {
		return models.AIAnalysisResult{}, err
	}
	intent := scoreIntent(c, now)
	recs, _ := Recommend([]models.Client{c}, props, e.cfg.Thresholds.FollowUpDays, e.cfg, now)

	return models.AIAnalysisResult{
		ClientID:        c.ID,
		Matches:         matches,
		Intent:          intent,
		Recommendations: recs,
		Insights:        scopeInsights(c, market),
		NextBestActions: nextBestActions(c, intent, matches, e.cfg.Thresholds),
		Skipped:         mergeSkipped(skipped, marketSkipped),
		GeneratedAt:     now,
	}, nil
}

// scopeInsights keeps the insights for the client's primary area and, when
// the client named categories, only those categories.
func scopeInsights(c models.Client, market []models.MarketInsight) []models.MarketInsight {
	out := []models.MarketInsight{}
	area := strings.ToLower(strings.TrimSpace(c.PrimaryArea()))
	if area == "" {
		return out
	}
	for _, in := range market {
		if strings.ToLower(in.AreaName) != area {
			continue
		}
		if len(c.Categories) > 0 && !wantsCategory(c, in.Category) {
			continue
		}
		out = append(out, in)
	}
	return out
}

func nextBestActions(c models.Client, intent models.ClientIntentScore, matches []models.PropertyMatch, t Thresholds) []string {
	actions := []string{}
	if intent.Overall >= t.HighIntentScore {
		actions = append(actions, "Send new offers")
	}
	if intent.Overall <= 2 {
		actions = append(actions, "Re-qualify requirements")
	}
	if n := countAtLeast(matches, highMatchScore); n > 0 {
		actions = append(actions, fmt.Sprintf("Send %d high-match properties", n))
	}
	if len(intent.NegativeFactors) > 0 {
		actions = append(actions, "Address negative factors: "+strings.Join(intent.NegativeFactors, "; "))
	}
	if c.UrgencyLevel >= 4 {
		actions = append(actions, "Follow up immediately")
	}
	return actions
}

func mergeSkipped(lists ...[]models.SkippedItem) []models.SkippedItem {
	var out []models.SkippedItem
	seen := map[string]bool{}
	for _, list := range lists {
		for _, s := range list {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			out = append(out, s)
		}
	}
	return out
}

// BatchResult holds per-client results in input order and the clients that
// could not be analyzed.
type BatchResult struct {
	Results []models.AIAnalysisResult `json:"results"`
	Failed  []models.SkippedItem      `json:"failed"`
	Skipped []models.SkippedItem      `json:"skipped,omitempty"`
}

// AnalyzeAll analyzes every client against the same property snapshot. A
// client that fails validation is reported in Failed and does not stop the
// batch. Market insights are computed once per call.
func (e *Engine) AnalyzeAll(clients []models.Client, props []models.Property, sent map[string][]models.SentProperty) BatchResult {
	now := e.now()
	memo := newInsightMemo()
	version := PropertySetVersion(props)

	results := make([]models.AIAnalysisResult, len(clients))
	errs := make([]error, len(clients))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range clients {
		g.Go(func() error {
			market, skipped := memo.get(version, func() ([]models.MarketInsight, []models.SkippedItem) {
				return AnalyzeMarket(props, e.cfg, now)
			})
			results[i], errs[i] = e.analyze(clients[i], props, sent[clients[i].ID], market, skipped, now)
			return nil
		})
	}
	_ = g.Wait()

	out := BatchResult{Results: []models.AIAnalysisResult{}, Failed: []models.SkippedItem{}}
	for i, err := range errs {
		if err != nil {
			out.Failed = append(out.Failed, skippedFrom(clients[i].ID, err))
			continue
		}
		out.Skipped = mergeSkipped(out.Skipped, results[i].Skipped)
		out.Results = append(out.Results, results[i])
	}
	return out
}

// insightMemo shares market insights between the clients of one AnalyzeAll
// call. It is never kept beyond that call.
type insightMemo struct {
	mu      sync.Mutex
	entries map[string]*memoEntry
}

type memoEntry struct {
	once     sync.Once
	insights []models.MarketInsight
	skipped  []models.SkippedItem
}

func newInsightMemo() *insightMemo {
	return &insightMemo{entries: map[string]*memoEntry{}}
}

func (m *insightMemo) get(version string, compute func() ([]models.MarketInsight, []models.SkippedItem)) ([]models.MarketInsight, []models.SkippedItem) {
	m.mu.Lock()
	entry, ok := m.entries[version]
	if !ok {
		entry = &memoEntry{}
		m.entries[version] = entry
	}
	m.mu.Unlock()

	entry.once.Do(func() {
		entry.insights, entry.skipped = compute()
	})
	return entry.insights, entry.skipped
}

// PropertySetVersion fingerprints the fields of a property snapshot that feed
// insight computation. Callers use it as an explicit cache key.
func PropertySetVersion(props []models.Property) string {
	lines := make([]string, 0, len(props))
	for _, p := range props {
		lines = append(lines, fmt.Sprintf("%s|%s|%s|%s|%.2f|%.2f|%d",
			p.ID, strings.ToLower(strings.TrimSpace(p.AreaName)), p.Category, p.Status,
			p.Price, p.Size, p.ListedAt.UnixNano()))
	}
	sort.Strings(lines)
	return utils.Fingerprint(lines)
}
