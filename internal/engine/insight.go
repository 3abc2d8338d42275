package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/propintel/backend/internal/models"
)

const (
	insightTTL        = 30 * 24 * time.Hour
	minInsightSample  = 3
	trendWindow       = 3
	trendThresholdPct = 5.0
)

type groupKey struct {
	area     string
	category models.Category
}

type propertyGroup struct {
	area  string
	items []models.Property
}

// AnalyzeMarket aggregates listings by area and category. Groups smaller than
// the configured sample size produce no insight. Output follows the order in
// which groups first appear in the input.
func AnalyzeMarket(props []models.Property, cfg Config, now time.Time) ([]models.MarketInsight, []models.SkippedItem) {
	valid, skipped := validProperties(props)

	var order []groupKey
	groups := map[groupKey]*propertyGroup{}
	for _, p := range valid {
		area := strings.TrimSpace(p.AreaName)
		key := groupKey{area: strings.ToLower(area), category: p.Category}
		g, ok := groups[key]
		if !ok {
			g = &propertyGroup{area: area}
			groups[key] = g
			order = append(order, key)
		}
		g.items = append(g.items, p)
	}

	sample := cfg.Thresholds.MinInsightSampleSize
	if sample < minInsightSample {
		sample = minInsightSample
	}

	insights := []models.MarketInsight{}
	for _, key := range order {
		g := groups[key]
		if len(g.items) < sample {
			continue
		}
		insights = append(insights, buildInsight(g.area, key.category, g.items, now))
	}
	return insights, skipped
}

func buildInsight(area string, cat models.Category, items []models.Property, now time.Time) models.MarketInsight {
	var priceSum, sizeSum, daysSum float64
	available := 0
	for _, p := range items {
		priceSum += p.Price
		sizeSum += p.Size
		if p.Status == models.PropertyAvailable {
			available++
			daysSum += daysOnMarket(p, now)
		}
	}
	total := len(items)
	avgDays := 0.0
	if available > 0 {
		avgDays = daysSum / float64(available)
	}

	in := models.MarketInsight{
		ID:              insightID(area, cat, now),
		AreaName:        area,
		Category:        cat,
		AvgPrice:        round2(priceSum / float64(total)),
		AvgSize:         round2(sizeSum / float64(total)),
		SupplyLevel:     supplyLevel(available, total),
		DemandLevel:     demandLevel(avgDays),
		PriceTrend:      priceTrend(items),
		AvgDaysOnMarket: math.Round(avgDays*10) / 10,
		TotalCount:      total,
		AvailableCount:  available,
		Confidence:      insightConfidence(total, available),
		CreatedAt:       now,
		ExpiresAt:       now.Add(insightTTL),
	}
	in.Kind = insightKind(in.DemandLevel, in.SupplyLevel, in.PriceTrend)
	in.Title, in.Description = describeInsight(in)
	return in
}

func daysOnMarket(p models.Property, now time.Time) float64 {
	d := now.Sub(p.ListedAt).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

func supplyLevel(available, total int) models.Level {
	if total == 0 {
		return models.LevelMedium
	}
	ratio := float64(available) / float64(total)
	switch {
	case ratio <= 0.3:
		return models.LevelLow
	case ratio > 0.7:
		return models.LevelHigh
	default:
		return models.LevelMedium
	}
}

func demandLevel(avgDays float64) models.Level {
	switch {
	case avgDays <= 30:
		return models.LevelHigh
	case avgDays > 90:
		return models.LevelLow
	default:
		return models.LevelMedium
	}
}

// priceTrend compares the mean price of the newest listings with the oldest.
func priceTrend(items []models.Property) models.PriceTrend {
	if len(items) < 2 {
		return models.TrendStable
	}
	sorted := make([]models.Property, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ListedAt.Before(sorted[j].ListedAt) })

	n := trendWindow
	if len(sorted) < n {
		n = len(sorted)
	}
	oldest := meanPrice(sorted[:n])
	recent := meanPrice(sorted[len(sorted)-n:])
	if oldest <= 0 {
		return models.TrendStable
	}
	change := (recent - oldest) / oldest * 100
	switch {
	case change > trendThresholdPct:
		return models.TrendIncreasing
	case change < -trendThresholdPct:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

func meanPrice(items []models.Property) float64 {
	var sum float64
	for _, p := range items {
		sum += p.Price
	}
	return sum / float64(len(items))
}

func insightKind(demand, supply models.Level, trend models.PriceTrend) models.InsightKind {
	switch {
	case demand == models.LevelHigh && supply == models.LevelLow:
		return models.InsightOpportunity
	case demand == models.LevelLow && supply == models.LevelHigh:
		return models.InsightWarning
	case trend != models.TrendStable:
		return models.InsightTrend
	default:
		return models.InsightAnalysis
	}
}

func insightConfidence(total, available int) int {
	c := 50
	switch {
	case total >= 10:
		c += 20
	case total >= 5:
		c += 10
	}
	switch {
	case available >= 3:
		c += 20
	case available >= 1:
		c += 10
	}
	return clampInt(c, 0, 100)
}

var insightTitles = map[models.InsightKind]string{
	models.InsightOpportunity: "Opportunity",
	models.InsightWarning:     "Warning",
	models.InsightTrend:       "Price trend",
	models.InsightAnalysis:    "Market analysis",
}

func describeInsight(in models.MarketInsight) (string, string) {
	title := fmt.Sprintf("%s: %s in %s", insightTitles[in.Kind], in.Category.Label(), in.AreaName)
	desc := fmt.Sprintf(
		"%s in %s average %.0f (%.0f sqm). Supply is %s, demand is %s and prices are %s; %d of %d listings available, %.0f days on market on average.",
		in.Category.Label(), in.AreaName, in.AvgPrice, in.AvgSize,
		in.SupplyLevel, in.DemandLevel, in.PriceTrend,
		in.AvailableCount, in.TotalCount, in.AvgDaysOnMarket,
	)
	return title, desc
}

// insightID is derived from the group and creation time so repeated runs at
// the same instant agree and runs at different times do not collide.
func insightID(area string, cat models.Category, now time.Time) string {
	name := fmt.Sprintf("insight|%s|%s|%d", strings.ToLower(area), cat, now.UnixNano())
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
