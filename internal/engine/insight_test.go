package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propintel/backend/internal/models"
)

func listing(id, area string, cat models.Category, price float64, listedDaysAgo int, status models.PropertyStatus) models.Property {
	return models.Property{
		ID:       id,
		Price:    price,
		Size:     100,
		Category: cat,
		AreaName: area,
		ListedAt: daysAgo(listedDaysAgo),
		Status:   status,
	}
}

func TestAnalyzeMarketSkipsSmallGroups(t *testing.T) {
	props := []models.Property{
		listing("a1", "Downtown", models.CategoryApartment, 500000, 10, models.PropertyAvailable),
		listing("a2", "Downtown", models.CategoryApartment, 520000, 12, models.PropertyAvailable),
	}
	insights, skipped := AnalyzeMarket(props, DefaultConfig(), testNow)
	assert.Empty(t, insights)
	assert.NotNil(t, insights)
	assert.Empty(t, skipped)
}

func TestAnalyzeMarketHonoursLargerSampleSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds.MinInsightSampleSize = 5
	var props []models.Property
	for i := 0; i < 4; i++ {
		props = append(props, listing(fmt.Sprint(i), "Downtown", models.CategoryApartment, 500000, 10, models.PropertyAvailable))
	}
	insights, _ := AnalyzeMarket(props, cfg, testNow)
	assert.Empty(t, insights)
}

func TestAnalyzeMarketOpportunity(t *testing.T) {
	props := []models.Property{
		listing("o1", "Marina", models.CategoryVilla, 2000000, 10, models.PropertyAvailable),
		listing("o2", "Marina", models.CategoryVilla, 2000000, 40, models.PropertySold),
		listing("o3", "Marina", models.CategoryVilla, 2000000, 50, models.PropertySold),
		listing("o4", "Marina", models.CategoryVilla, 2000000, 60, models.PropertyRented),
	}
	insights, _ := AnalyzeMarket(props, DefaultConfig(), testNow)
	require.Len(t, insights, 1)

	in := insights[0]
	assert.Equal(t, models.LevelLow, in.SupplyLevel)
	assert.Equal(t, models.LevelHigh, in.DemandLevel)
	assert.Equal(t, models.TrendStable, in.PriceTrend)
	assert.Equal(t, models.InsightOpportunity, in.Kind)
	assert.Equal(t, 10.0, in.AvgDaysOnMarket)
	assert.Equal(t, 60, in.Confidence)
	assert.Equal(t, 4, in.TotalCount)
	assert.Equal(t, 1, in.AvailableCount)
	assert.Equal(t, 2000000.0, in.AvgPrice)
}

func TestAnalyzeMarketWarning(t *testing.T) {
	var props []models.Property
	for i := 0; i < 3; i++ {
		props = append(props, listing(fmt.Sprint(i), "Desert Park", models.CategoryLand, 300000, 120, models.PropertyAvailable))
	}
	insights, _ := AnalyzeMarket(props, DefaultConfig(), testNow)
	require.Len(t, insights, 1)
	assert.Equal(t, models.LevelHigh, insights[0].SupplyLevel)
	assert.Equal(t, models.LevelLow, insights[0].DemandLevel)
	assert.Equal(t, models.InsightWarning, insights[0].Kind)
	assert.Equal(t, 70, insights[0].Confidence)
}

func TestAnalyzeMarketPriceTrend(t *testing.T) {
	props := []models.Property{
		listing("n1", "Hills", models.CategoryOffice, 120000, 60, models.PropertyAvailable),
		listing("o1", "Hills", models.CategoryOffice, 100000, 200, models.PropertySold),
		listing("n2", "Hills", models.CategoryOffice, 120000, 50, models.PropertyAvailable),
		listing("o2", "Hills", models.CategoryOffice, 100000, 190, models.PropertySold),
		listing("n3", "Hills", models.CategoryOffice, 120000, 45, models.PropertyAvailable),
		listing("o3", "Hills", models.CategoryOffice, 100000, 180, models.PropertySold),
	}
	insights, _ := AnalyzeMarket(props, DefaultConfig(), testNow)
	require.Len(t, insights, 1)
	in := insights[0]
	assert.Equal(t, models.TrendIncreasing, in.PriceTrend)
	assert.Equal(t, models.LevelMedium, in.SupplyLevel)
	assert.Equal(t, models.LevelMedium, in.DemandLevel)
	assert.Equal(t, models.InsightTrend, in.Kind)
	assert.Equal(t, 80, in.Confidence)

	for i := range props {
		props[i].Price = 220000 - props[i].Price
	}
	insights, _ = AnalyzeMarket(props, DefaultConfig(), testNow)
	require.Len(t, insights, 1)
	assert.Equal(t, models.TrendDecreasing, insights[0].PriceTrend)
}

func TestPriceTrendSmallGroups(t *testing.T) {
	assert.Equal(t, models.TrendStable, priceTrend(nil))
	assert.Equal(t, models.TrendStable, priceTrend([]models.Property{listing("x", "A", models.CategoryShop, 1, 1, models.PropertySold)}))
}

func TestAnalyzeMarketGroupsCaseInsensitively(t *testing.T) {
	props := []models.Property{
		listing("a", "Downtown", models.CategoryApartment, 500000, 40, models.PropertyAvailable),
		listing("b", "downtown ", models.CategoryApartment, 500000, 40, models.PropertyAvailable),
		listing("c", "DOWNTOWN", models.CategoryApartment, 500000, 40, models.PropertySold),
		listing("d", "Downtown", models.CategoryVilla, 500000, 40, models.PropertyAvailable),
	}
	insights, _ := AnalyzeMarket(props, DefaultConfig(), testNow)
	require.Len(t, insights, 1)
	in := insights[0]
	assert.Equal(t, "Downtown", in.AreaName)
	assert.Equal(t, models.CategoryApartment, in.Category)
	assert.Equal(t, models.InsightAnalysis, in.Kind)
	assert.Equal(t, "Market analysis: Apartments in Downtown", in.Title)
	assert.Contains(t, in.Description, "500000")
	assert.Equal(t, testNow.Add(30*24*time.Hour), in.ExpiresAt)
}

func TestAnalyzeMarketReportsInvalidListings(t *testing.T) {
	props := []models.Property{
		listing("ok", "Downtown", models.CategoryApartment, 500000, 10, models.PropertyAvailable),
		listing("bad", "Downtown", models.Category("castle"), 500000, 10, models.PropertyAvailable),
	}
	_, skipped := AnalyzeMarket(props, DefaultConfig(), testNow)
	require.Len(t, skipped, 1)
	assert.Equal(t, "bad", skipped[0].ID)
}

func TestInsightConfidence(t *testing.T) {
	assert.Equal(t, 90, insightConfidence(10, 5))
	assert.Equal(t, 50, insightConfidence(3, 0))

	for total := 0; total <= 15; total++ {
		for available := 0; available <= total; available++ {
			c := insightConfidence(total, available)
			assert.GreaterOrEqual(t, c, 0)
			assert.LessOrEqual(t, c, 100)
			assert.GreaterOrEqual(t, insightConfidence(total+1, available), c)
			assert.GreaterOrEqual(t, insightConfidence(total+1, available+1), c)
		}
	}
}

func TestAnalyzeMarketIsDeterministic(t *testing.T) {
	var props []models.Property
	for i := 0; i < 12; i++ {
		status := models.PropertyAvailable
		if i%3 == 0 {
			status = models.PropertySold
		}
		props = append(props, listing(fmt.Sprint(i), "Downtown", models.CategoryApartment, float64(400000+i*10000), 5+i*7, status))
	}
	first, _ := AnalyzeMarket(props, DefaultConfig(), testNow)
	second, _ := AnalyzeMarket(props, DefaultConfig(), testNow)
	assert.Equal(t, first, second)

	later, _ := AnalyzeMarket(props, DefaultConfig(), testNow.Add(time.Hour))
	assert.NotEqual(t, first[0].ID, later[0].ID)
}

func TestDemandLevelBoundaries(t *testing.T) {
	cases := []struct {
		avgDays float64
		want    models.Level
	}{
		{0, models.LevelHigh},
		{30, models.LevelHigh},
		{30.5, models.LevelMedium},
		{90, models.LevelMedium},
		{90.5, models.LevelLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, demandLevel(tc.avgDays), "avg days %v", tc.avgDays)
	}
}

func TestSupplyLevelBoundaries(t *testing.T) {
	cases := []struct {
		available, total int
		want             models.Level
	}{
		{0, 10, models.LevelLow},
		{3, 10, models.LevelLow},
		{4, 10, models.LevelMedium},
		{7, 10, models.LevelMedium},
		{8, 10, models.LevelHigh},
		{10, 10, models.LevelHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, supplyLevel(tc.available, tc.total), "%d of %d available", tc.available, tc.total)
	}
}
