package engine

import (
	"time"

	"github.com/propintel/backend/internal/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }

func intp(v int) *int { return &v }

func strp(v string) *string { return &v }

func daysAgo(n int) time.Time { return testNow.Add(-time.Duration(n) * 24 * time.Hour) }

func daysAgoPtr(n int) *time.Time {
	t := daysAgo(n)
	return &t
}

func testClient() models.Client {
	return models.Client{
		ID:               "c1",
		Name:             "Sara",
		BudgetMin:        f64(500000),
		BudgetMax:        f64(700000),
		PreferredAreas:   []string{"Downtown"},
		Categories:       []models.Category{models.CategoryApartment},
		UrgencyLevel:     3,
		ContactFrequency: 4,
		InteractionScore: 0.5,
		Status:           models.ClientActive,
		LastContactAt:    daysAgoPtr(1),
		CreatedAt:        daysAgo(28),
	}
}

func testProperty(id string) models.Property {
	return models.Property{
		ID:        id,
		Title:     "Apartment " + id,
		Price:     600000,
		Size:      120,
		Bedrooms:  2,
		Bathrooms: 2,
		Category:  models.CategoryApartment,
		AreaName:  "Downtown",
		City:      "Dubai",
		ListedAt:  daysAgo(10),
		Status:    models.PropertyAvailable,
	}
}

func testEngine() *Engine {
	return New(DefaultConfig(), WithClock(func() time.Time { return testNow }))
}
