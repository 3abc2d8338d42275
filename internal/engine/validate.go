package engine

import (
	"math"
	"strings"

	"github.com/propintel/backend/internal/models"
)

func invalidClient(id, field, reason string) error {
	return &InvalidInputError{Entity: "client", ID: id, Field: field, Reason: reason}
}

func invalidProperty(id, field, reason string) error {
	return &InvalidInputError{Entity: "property", ID: id, Field: field, Reason: reason}
}

func ValidateClient(c models.Client) error {
	if strings.TrimSpace(c.ID) == "" {
		return invalidClient(c.ID, "id", "is required")
	}
	if err := checkBounds(c.ID, "budget", c.BudgetMin, c.BudgetMax); err != nil {
		return err
	}
	if err := checkBounds(c.ID, "area", c.AreaMin, c.AreaMax); err != nil {
		return err
	}
	if c.BedroomsMin != nil && *c.BedroomsMin < 0 {
		return invalidClient(c.ID, "bedrooms_min", "must not be negative")
	}
	if c.BathroomsMin != nil && *c.BathroomsMin < 0 {
		return invalidClient(c.ID, "bathrooms_min", "must not be negative")
	}
	if c.UrgencyLevel < 1 || c.UrgencyLevel > 5 {
		return invalidClient(c.ID, "urgency_level", "must be between 1 and 5")
	}
	if c.ContactFrequency < 0 {
		return invalidClient(c.ID, "contact_frequency", "must not be negative")
	}
	if math.IsNaN(c.InteractionScore) || c.InteractionScore < 0 || c.InteractionScore > 1 {
		return invalidClient(c.ID, "interaction_score", "must be between 0 and 1")
	}
	for _, cat := range c.Categories {
		if !cat.Valid() {
			return invalidClient(c.ID, "categories", "contains unknown category "+string(cat))
		}
	}
	switch c.Status {
	case models.ClientActive, models.ClientInactive, models.ClientConverted, models.ClientLost:
	default:
		return invalidClient(c.ID, "status", "is not a known lifecycle status")
	}
	return nil
}

func checkBounds(id, name string, lo, hi *float64) error {
	if lo != nil && (math.IsNaN(*lo) || *lo < 0) {
		return invalidClient(id, name+"_min", "must not be negative")
	}
	if hi != nil && (math.IsNaN(*hi) || *hi < 0) {
		return invalidClient(id, name+"_max", "must not be negative")
	}
	if lo != nil && hi != nil && *hi < *lo {
		return invalidClient(id, name+"_max", "is below "+name+"_min")
	}
	return nil
}

func ValidateProperty(p models.Property) error {
	if strings.TrimSpace(p.ID) == "" {
		return invalidProperty(p.ID, "id", "is required")
	}
	if math.IsNaN(p.Price) || p.Price <= 0 {
		return invalidProperty(p.ID, "price", "is missing or not positive")
	}
	if math.IsNaN(p.Size) || p.Size < 0 {
		return invalidProperty(p.ID, "size", "must not be negative")
	}
	if p.Bedrooms < 0 || p.Bathrooms < 0 {
		return invalidProperty(p.ID, "bedrooms/bathrooms", "must not be negative")
	}
	if !p.Category.Valid() {
		return invalidProperty(p.ID, "category", "is not a known category")
	}
	switch p.Status {
	case models.PropertyAvailable, models.PropertySold, models.PropertyRented, models.PropertyUnderContract:
	default:
		return invalidProperty(p.ID, "status", "is not a known availability status")
	}
	return nil
}

// validProperties splits a collection into records that pass validation and
// a report of the ones that do not. Input order is preserved.
func validProperties(props []models.Property) ([]models.Property, []models.SkippedItem) {
	out := make([]models.Property, 0, len(props))
	var skipped []models.SkippedItem
	for _, p := range props {
		if err := ValidateProperty(p); err != nil {
			skipped = append(skipped, skippedFrom(p.ID, err))
			continue
		}
		out = append(out, p)
	}
	return out, skipped
}
