package engine

import (
	"math"
	"time"

	"github.com/propintel/backend/internal/models"
)

const (
	clarityBase = 3

	minContactWeeks = 1.0 / 7
)

type intentFactor struct {
	positive string
	negative string
}

var (
	contactFactor     = intentFactor{"Frequent contact with the brokerage", "Rare contact with the brokerage"}
	urgencyFactor     = intentFactor{"High urgency to buy", "Low urgency to buy"}
	clarityFactor     = intentFactor{"Clear, well-defined requirements", "Vague requirements"}
	interactionFactor = intentFactor{"Strong engagement with sent offers", "Weak engagement with sent offers"}
)

// ScoreIntent rates how ready a client is to transact on a 1..5 scale.
func ScoreIntent(c models.Client, now time.Time) (models.ClientIntentScore, error) {
	if err := ValidateClient(c); err != nil {
		return models.ClientIntentScore{}, err
	}
	return scoreIntent(c, now), nil
}

func scoreIntent(c models.Client, now time.Time) models.ClientIntentScore {
	out := models.ClientIntentScore{
		ClientID:         c.ID,
		ContactFrequency: contactFrequencyScore(c, now),
		Urgency:          clampInt(c.UrgencyLevel, 1, 5),
		Clarity:          clarityScore(c),
		Interaction:      interactionScore(c.InteractionScore),
		PositiveFactors:  []string{},
		NegativeFactors:  []string{},
		ComputedAt:       now,
	}
	sum := out.ContactFrequency + out.Urgency + out.Clarity + out.Interaction
	out.Overall = clampInt(int(math.Round(float64(sum)/4)), 1, 5)

	for _, s := range []struct {
		score  int
		factor intentFactor
	}{
		{out.ContactFrequency, contactFactor},
		{out.Urgency, urgencyFactor},
		{out.Clarity, clarityFactor},
		{out.Interaction, interactionFactor},
	} {
		switch {
		case s.score >= 4:
			out.PositiveFactors = append(out.PositiveFactors, s.factor.positive)
		case s.score <= 2:
			out.NegativeFactors = append(out.NegativeFactors, s.factor.negative)
		}
	}
	return out
}

// contactFrequencyScore buckets contacts per week since the client was
// created. Elapsed time is floored at one day; any contact inside a day
// already rates 7 per week, so the floor never changes a bucket.
func contactFrequencyScore(c models.Client, now time.Time) int {
	weeks := now.Sub(c.CreatedAt).Hours() / 24 / 7
	if weeks < minContactWeeks {
		weeks = minContactWeeks
	}
	perWeek := float64(c.ContactFrequency) / weeks
	switch {
	case perWeek >= 3:
		return 5
	case perWeek >= 2:
		return 4
	case perWeek >= 1:
		return 3
	case perWeek >= 0.5:
		return 2
	default:
		return 1
	}
}

func clarityScore(c models.Client) int {
	score := clarityBase
	if c.BudgetMin != nil && c.BudgetMax != nil {
		score++
	}
	if len(c.PreferredAreas) > 0 {
		score++
	}
	if len(c.Categories) > 0 {
		score++
	}
	if c.AreaMin != nil || c.AreaMax != nil {
		score++
	}
	if c.BedroomsMin != nil || c.BathroomsMin != nil {
		score++
	}
	return clampInt(score, 1, 5)
}

func interactionScore(v float64) int {
	switch {
	case v >= 0.8:
		return 5
	case v >= 0.6:
		return 4
	case v >= 0.4:
		return 3
	case v >= 0.2:
		return 2
	default:
		return 1
	}
}
