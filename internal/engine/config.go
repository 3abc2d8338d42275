package engine

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

const weightSumTolerance = 0.001

// Weights are the per-factor coefficients of the composite match score.
type Weights struct {
	Budget       float64 `json:"budget" validate:"gte=0"`
	Area         float64 `json:"area" validate:"gte=0"`
	PropertyType float64 `json:"property_type" validate:"gte=0"`
	Location     float64 `json:"location" validate:"gte=0"`
	Features     float64 `json:"features" validate:"gte=0"`
	Urgency      float64 `json:"urgency" validate:"gte=0"`
}

func (w Weights) Sum() float64 {
	return w.Budget + w.Area + w.PropertyType + w.Location + w.Features + w.Urgency
}

type Thresholds struct {
	MinMatchScore        int `json:"min_match_score" validate:"gte=0,lte=100"`
	HighIntentScore      int `json:"high_intent_score" validate:"gte=1,lte=5"`
	FollowUpDays         int `json:"follow_up_days" validate:"gte=1"`
	MinInsightSampleSize int `json:"min_insight_sample_size" validate:"gte=3"`
}

// Config is passed by value everywhere; nothing in this package keeps a
// reference to a caller's copy.
type Config struct {
	Weights    Weights    `json:"weights"`
	Thresholds Thresholds `json:"thresholds"`
}

func DefaultWeights() Weights {
	return Weights{
		Budget:       0.25,
		Area:         0.15,
		PropertyType: 0.20,
		Location:     0.20,
		Features:     0.10,
		Urgency:      0.10,
	}
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinMatchScore:        60,
		HighIntentScore:      4,
		FollowUpDays:         3,
		MinInsightSampleSize: 3,
	}
}

func DefaultConfig() Config {
	return Config{Weights: DefaultWeights(), Thresholds: DefaultThresholds()}
}

// NewConfig validates weights and thresholds. Weights that do not sum to 1.0
// are rejected rather than normalized.
func NewConfig(w Weights, t Thresholds) (Config, error) {
	cfg := Config{Weights: w, Thresholds: t}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	sum := c.Weights.Sum()
	if math.IsNaN(sum) || math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("%w: weights sum to %.4f, want 1.0", ErrInvalidConfig, sum)
	}
	return nil
}
