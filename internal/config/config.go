package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/propintel/backend/internal/engine"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	AdminKey        string        `mapstructure:"ADMIN_KEY"`
	MessagingURL    string        `mapstructure:"MESSAGING_URL"`
	MessagingToken  string        `mapstructure:"MESSAGING_TOKEN"`
	MessagingRegion string        `mapstructure:"MESSAGING_REGION"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	AnalysisWorkers int           `mapstructure:"ANALYSIS_WORKERS"`
	InsightCacheTTL time.Duration `mapstructure:"INSIGHT_CACHE_TTL"`
	NotifyUrgent    bool          `mapstructure:"NOTIFY_URGENT"`

	WeightBudget         float64 `mapstructure:"WEIGHT_BUDGET"`
	WeightArea           float64 `mapstructure:"WEIGHT_AREA"`
	WeightPropertyType   float64 `mapstructure:"WEIGHT_PROPERTY_TYPE"`
	WeightLocation       float64 `mapstructure:"WEIGHT_LOCATION"`
	WeightFeatures       float64 `mapstructure:"WEIGHT_FEATURES"`
	WeightUrgency        float64 `mapstructure:"WEIGHT_URGENCY"`
	MinMatchScore        int     `mapstructure:"MIN_MATCH_SCORE"`
	HighIntentScore      int     `mapstructure:"HIGH_INTENT_SCORE"`
	FollowUpDays         int     `mapstructure:"FOLLOW_UP_DAYS"`
	MinInsightSampleSize int     `mapstructure:"MIN_INSIGHT_SAMPLE_SIZE"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MESSAGING_REGION", "AE")
	v.SetDefault("ANALYSIS_WORKERS", 4)
	v.SetDefault("INSIGHT_CACHE_TTL", "1h")
	v.SetDefault("NOTIFY_URGENT", false)
	// Every key needs a default so AutomaticEnv picks it up in Unmarshal.
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("ADMIN_KEY", "")
	v.SetDefault("MESSAGING_URL", "")
	v.SetDefault("MESSAGING_TOKEN", "")

	w := engine.DefaultWeights()
	v.SetDefault("WEIGHT_BUDGET", w.Budget)
	v.SetDefault("WEIGHT_AREA", w.Area)
	v.SetDefault("WEIGHT_PROPERTY_TYPE", w.PropertyType)
	v.SetDefault("WEIGHT_LOCATION", w.Location)
	v.SetDefault("WEIGHT_FEATURES", w.Features)
	v.SetDefault("WEIGHT_URGENCY", w.Urgency)

	t := engine.DefaultThresholds()
	v.SetDefault("MIN_MATCH_SCORE", t.MinMatchScore)
	v.SetDefault("HIGH_INTENT_SCORE", t.HighIntentScore)
	v.SetDefault("FOLLOW_UP_DAYS", t.FollowUpDays)
	v.SetDefault("MIN_INSIGHT_SAMPLE_SIZE", t.MinInsightSampleSize)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := cfg.Engine(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Engine returns the validated scoring configuration.
func (c Config) Engine() (engine.Config, error) {
	ec, err := engine.NewConfig(
		engine.Weights{
			Budget:       c.WeightBudget,
			Area:         c.WeightArea,
			PropertyType: c.WeightPropertyType,
			Location:     c.WeightLocation,
			Features:     c.WeightFeatures,
			Urgency:      c.WeightUrgency,
		},
		engine.Thresholds{
			MinMatchScore:        c.MinMatchScore,
			HighIntentScore:      c.HighIntentScore,
			FollowUpDays:         c.FollowUpDays,
			MinInsightSampleSize: c.MinInsightSampleSize,
		},
	)
	if err != nil {
		return engine.Config{}, fmt.Errorf("engine config: %w", err)
	}
	return ec, nil
}
