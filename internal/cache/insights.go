package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/propintel/backend/internal/models"
)

const keyPrefix = "insights"

// InsightCache stores computed market insights under a caller-supplied key.
// A nil *InsightCache is valid and never hits.
type InsightCache struct {
	client *redis.Client
	ttl    time.Duration
}

func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewInsightCache(client *redis.Client, ttl time.Duration) *InsightCache {
	if client == nil {
		return nil
	}
	return &InsightCache{client: client, ttl: ttl}
}

// Key scopes a property set version to a calendar day, since days on market
// change with the date even when the listings do not.
func Key(version string, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, version, now.UTC().Format("2006-01-02"))
}

func (c *InsightCache) Get(ctx context.Context, key string) ([]models.MarketInsight, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out []models.MarketInsight
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false, fmt.Errorf("decode cached insights: %w", err)
	}
	return out, true, nil
}

func (c *InsightCache) Set(ctx context.Context, key string, insights []models.MarketInsight) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(insights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, c.ttl).Err()
}
