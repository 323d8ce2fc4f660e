package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"crystal-ball/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	latestDecisionKey = "decision:latest"
	latestDecisionTTL = 48 * time.Hour
)

// DecisionCache keeps the most recent next-day call in Redis so the
// handlers and the bot can serve it without touching Postgres.
type DecisionCache struct {
	client *redis.Client
}

func NewDecisionCache(client *redis.Client) *DecisionCache {
	return &DecisionCache{client: client}
}

func (c *DecisionCache) SetLatestDecision(ctx context.Context, decision domain.Decision) error {
	payload, err := json.Marshal(decision)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, latestDecisionKey, payload, latestDecisionTTL).Err()
}

func (c *DecisionCache) GetLatestDecision(ctx context.Context) (*domain.Decision, error) {
	payload, err := c.client.Get(ctx, latestDecisionKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var decision domain.Decision
	if err := json.Unmarshal(payload, &decision); err != nil {
		return nil, err
	}
	return &decision, nil
}
