package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunGuard claims a named run at most once per TTL across processes.
type RunGuard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type redisRunGuard struct {
	client *redis.Client
}

func NewRunGuard(client *redis.Client) RunGuard {
	return &redisRunGuard{client: client}
}

func (g *redisRunGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, "run:"+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim run %s: %w", key, err)
	}
	return ok, nil
}
