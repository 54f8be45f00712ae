package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/leozw/domain-guardian/internal/core"
)

const resolvePrefix = "custom_domain:resolve:"

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) *Client {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{
			Addr: redisURL,
		}
	}

	return &Client{redis.NewClient(opt)}
}

func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.Set(ctx, key, data, expiration).Err()
}

// GetJSON reports false without error when the key is missing.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, json.Unmarshal(data, dest)
}

// ResolveCache keeps host to space lookups for the public resolve endpoint.
type ResolveCache struct {
	client *Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewResolveCache(client *Client, ttl time.Duration, logger *zap.Logger) *ResolveCache {
	return &ResolveCache{
		client: client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "resolve_cache")),
	}
}

func (c *ResolveCache) Get(ctx context.Context, host string) (*core.SpacePublic, bool, error) {
	var space core.SpacePublic
	found, err := c.client.GetJSON(ctx, resolvePrefix+host, &space)
	if err != nil || !found {
		return nil, false, err
	}
	return &space, true, nil
}

func (c *ResolveCache) Set(ctx context.Context, host string, space *core.SpacePublic) error {
	return c.client.SetJSON(ctx, resolvePrefix+host, space, c.ttl)
}

// Invalidate drops the cached lookup for host. It matches registry.ChangeHook.
func (c *ResolveCache) Invalidate(ctx context.Context, host string) {
	if err := c.client.Del(ctx, resolvePrefix+host).Err(); err != nil {
		c.logger.Warn("Failed to invalidate resolve cache",
			zap.String("domain", host),
			zap.Error(err),
		)
	}
}
