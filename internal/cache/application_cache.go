// Package cache provides a Redis read-through cache for promotion applications.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/merchant-promotion-system/internal/domain/promotion"
	"github.com/fairyhunter13/merchant-promotion-system/internal/model"
	"github.com/fairyhunter13/merchant-promotion-system/internal/service"
)

const (
	keyPrefix = "promotion:application:"

	// tombstone marks a deleted application. applySeq values are never reused.
	tombstone = "deleted"
)

// Store is the subset of the Redis command set used by ApplicationCache.
// *redis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewRedisClient creates a Redis client with bounded pool and timeouts.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// ApplicationCache stores application documents as JSON keyed by applySeq.
type ApplicationCache struct {
	store Store
	ttl   time.Duration
}

// NewApplicationCache creates an ApplicationCache. A zero ttl keeps entries until invalidated.
func NewApplicationCache(store Store, ttl time.Duration) *ApplicationCache {
	return &ApplicationCache{store: store, ttl: ttl}
}

// Get returns the cached application, or nil, nil on a miss.
// A deleted application yields service.ErrApplicationNotFound.
func (c *ApplicationCache) Get(ctx context.Context, applySeq int64) (*promotion.Application, error) {
	raw, err := c.store.Get(ctx, key(applySeq)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get application %d: %w", applySeq, err)
	}
	if string(raw) == tombstone {
		return nil, service.ErrApplicationNotFound
	}

	var doc model.ApplicationDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode cached application %d: %w", applySeq, err)
	}
	app, err := doc.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("rehydrate cached application %d: %w", applySeq, err)
	}
	return app, nil
}

// Set stores app unconditionally, replacing any existing entry.
func (c *ApplicationCache) Set(ctx context.Context, app *promotion.Application) error {
	raw, err := encode(app)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, key(app.ApplySeq()), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set application %d: %w", app.ApplySeq(), err)
	}
	return nil
}

// Fill stores app only when no entry exists for its applySeq, so a snapshot read
// from the database never replaces a newer entry written by a mutation or a delete.
// It reports whether the entry was stored.
func (c *ApplicationCache) Fill(ctx context.Context, app *promotion.Application) (bool, error) {
	raw, err := encode(app)
	if err != nil {
		return false, err
	}
	stored, err := c.store.SetNX(ctx, key(app.ApplySeq()), raw, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache fill application %d: %w", app.ApplySeq(), err)
	}
	return stored, nil
}

// MarkDeleted replaces the entry with a tombstone so later fills cannot resurrect it.
func (c *ApplicationCache) MarkDeleted(ctx context.Context, applySeq int64) error {
	if err := c.store.Set(ctx, key(applySeq), tombstone, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache mark application %d deleted: %w", applySeq, err)
	}
	return nil
}

func (c *ApplicationCache) Invalidate(ctx context.Context, applySeq int64) error {
	if err := c.store.Del(ctx, key(applySeq)).Err(); err != nil {
		return fmt.Errorf("cache invalidate application %d: %w", applySeq, err)
	}
	return nil
}

// Ping checks the connection to Redis.
func (c *ApplicationCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.store.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func encode(app *promotion.Application) ([]byte, error) {
	raw, err := json.Marshal(model.NewApplicationDocument(app))
	if err != nil {
		return nil, fmt.Errorf("encode application %d: %w", app.ApplySeq(), err)
	}
	return raw, nil
}

func key(applySeq int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, applySeq)
}
