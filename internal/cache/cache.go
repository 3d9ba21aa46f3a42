package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anime-shed/mockup-compositor-go/internal/logger"
	"github.com/anime-shed/mockup-compositor-go/pkg/models"
)

const keyPrefix = "mockup:"

// ResultCache stores finished placements by input digest
type ResultCache interface {
	Get(ctx context.Context, key string) (*models.PlacementResult, bool, error)
	Set(ctx context.Context, key string, result *models.PlacementResult) error
	Close() error
}

// Key derives a cache key from the inputs and every setting that changes
// the output bytes.
func Key(template, artwork []byte, filename, variant string) string {
	h := sha256.New()
	for _, part := range [][]byte{template, artwork, []byte(filename), []byte(variant)} {
		fmt.Fprintf(h, "%d:", len(part))
		h.Write(part)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// kv is the subset of the redis client the cache uses
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// entry is the stored form; PlacementResult keeps its image out of JSON.
type entry struct {
	Result models.PlacementResult `json:"result"`
	Image  []byte                 `json:"image"`
}

// RedisCache keeps placement results in Redis with a TTL
type RedisCache struct {
	client kv
	ttl    time.Duration
}

// NewRedisCache connects to Redis
func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: client, ttl: ttl}
}

// Ping checks connectivity
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns a cached result. A miss is (nil, false, nil).
func (c *RedisCache) Get(ctx context.Context, key string) (*models.PlacementResult, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		logger.WithField("key", key).WithError(err).Error("Failed to unmarshal cached placement")
		return nil, false, err
	}
	result := e.Result
	result.Image = e.Image
	return &result, true, nil
}

// Set stores a result with the configured TTL
func (c *RedisCache) Set(ctx context.Context, key string, result *models.PlacementResult) error {
	data, err := json.Marshal(entry{Result: *result, Image: result.Image})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err()
}

// Close closes the redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NoopCache never stores anything
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*models.PlacementResult, bool, error) {
	return nil, false, nil
}
func (NoopCache) Set(context.Context, string, *models.PlacementResult) error { return nil }
func (NoopCache) Close() error                                              { return nil }
