package cache

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anime-shed/mockup-compositor-go/pkg/models"
)

// fakeRedis is an in-memory stand-in for the redis client
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failGet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd { return redis.NewStatusResult("PONG", nil) }
func (f *fakeRedis) Close() error                          { return nil }

func TestRedisCache_RoundTrip(t *testing.T) {
	fake := newFakeRedis()
	c := &RedisCache{client: fake, ttl: time.Hour}
	ctx := context.Background()

	key := Key([]byte("template"), []byte("artwork"), "mug.psd", "q90")
	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("Expected miss, got ok=%v err=%v", ok, err)
	}

	result := &models.PlacementResult{
		Image:     []byte{0xFF, 0xD8, 0xFF, 0xD9},
		Method:    models.MethodGeometricFallback,
		Rationale: "centered_70_percent",
		Width:     1200,
		Height:    800,
		Region:    models.PlacementRegion{X: 180, Y: 120, Width: 840, Height: 560},
		DPI:       300,
	}
	if err := c.Set(ctx, key, result); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if fake.ttls[keyPrefix+key] != time.Hour {
		t.Errorf("Expected TTL of 1h, got %s", fake.ttls[keyPrefix+key])
	}

	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Expected hit, got ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got.Image, result.Image) {
		t.Errorf("Image bytes lost in cache: %v", got.Image)
	}
	if got.Method != result.Method || got.Region != result.Region || got.DPI != 300 {
		t.Errorf("Unexpected cached result %+v", got)
	}
}

func TestRedisCache_GetError(t *testing.T) {
	fake := newFakeRedis()
	fake.failGet = errors.New("connection refused")
	c := &RedisCache{client: fake, ttl: time.Hour}

	if _, ok, err := c.Get(context.Background(), "k"); ok || err == nil {
		t.Errorf("Expected error, got ok=%v err=%v", ok, err)
	}
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	fake := newFakeRedis()
	fake.data[keyPrefix+"k"] = "{not json"
	c := &RedisCache{client: fake, ttl: time.Hour}

	if _, ok, err := c.Get(context.Background(), "k"); ok || err == nil {
		t.Errorf("Expected decode error, got ok=%v err=%v", ok, err)
	}
}

func TestKey(t *testing.T) {
	base := Key([]byte("ab"), []byte("c"), "f.psd", "v1")
	if base != Key([]byte("ab"), []byte("c"), "f.psd", "v1") {
		t.Error("Expected stable keys")
	}
	others := []string{
		Key([]byte("a"), []byte("bc"), "f.psd", "v1"),
		Key([]byte("ab"), []byte("c"), "g.psd", "v1"),
		Key([]byte("ab"), []byte("c"), "f.psd", "v2"),
	}
	for i, k := range others {
		if k == base {
			t.Errorf("Variant %d collided with the base key", i)
		}
	}
	if len(base) != 64 {
		t.Errorf("Expected hex sha256, got %d chars", len(base))
	}
}

func TestNoopCache(t *testing.T) {
	var c ResultCache = NoopCache{}
	if err := c.Set(context.Background(), "k", &models.PlacementResult{}); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(context.Background(), "k"); ok {
		t.Error("Expected noop cache to miss")
	}
}
