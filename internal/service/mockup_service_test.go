package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/anime-shed/mockup-compositor-go/internal/cache"
	apperrors "github.com/anime-shed/mockup-compositor-go/internal/errors"
	"github.com/anime-shed/mockup-compositor-go/internal/observer"
	"github.com/anime-shed/mockup-compositor-go/internal/placement"
	"github.com/anime-shed/mockup-compositor-go/pkg/models"
	"github.com/anime-shed/mockup-compositor-go/pkg/validation"
)

type fakePlacer struct {
	calls atomic.Int32
	place func(req placement.PlacementRequest) (*models.PlacementResult, error)
}

func (p *fakePlacer) Place(ctx context.Context, req placement.PlacementRequest) (*models.PlacementResult, error) {
	p.calls.Add(1)
	return p.place(req)
}

func (p *fakePlacer) Stats() placement.EngineStats {
	return placement.EngineStats{Capacity: 4}
}

type fakeAssets struct {
	mu      sync.Mutex
	data    map[string][]byte
	fetched []string
}

func (a *fakeAssets) FetchAsset(ctx context.Context, location string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetched = append(a.fetched, location)
	data, ok := a.data[location]
	if !ok {
		return nil, apperrors.NewNotFoundError("asset not found", nil)
	}
	return data, nil
}

func (a *fakeAssets) ValidateAssetURL(location string) error {
	if location == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}
	return nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*models.PlacementResult
}

func (c *memoryCache) Get(ctx context.Context, key string) (*models.PlacementResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	return r, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, result *models.PlacementResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
	return nil
}

func (c *memoryCache) Close() error { return nil }

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (*models.PlacementResult, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (brokenCache) Set(context.Context, string, *models.PlacementResult) error {
	return errors.New("connection refused")
}
func (brokenCache) Close() error { return nil }

func okResult() *models.PlacementResult {
	return &models.PlacementResult{
		Image:  []byte{0xFF, 0xD8, 0xFF},
		Method: models.MethodGeometricFallback,
		Width:  1000,
		Height: 1000,
		DPI:    300,
	}
}

type fixture struct {
	svc       MockupService
	placer    *fakePlacer
	assets    *fakeAssets
	publisher *observer.EventPublisher
	metrics   *observer.MetricsObserver
}

func newFixture(resultCache cache.ResultCache, place func(placement.PlacementRequest) (*models.PlacementResult, error)) *fixture {
	f := &fixture{
		placer:    &fakePlacer{place: place},
		assets:    &fakeAssets{data: map[string][]byte{}},
		publisher: observer.NewEventPublisher(),
		metrics:   observer.NewMetricsObserver(),
	}
	f.publisher.Subscribe(f.metrics)
	validator := validation.NewAssetValidator(validation.DefaultAssetLimits(1024))
	f.svc = NewMockupService(f.placer, f.assets, resultCache, validator, f.publisher, f.metrics, "q90-300dpi")
	return f
}

func (f *fixture) snapshot() observer.MetricsSnapshot {
	f.publisher.Flush()
	return f.metrics.Snapshot()
}

func TestCreateMockup_Success(t *testing.T) {
	f := newFixture(nil, func(placement.PlacementRequest) (*models.PlacementResult, error) {
		return okResult(), nil
	})

	out, err := f.svc.CreateMockup(context.Background(), placement.PlacementRequest{
		Template: []byte("template"),
		Artwork:  []byte("artwork"),
		Filename: "mug.psd",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Cached {
		t.Error("Expected a fresh result")
	}
	if out.Result.Method != models.MethodGeometricFallback {
		t.Errorf("Unexpected method %s", out.Result.Method)
	}

	snap := f.snapshot()
	if snap.TotalPlacements != 1 || snap.SuccessfulPlacements != 1 {
		t.Errorf("Unexpected counters: %+v", snap)
	}
	if snap.ByMethod[string(models.MethodGeometricFallback)] != 1 {
		t.Errorf("Expected method to be counted, got %v", snap.ByMethod)
	}
}

func TestCreateMockup_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  placement.PlacementRequest
	}{
		{"Empty template", placement.PlacementRequest{Artwork: []byte("a")}},
		{"Empty artwork", placement.PlacementRequest{Template: []byte("t")}},
		{"Oversized template", placement.PlacementRequest{Template: make([]byte, 2048), Artwork: []byte("a")}},
		{"Bad extension", placement.PlacementRequest{Template: []byte("t"), Artwork: []byte("a"), Filename: "mug.exe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil, func(placement.PlacementRequest) (*models.PlacementResult, error) {
				return okResult(), nil
			})
			_, err := f.svc.CreateMockup(context.Background(), tt.req)
			if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if f.placer.calls.Load() != 0 {
				t.Error("Placer should not run for invalid input")
			}
		})
	}
}

func TestCreateMockup_CacheHit(t *testing.T) {
	mem := &memoryCache{entries: map[string]*models.PlacementResult{}}
	f := newFixture(mem, func(placement.PlacementRequest) (*models.PlacementResult, error) {
		return okResult(), nil
	})
	req := placement.PlacementRequest{Template: []byte("t"), Artwork: []byte("a"), Filename: "mug.png"}

	if _, err := f.svc.CreateMockup(context.Background(), req); err != nil {
		t.Fatalf("First call failed: %v", err)
	}
	out, err := f.svc.CreateMockup(context.Background(), req)
	if err != nil {
		t.Fatalf("Second call failed: %v", err)
	}
	if !out.Cached {
		t.Error("Expected second result to come from the cache")
	}
	if f.placer.calls.Load() != 1 {
		t.Errorf("Expected one placement, got %d", f.placer.calls.Load())
	}
	if snap := f.snapshot(); snap.CacheHits != 1 {
		t.Errorf("Expected one cache hit, got %d", snap.CacheHits)
	}

	// Different artwork is a different key.
	req.Artwork = []byte("other")
	if out, _ := f.svc.CreateMockup(context.Background(), req); out == nil || out.Cached {
		t.Error("Expected a miss for different artwork")
	}
}

func TestCreateMockup_CacheErrorsAreNotFatal(t *testing.T) {
	f := newFixture(brokenCache{}, func(placement.PlacementRequest) (*models.PlacementResult, error) {
		return okResult(), nil
	})
	out, err := f.svc.CreateMockup(context.Background(), placement.PlacementRequest{
		Template: []byte("t"), Artwork: []byte("a"),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out.Cached {
		t.Error("Broken cache cannot produce hits")
	}
}

func TestCreateMockup_Failures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		rejected int64
		failed   int64
	}{
		{"Overloaded", apperrors.NewOverloadedError("busy", nil), 1, 0},
		{"Both paths failed", apperrors.NewPlacementFailedError(
			apperrors.NewNoPlacementTargetError("no target"),
			apperrors.NewFallbackCompositeFailedError("bad", nil)), 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil, func(placement.PlacementRequest) (*models.PlacementResult, error) {
				return nil, tt.err
			})
			_, err := f.svc.CreateMockup(context.Background(), placement.PlacementRequest{
				Template: []byte("t"), Artwork: []byte("a"),
			})
			if !errors.Is(err, tt.err) {
				t.Fatalf("Expected %v, got %v", tt.err, err)
			}
			snap := f.snapshot()
			if snap.RejectedPlacements != tt.rejected || snap.FailedPlacements != tt.failed {
				t.Errorf("Unexpected counters: %+v", snap)
			}
		})
	}
}

func TestCreateMockupFromURLs(t *testing.T) {
	var got placement.PlacementRequest
	f := newFixture(nil, func(req placement.PlacementRequest) (*models.PlacementResult, error) {
		got = req
		return okResult(), nil
	})
	f.assets.data["https://cdn.example.com/templates/tote.psd?v=2"] = []byte("template")
	f.assets.data["azblob://art/print.png"] = []byte("artwork")

	_, err := f.svc.CreateMockupFromURLs(context.Background(), models.RemoteMockupRequest{
		TemplateURL: "https://cdn.example.com/templates/tote.psd?v=2",
		ArtworkURL:  "azblob://art/print.png",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(got.Template) != "template" || string(got.Artwork) != "artwork" {
		t.Errorf("Assets were swapped or missing: %q / %q", got.Template, got.Artwork)
	}
	if got.Filename != "tote.psd" {
		t.Errorf("Expected filename derived from template URL, got %q", got.Filename)
	}
}

func TestCreateMockupFromURLs_FetchFailure(t *testing.T) {
	f := newFixture(nil, func(placement.PlacementRequest) (*models.PlacementResult, error) {
		return okResult(), nil
	})
	f.assets.data["file:///tote.psd"] = []byte("template")

	_, err := f.svc.CreateMockupFromURLs(context.Background(), models.RemoteMockupRequest{
		TemplateURL: "file:///tote.psd",
		ArtworkURL:  "file:///missing.png",
	})
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}
	if f.placer.calls.Load() != 0 {
		t.Error("Placer should not run when a fetch fails")
	}
	if snap := f.snapshot(); snap.FetchFailures != 1 {
		t.Errorf("Expected one fetch failure, got %d", snap.FetchFailures)
	}
}

func TestNameFromLocation(t *testing.T) {
	tests := []struct {
		location string
		want     string
	}{
		{"https://cdn.example.com/a/b/mug.psd", "mug.psd"},
		{"azblob://mockups/shirts/tee.png", "tee.png"},
		{"file:///poster.jpg", "poster.jpg"},
		{"https://cdn.example.com/", ""},
	}
	for _, tt := range tests {
		if got := nameFromLocation(tt.location); got != tt.want {
			t.Errorf("nameFromLocation(%q) = %q, want %q", tt.location, got, tt.want)
		}
	}
}

func TestStats(t *testing.T) {
	f := newFixture(nil, nil)
	if stats := f.svc.Stats(); stats.Engine.Capacity != 4 {
		t.Errorf("Expected engine stats to pass through, got %+v", stats.Engine)
	}
}
