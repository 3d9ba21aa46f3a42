package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anime-shed/mockup-compositor-go/internal/cache"
	apperrors "github.com/anime-shed/mockup-compositor-go/internal/errors"
	"github.com/anime-shed/mockup-compositor-go/internal/logger"
	"github.com/anime-shed/mockup-compositor-go/internal/observer"
	"github.com/anime-shed/mockup-compositor-go/internal/placement"
	"github.com/anime-shed/mockup-compositor-go/internal/repository"
	"github.com/anime-shed/mockup-compositor-go/pkg/models"
	"github.com/anime-shed/mockup-compositor-go/pkg/validation"
)

// MockupService turns template and artwork assets into print-ready mockups
type MockupService interface {
	// CreateMockup composites uploaded template and artwork bytes
	CreateMockup(ctx context.Context, req placement.PlacementRequest) (*Outcome, error)

	// CreateMockupFromURLs fetches both assets and composites them
	CreateMockupFromURLs(ctx context.Context, req models.RemoteMockupRequest) (*Outcome, error)

	// Stats reports engine and event counters
	Stats() Stats
}

// Placer performs one placement
type Placer interface {
	Place(ctx context.Context, req placement.PlacementRequest) (*models.PlacementResult, error)
	Stats() placement.EngineStats
}

// Outcome is a placement result and whether it came from the cache
type Outcome struct {
	Result *models.PlacementResult
	Cached bool
}

// Stats combines engine and event counters
type Stats struct {
	Engine placement.EngineStats     `json:"engine"`
	Events observer.MetricsSnapshot `json:"events"`
}

type mockupService struct {
	placer    Placer
	assets    repository.AssetRepository
	cache     cache.ResultCache
	validator *validation.AssetValidator
	events    observer.Subject
	metrics   *observer.MetricsObserver
	variant   string
}

// NewMockupService creates a mockup service. variant identifies the output
// settings and is mixed into cache keys.
func NewMockupService(
	placer Placer,
	assets repository.AssetRepository,
	resultCache cache.ResultCache,
	validator *validation.AssetValidator,
	events observer.Subject,
	metrics *observer.MetricsObserver,
	variant string,
) MockupService {
	if resultCache == nil {
		resultCache = cache.NoopCache{}
	}
	return &mockupService{
		placer:    placer,
		assets:    assets,
		cache:     resultCache,
		validator: validator,
		events:    events,
		metrics:   metrics,
		variant:   variant,
	}
}

// CreateMockup validates the inputs, serves a cached result when one exists
// and otherwise runs the placement engine.
func (s *mockupService) CreateMockup(ctx context.Context, req placement.PlacementRequest) (*Outcome, error) {
	if err := s.validator.ValidateAsset("template", req.Template); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateAsset("artwork", req.Artwork); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateFilename(req.Filename); err != nil {
		return nil, err
	}

	key := cache.Key(req.Template, req.Artwork, req.Filename, s.variant)
	if result, ok := s.lookup(ctx, key); ok {
		s.notify(ctx, observer.PlacementEvent{
			EventType: observer.CacheHit,
			Source:    req.Filename,
			Method:    string(result.Method),
			Rationale: result.Rationale,
			Success:   true,
		})
		return &Outcome{Result: result, Cached: true}, nil
	}

	start := time.Now()
	s.notify(ctx, observer.PlacementEvent{EventType: observer.PlacementStarted, Source: req.Filename})

	result, err := s.placer.Place(ctx, req)
	if err != nil {
		eventType := observer.PlacementFailed
		if apperrors.IsType(err, apperrors.ErrorTypeOverloaded) {
			eventType = observer.PlacementRejected
		}
		s.notify(ctx, observer.PlacementEvent{
			EventType:      eventType,
			Source:         req.Filename,
			ProcessingTime: time.Since(start),
			ErrorType:      errorType(err),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	s.notify(ctx, observer.PlacementEvent{
		EventType:      observer.PlacementCompleted,
		Source:         req.Filename,
		Method:         string(result.Method),
		Rationale:      result.Rationale,
		PrimaryError:   result.PrimaryError,
		ProcessingTime: result.ProcessingTime,
		Success:        true,
	})

	if err := s.cache.Set(context.WithoutCancel(ctx), key, result); err != nil {
		logger.WithError(err).Warn("Failed to cache placement result")
	}
	return &Outcome{Result: result}, nil
}

// CreateMockupFromURLs fetches template and artwork concurrently
func (s *mockupService) CreateMockupFromURLs(ctx context.Context, req models.RemoteMockupRequest) (*Outcome, error) {
	if err := s.assets.ValidateAssetURL(req.TemplateURL); err != nil {
		return nil, err
	}
	if err := s.assets.ValidateAssetURL(req.ArtworkURL); err != nil {
		return nil, err
	}

	var template, artwork []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		template, err = s.fetch(gctx, req.TemplateURL)
		return err
	})
	g.Go(func() error {
		var err error
		artwork, err = s.fetch(gctx, req.ArtworkURL)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	filename := req.Filename
	if filename == "" {
		filename = nameFromLocation(req.TemplateURL)
		if s.validator.ValidateFilename(filename) != nil {
			filename = ""
		}
	}
	return s.CreateMockup(ctx, placement.PlacementRequest{
		Template: template,
		Artwork:  artwork,
		Filename: filename,
	})
}

// Stats reports engine and event counters
func (s *mockupService) Stats() Stats {
	stats := Stats{Engine: s.placer.Stats()}
	if s.metrics != nil {
		stats.Events = s.metrics.Snapshot()
	}
	return stats
}

func (s *mockupService) fetch(ctx context.Context, location string) ([]byte, error) {
	start := time.Now()
	data, err := s.assets.FetchAsset(ctx, location)
	if err != nil {
		s.notify(ctx, observer.PlacementEvent{
			EventType:      observer.AssetFetchFailed,
			Source:         location,
			ProcessingTime: time.Since(start),
			ErrorType:      errorType(err),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}
	s.notify(ctx, observer.PlacementEvent{
		EventType:      observer.AssetFetched,
		Source:         location,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata:       map[string]interface{}{"bytes": len(data)},
	})
	return data, nil
}

func (s *mockupService) lookup(ctx context.Context, key string) (*models.PlacementResult, bool) {
	result, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.WithError(err).Warn("Placement cache lookup failed")
		return nil, false
	}
	return result, ok
}

func (s *mockupService) notify(ctx context.Context, event observer.PlacementEvent) {
	if s.events != nil {
		s.events.NotifyObservers(ctx, event)
	}
}

func errorType(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Type)
	}
	return ""
}
