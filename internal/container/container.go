package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anime-shed/mockup-compositor-go/internal/cache"
	"github.com/anime-shed/mockup-compositor-go/internal/config"
	"github.com/anime-shed/mockup-compositor-go/internal/factory"
	"github.com/anime-shed/mockup-compositor-go/internal/logger"
	"github.com/anime-shed/mockup-compositor-go/internal/observer"
	"github.com/anime-shed/mockup-compositor-go/internal/placement"
	"github.com/anime-shed/mockup-compositor-go/internal/repository"
	"github.com/anime-shed/mockup-compositor-go/internal/service"
	"github.com/anime-shed/mockup-compositor-go/internal/transport"
	"github.com/anime-shed/mockup-compositor-go/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config        *config.Config
	engine        *placement.Engine
	resultCache   cache.ResultCache
	events        *observer.EventPublisher
	mockupService service.MockupService
	handler       http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	f := factory.NewComponentFactory(cfg)

	fetchers, err := f.CreateFetchers()
	if err != nil {
		return nil, fmt.Errorf("failed to create asset fetchers: %w", err)
	}
	parser, err := f.CreateParser()
	if err != nil {
		return nil, fmt.Errorf("failed to create template parser: %w", err)
	}

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	engine := placement.NewEngine(parser, f.EngineOptions())
	resultCache := f.CreateCache(context.Background())
	assets := repository.NewSchemeRepository(validation.NewURLValidator(), fetchers)
	validator := validation.NewAssetValidator(validation.DefaultAssetLimits(cfg.MaxUploadSize))

	mockupService := service.NewMockupService(engine, assets, resultCache, validator, events, metrics, f.Variant())

	return &Container{
		config:        cfg,
		engine:        engine,
		resultCache:   resultCache,
		events:        events,
		mockupService: mockupService,
		handler:       transport.NewHandler(mockupService, cfg),
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close stops the engine, drains pending events and closes the cache
func (c *Container) Close() error {
	c.engine.Close()
	c.events.Flush()
	return c.resultCache.Close()
}
