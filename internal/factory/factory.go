package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/anime-shed/mockup-compositor-go/internal/cache"
	"github.com/anime-shed/mockup-compositor-go/internal/config"
	"github.com/anime-shed/mockup-compositor-go/internal/logger"
	"github.com/anime-shed/mockup-compositor-go/internal/placement"
	"github.com/anime-shed/mockup-compositor-go/internal/psdparse"
	"github.com/anime-shed/mockup-compositor-go/internal/storage"
	"github.com/anime-shed/mockup-compositor-go/internal/textocr"
	"github.com/anime-shed/mockup-compositor-go/pkg/validation"
)

// ParserType selects how layered templates are parsed
type ParserType string

const (
	// ProcessParser runs the decoder in a killable child process
	ProcessParser ParserType = config.IsolationProcess
	// InProcessParser runs the decoder on a goroutine
	InProcessParser ParserType = config.IsolationInProcess
)

// StorageType represents different types of asset sources
type StorageType string

const (
	// HTTPStorage for http and https URLs
	HTTPStorage StorageType = "http"
	// AzureStorage for azblob://container/blob references
	AzureStorage StorageType = "azure"
	// LocalStorage for the on-disk mockup library
	LocalStorage StorageType = "local"
)

// ComponentFactory builds configured components
type ComponentFactory struct {
	cfg *config.Config
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{cfg: cfg}
}

// CreateStorage creates a fetcher for one asset source
func (f *ComponentFactory) CreateStorage(storageType StorageType) (storage.AssetFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return storage.NewHTTPFetcher(f.cfg.AssetFetchTimeout, f.cfg.MaxUploadSize), nil
	case AzureStorage:
		if !f.cfg.AzureEnabled() {
			return nil, fmt.Errorf("azure storage requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
		}
		return storage.NewAzureBlobFetcher(f.cfg.AzureAccountName, f.cfg.AzureAccountKey, f.cfg.MaxUploadSize)
	case LocalStorage:
		return storage.NewLocalFetcher(f.cfg.MockupDir, f.cfg.MaxUploadSize), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// CreateFetchers maps URL schemes to fetchers. Azure is only wired when
// credentials are configured.
func (f *ComponentFactory) CreateFetchers() (map[string]storage.AssetFetcher, error) {
	httpFetcher, err := f.CreateStorage(HTTPStorage)
	if err != nil {
		return nil, err
	}
	local, err := f.CreateStorage(LocalStorage)
	if err != nil {
		return nil, err
	}
	fetchers := map[string]storage.AssetFetcher{
		validation.SchemeHTTP:  httpFetcher,
		validation.SchemeHTTPS: httpFetcher,
		validation.SchemeFile:  local,
	}

	if f.cfg.AzureEnabled() {
		azure, err := f.CreateStorage(AzureStorage)
		if err != nil {
			return nil, err
		}
		fetchers[validation.SchemeAzureBlob] = azure
	} else {
		logger.Debug("Azure Blob credentials not set; azblob:// sources disabled")
	}
	return fetchers, nil
}

// CreateParser creates the layered-template parser for the configured
// isolation mode.
func (f *ComponentFactory) CreateParser() (placement.TemplateParser, error) {
	switch ParserType(f.cfg.ParseIsolation) {
	case ProcessParser:
		parser, err := psdparse.NewProcessParser(psdparse.ProcessOptions{
			Timeout:     f.cfg.ParseTimeout,
			MaxOutput:   f.cfg.ParseMaxOutput,
			OCR:         f.cfg.LayerOCR,
			OCRLanguage: f.cfg.OCRLanguage,
		})
		if err != nil {
			return nil, err
		}
		return parser, nil
	case InProcessParser:
		var recognizer psdparse.TextRecognizer
		if f.cfg.LayerOCR {
			r, err := NewRecognizer(f.cfg.OCRLanguage)
			if err != nil {
				logger.WithError(err).Warn("Text recognition unavailable; type layers without text are skipped")
			} else {
				recognizer = r
			}
		}
		return psdparse.NewInProcessParser(f.cfg.ParseTimeout, recognizer), nil
	default:
		return nil, fmt.Errorf("unsupported parser type: %s", f.cfg.ParseIsolation)
	}
}

// NewRecognizer starts text recognition tuned to the placement keywords.
// It returns an interface value that is nil on error.
func NewRecognizer(lang string) (psdparse.TextRecognizer, error) {
	r, err := textocr.New(lang, placement.DefaultDetectorOptions().TextKeywords)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// CreateCache connects to Redis when configured. An unreachable server
// degrades to no caching.
func (f *ComponentFactory) CreateCache(ctx context.Context) cache.ResultCache {
	if !f.cfg.CacheEnabled() {
		return cache.NoopCache{}
	}

	rc := cache.NewRedisCache(f.cfg.RedisAddr, f.cfg.RedisPassword, f.cfg.RedisDB, f.cfg.CacheTTL)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.WithError(err).WithField("addr", f.cfg.RedisAddr).Warn("Redis unavailable; result cache disabled")
		rc.Close()
		return cache.NoopCache{}
	}
	logger.WithField("addr", f.cfg.RedisAddr).Info("Result cache enabled")
	return rc
}

// EngineOptions derives placement engine options from configuration
func (f *ComponentFactory) EngineOptions() placement.EngineOptions {
	opts := placement.DefaultEngineOptions()
	opts.Detector = opts.Detector.
		WithCandidateArea(f.cfg.CandidateMinArea, f.cfg.CandidateMaxArea).
		WithCandidateAspect(f.cfg.CandidateMinAspect, f.cfg.CandidateMaxAspect)
	opts.FallbackScalePercent = f.cfg.FallbackScalePercent
	opts.JPEGQuality = f.cfg.JPEGQuality
	opts.OutputDPI = f.cfg.OutputDPI
	opts.MaxInFlight = f.cfg.MaxInFlight
	opts.QueueTimeout = f.cfg.QueueTimeout
	opts.Workers = f.cfg.CompositeWorkers
	opts.MaxImagePixels = f.cfg.MaxImagePixels
	return opts
}

// Variant identifies every setting that changes output bytes; it is
// mixed into result cache keys.
func (f *ComponentFactory) Variant() string {
	return fmt.Sprintf("q%d-dpi%d-fb%d-area%d:%d-aspect%g:%g-ocr%t",
		f.cfg.JPEGQuality, f.cfg.OutputDPI, f.cfg.FallbackScalePercent,
		f.cfg.CandidateMinArea, f.cfg.CandidateMaxArea,
		f.cfg.CandidateMinAspect, f.cfg.CandidateMaxAspect, f.cfg.LayerOCR)
}
