package placement

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	apperrors "github.com/anime-shed/mockup-compositor-go/internal/errors"
	"github.com/anime-shed/mockup-compositor-go/internal/imageio"
	"github.com/anime-shed/mockup-compositor-go/internal/logger"
	"github.com/anime-shed/mockup-compositor-go/internal/psdparse"
	"github.com/anime-shed/mockup-compositor-go/pkg/models"
)

// PlacementRequest is one template/artwork pair to composite.
type PlacementRequest struct {
	Template []byte
	Artwork  []byte
	// Filename is an optional hint for the template format.
	Filename string
}

// EngineStats is a snapshot of admission and pool counters
type EngineStats struct {
	InFlight int64     `json:"in_flight"`
	Capacity int       `json:"capacity"`
	Rejected int64     `json:"rejected"`
	Pool     PoolStats `json:"pool"`
}

// Engine is the entry point for placements. It bounds concurrent requests,
// runs the primary/fallback dispatch and normalizes the output to a print
// JPEG.
type Engine struct {
	opts       EngineOptions
	parser     TemplateParser
	decoder    *imageio.Decoder
	dispatcher *Dispatcher
	pool       *WorkerPool
	sem        *semaphore.Weighted

	inFlight atomic.Int64
	rejected atomic.Int64
}

// NewEngine creates an engine. parser may be nil, in which case every
// layered template goes straight to the fallback path and fails there.
func NewEngine(parser TemplateParser, opts EngineOptions) *Engine {
	defaults := DefaultEngineOptions()
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = defaults.MaxInFlight
	}
	if opts.QueueTimeout <= 0 {
		opts.QueueTimeout = defaults.QueueTimeout
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = defaults.JPEGQuality
	}
	if opts.OutputDPI <= 0 {
		opts.OutputDPI = defaults.OutputDPI
	}

	pool := NewWorkerPool(opts.Workers)
	pool.Start()

	e := &Engine{
		opts:    opts,
		parser:  parser,
		decoder: imageio.NewDecoder(opts.MaxImagePixels),
		pool:    pool,
		sem:     semaphore.NewWeighted(int64(opts.MaxInFlight)),
	}
	e.dispatcher = NewDispatcher(
		parser,
		NewLayerCompositor(NewDetector(opts.Detector)),
		NewFallbackCompositor(opts.FallbackScalePercent),
		e.exec,
	)
	return e
}

// Place composites the artwork into the template and returns a flattened
// JPEG at the configured DPI. It returns an Overloaded error when no slot
// frees up within the queue timeout.
func (e *Engine) Place(ctx context.Context, req PlacementRequest) (*models.PlacementResult, error) {
	start := time.Now()

	if len(req.Template) == 0 {
		return nil, apperrors.NewValidationError("template is empty", nil)
	}
	if len(req.Artwork) == 0 {
		return nil, apperrors.NewValidationError("artwork is empty", nil)
	}

	if err := e.admit(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	in, err := e.decodeInputs(ctx, req)
	if err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	outcome, err := e.dispatcher.Dispatch(ctx, in)
	if err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	comp := outcome.composition

	var data []byte
	err = e.exec(ctx, func() error {
		var encErr error
		data, encErr = imageio.EncodePrintJPEG(imageio.Flatten(comp.Canvas), e.opts.JPEGQuality, e.opts.OutputDPI)
		return encErr
	})
	if err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.NewProcessingError("failed to encode output", err)
	}

	result := &models.PlacementResult{
		Image:          data,
		Method:         comp.Method,
		Rationale:      comp.Rationale,
		Width:          comp.Canvas.Bounds().Dx(),
		Height:         comp.Canvas.Bounds().Dy(),
		Region:         comp.Region,
		DPI:            e.opts.OutputDPI,
		ProcessingTime: time.Since(start),
	}
	if outcome.primaryErr != nil {
		result.PrimaryError = outcome.primaryErr.Error()
	}

	logger.WithFields(logrus.Fields{
		"method":     result.Method,
		"rationale":  result.Rationale,
		"dimensions": fmt.Sprintf("%dx%d", result.Width, result.Height),
		"duration":   result.ProcessingTime.String(),
	}).Info("Placement completed")

	return result, nil
}

// Stats returns admission and pool counters
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		InFlight: e.inFlight.Load(),
		Capacity: e.opts.MaxInFlight,
		Rejected: e.rejected.Load(),
		Pool:     e.pool.GetStats(),
	}
}

// Close stops the compositing pool
func (e *Engine) Close() {
	e.pool.Close()
}

func (e *Engine) admit(ctx context.Context) error {
	qctx, cancel := context.WithTimeout(ctx, e.opts.QueueTimeout)
	defer cancel()

	if err := e.sem.Acquire(qctx, 1); err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return ctxErr
		}
		e.rejected.Add(1)
		logger.WithField("capacity", e.opts.MaxInFlight).Warn("Placement rejected, engine at capacity")
		return apperrors.NewOverloadedError(
			fmt.Sprintf("no placement slot available within %s", e.opts.QueueTimeout), err)
	}
	e.inFlight.Add(1)
	return nil
}

func (e *Engine) release() {
	e.inFlight.Add(-1)
	e.sem.Release(1)
}

// decodeInputs decodes the artwork and, for non-layered templates, the
// template raster concurrently. Layered templates are left to the parser.
func (e *Engine) decodeInputs(ctx context.Context, req PlacementRequest) (dispatchInput, error) {
	in := dispatchInput{
		templateData: req.Template,
		layered:      imageio.IsLayered(req.Filename, req.Template),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, err := e.decodeArtwork(gctx, req.Artwork)
		if err != nil {
			return apperrors.NewArtworkUnreadableError("artwork cannot be decoded", err)
		}
		in.artwork = models.Artwork{Image: img}
		return nil
	})
	if !in.layered {
		g.Go(func() error {
			var img image.Image
			img, _, in.baseErr = e.decoder.Decode(req.Template)
			in.base = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return dispatchInput{}, err
	}
	return in, nil
}

// decodeArtwork decodes raster artwork in-process. Layered artwork is
// flattened by a composite-only parse, so it gets the same isolation and
// time budget as a layered template.
func (e *Engine) decodeArtwork(ctx context.Context, data []byte) (image.Image, error) {
	if !imageio.IsLayered("", data) {
		img, _, err := e.decoder.Decode(data)
		return img, err
	}
	if e.parser == nil {
		return nil, errors.New("no layer parser configured for layered artwork")
	}
	tpl, err := e.parser.Parse(ctx, data, psdparse.ParseOptions{CompositeOnly: true})
	if err != nil {
		return nil, err
	}
	if tpl == nil || tpl.Composite == nil {
		return nil, psdparse.ErrNoComposite
	}
	b := tpl.Composite.Bounds()
	if err := e.decoder.CheckSize(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}
	return tpl.Composite, nil
}

// exec runs job on the worker pool and waits for it or for ctx.
func (e *Engine) exec(ctx context.Context, job func() error) error {
	done := make(chan error, 1)
	submitted := e.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				done <- apperrors.NewInternalError(fmt.Sprintf("compositing job panicked: %v", r), nil)
			}
		}()
		done <- job()
	})
	if !submitted {
		return apperrors.NewInternalError("compositing pool is closed", nil)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// contextError maps a finished context to the error returned to callers.
func contextError(ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("placement deadline exceeded", err)
	default:
		return err
	}
}
