package placement

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/mockup-compositor-go/internal/errors"
	"github.com/anime-shed/mockup-compositor-go/internal/logger"
	"github.com/anime-shed/mockup-compositor-go/internal/psdparse"
	"github.com/anime-shed/mockup-compositor-go/pkg/models"
)

// TemplateParser turns layered template bytes into a layer tree and composite.
type TemplateParser interface {
	Parse(ctx context.Context, data []byte, opts psdparse.ParseOptions) (*models.Template, error)
}

// dispatchState is a state of the primary/fallback placement machine.
type dispatchState int

const (
	stateTryLayerAware dispatchState = iota
	stateTryFallback
	stateDone
	stateFailed
)

func (s dispatchState) String() string {
	switch s {
	case stateTryLayerAware:
		return "TRY_LAYER_AWARE"
	case stateTryFallback:
		return "TRY_FALLBACK"
	case stateDone:
		return "DONE"
	case stateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// dispatchInput is everything one placement needs once inputs are decoded.
type dispatchInput struct {
	templateData []byte
	layered      bool
	artwork      models.Artwork

	// base is the pre-decoded raster of a non-layered template, or baseErr
	// when it could not be decoded.
	base    image.Image
	baseErr error
}

// dispatchOutcome carries the composition and the primary failure, if the
// fallback had to take over.
type dispatchOutcome struct {
	composition *Composition
	primaryErr  error
}

// execFunc runs a CPU-bound job, typically on the worker pool.
type execFunc func(ctx context.Context, job func() error) error

// Dispatcher tries the layer-aware compositor first and falls back to the
// geometric compositor on any failure.
type Dispatcher struct {
	parser   TemplateParser
	layer    *LayerCompositor
	fallback *FallbackCompositor
	exec     execFunc
}

// NewDispatcher creates a dispatcher. A nil exec runs jobs inline.
func NewDispatcher(parser TemplateParser, layer *LayerCompositor, fallback *FallbackCompositor, exec execFunc) *Dispatcher {
	if exec == nil {
		exec = func(_ context.Context, job func() error) error { return job() }
	}
	return &Dispatcher{parser: parser, layer: layer, fallback: fallback, exec: exec}
}

// Dispatch runs the state machine to completion. On failure the returned
// error aggregates both paths.
func (d *Dispatcher) Dispatch(ctx context.Context, in dispatchInput) (dispatchOutcome, error) {
	var (
		tpl         *models.Template
		comp        *Composition
		primaryErr  error
		fallbackErr error
	)

	state := stateTryLayerAware
	for {
		logger.WithField("state", state.String()).Debug("Placement dispatch state")

		switch state {
		case stateTryLayerAware:
			if !in.layered {
				state = stateTryFallback
				continue
			}
			tpl, comp, primaryErr = d.tryLayerAware(ctx, in)
			if primaryErr != nil {
				logger.WithError(primaryErr).Warn("Layer-aware placement failed, falling back")
				state = stateTryFallback
				continue
			}
			state = stateDone

		case stateTryFallback:
			comp, fallbackErr = d.tryFallback(ctx, in, tpl)
			if fallbackErr != nil {
				state = stateFailed
				continue
			}
			state = stateDone

		case stateDone:
			return dispatchOutcome{composition: comp, primaryErr: primaryErr}, nil

		case stateFailed:
			logger.WithFields(logrus.Fields{
				"primary_error":  errString(primaryErr),
				"fallback_error": errString(fallbackErr),
			}).Error("All placement paths failed")
			return dispatchOutcome{primaryErr: primaryErr}, apperrors.NewPlacementFailedError(primaryErr, fallbackErr)
		}
	}
}

func (d *Dispatcher) tryLayerAware(ctx context.Context, in dispatchInput) (*models.Template, *Composition, error) {
	if d.parser == nil {
		return nil, nil, apperrors.NewInternalError("no layer parser configured", nil)
	}
	tpl, err := d.parser.Parse(ctx, in.templateData, psdparse.ParseOptions{})
	if err != nil {
		return nil, nil, err
	}

	var comp *Composition
	err = d.exec(ctx, func() error {
		var cerr error
		comp, cerr = d.layer.Composite(tpl, in.artwork)
		return cerr
	})
	if err != nil {
		return tpl, nil, err
	}
	return tpl, comp, nil
}

func (d *Dispatcher) tryFallback(ctx context.Context, in dispatchInput, tpl *models.Template) (*Composition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, err := d.fallbackBase(ctx, in, tpl)
	if err != nil {
		return nil, err
	}

	var comp *Composition
	err = d.exec(ctx, func() error {
		var cerr error
		comp, cerr = d.fallback.Composite(base, in.artwork)
		return cerr
	})
	if err != nil {
		return nil, err
	}
	return comp, nil
}

// fallbackBase returns the raster the geometric fallback composites onto.
// Layered templates are never decoded in-process: the composite comes from
// an earlier parse or a composite-only isolated parse with its own budget.
// Output of a killed parse is never reused.
func (d *Dispatcher) fallbackBase(ctx context.Context, in dispatchInput, tpl *models.Template) (image.Image, error) {
	if tpl != nil && tpl.Composite != nil {
		return tpl.Composite, nil
	}
	if !in.layered {
		if in.baseErr != nil {
			return nil, apperrors.NewTemplateUnreadableError("template cannot be decoded", in.baseErr)
		}
		return in.base, nil
	}

	if d.parser == nil {
		return nil, apperrors.NewTemplateUnreadableError("no layer parser configured", nil)
	}
	composite, err := d.parser.Parse(ctx, in.templateData, psdparse.ParseOptions{CompositeOnly: true})
	if err != nil {
		return nil, apperrors.NewTemplateUnreadableError("layered template composite unavailable", err)
	}
	if composite == nil || composite.Composite == nil {
		return nil, apperrors.NewTemplateUnreadableError("layered template has no composite image", nil)
	}
	return composite.Composite, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
