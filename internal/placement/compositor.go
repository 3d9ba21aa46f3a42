package placement

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	apperrors "github.com/anime-shed/mockup-compositor-go/internal/errors"
	"github.com/anime-shed/mockup-compositor-go/pkg/models"
)

// Composition is the in-memory result of one compositor before output
// normalization.
type Composition struct {
	Canvas    *image.NRGBA
	Method    models.PlacementMethod
	Rationale string
	Region    models.PlacementRegion
	Plan      FitPlan
}

// LayerCompositor places artwork into the region of a detected layer.
type LayerCompositor struct {
	detector *Detector
}

// NewLayerCompositor creates a layer-aware compositor
func NewLayerCompositor(detector *Detector) *LayerCompositor {
	return &LayerCompositor{detector: detector}
}

// Composite detects the target layer of tpl and pastes the fitted artwork
// over the template composite at the layer's clamped origin.
func (c *LayerCompositor) Composite(tpl *models.Template, art models.Artwork) (*Composition, error) {
	if tpl == nil || tpl.Composite == nil {
		return nil, apperrors.NewTemplateUnreadableError("layered template has no composite image", nil)
	}

	det, ok := c.detector.Detect(tpl.Layers)
	if !ok {
		return nil, apperrors.NewNoPlacementTargetError("no layer matched by name, kind, text, marker or geometry")
	}

	bounds := det.Layer.Info().Bounds
	if !bounds.WellFormed() || bounds.Area() <= 0 {
		return nil, apperrors.NewInvalidRegionGeometryError(
			fmt.Sprintf("layer %q has non-positive area %dx%d", det.Layer.Info().Name, bounds.Width(), bounds.Height()))
	}

	canvas := imaging.Clone(tpl.Composite)
	cw, ch := canvas.Bounds().Dx(), canvas.Bounds().Dy()

	region := models.PlacementRegion{
		X:      clamp(bounds.Left, 0, cw-bounds.Width()),
		Y:      clamp(bounds.Top, 0, ch-bounds.Height()),
		Width:  bounds.Width(),
		Height: bounds.Height(),
	}

	out, plan, err := placeArtwork(canvas, art, region)
	if err != nil {
		return nil, err
	}
	return &Composition{
		Canvas:    out,
		Method:    models.MethodLayerAware,
		Rationale: det.Rationale,
		Region:    region,
		Plan:      plan,
	}, nil
}

// FallbackCompositor centers the artwork in a fixed proportional region of
// the whole template.
type FallbackCompositor struct {
	scalePercent int
}

// NewFallbackCompositor creates a geometric fallback compositor
func NewFallbackCompositor(scalePercent int) *FallbackCompositor {
	if scalePercent <= 0 || scalePercent > 100 {
		scalePercent = 70
	}
	return &FallbackCompositor{scalePercent: scalePercent}
}

// Region returns the centered placement region for a w×h template.
func (c *FallbackCompositor) Region(w, h int) models.PlacementRegion {
	rw := w * c.scalePercent / 100
	rh := h * c.scalePercent / 100
	return models.PlacementRegion{
		X:      (w - rw) / 2,
		Y:      (h - rh) / 2,
		Width:  rw,
		Height: rh,
	}
}

// Composite pastes the fitted artwork into the centered region of base.
func (c *FallbackCompositor) Composite(base image.Image, art models.Artwork) (*Composition, error) {
	if base == nil {
		return nil, apperrors.NewFallbackCompositeFailedError("no template raster", nil)
	}

	canvas := imaging.Clone(base)
	region := c.Region(canvas.Bounds().Dx(), canvas.Bounds().Dy())
	if !region.Valid() {
		return nil, apperrors.NewFallbackCompositeFailedError(
			fmt.Sprintf("template %dx%d too small for a placement region", canvas.Bounds().Dx(), canvas.Bounds().Dy()), nil)
	}

	out, plan, err := placeArtwork(canvas, art, region)
	if err != nil {
		return nil, apperrors.NewFallbackCompositeFailedError("failed to place artwork", err)
	}
	return &Composition{
		Canvas:    out,
		Method:    models.MethodGeometricFallback,
		Rationale: fmt.Sprintf("centered_%d_percent", c.scalePercent),
		Region:    region,
		Plan:      plan,
	}, nil
}

// placeArtwork fits the artwork to the region and pastes it onto canvas.
// Artwork with an alpha channel is alpha-composited; opaque artwork
// overwrites the destination pixels.
func placeArtwork(canvas *image.NRGBA, art models.Artwork, region models.PlacementRegion) (*image.NRGBA, FitPlan, error) {
	if art.Image == nil {
		return nil, FitPlan{}, apperrors.NewArtworkUnreadableError("artwork has no pixels", nil)
	}
	if !region.Valid() {
		return nil, FitPlan{}, apperrors.NewInvalidRegionGeometryError(
			fmt.Sprintf("region %dx%d has non-positive area", region.Width, region.Height))
	}

	fitted, plan, err := FitAndCrop(art.Image, region.Width, region.Height)
	if err != nil {
		return nil, FitPlan{}, err
	}

	if art.HasAlpha() {
		return imaging.Overlay(canvas, fitted, region.Origin(), 1.0), plan, nil
	}
	return imaging.Paste(canvas, fitted, region.Origin()), plan, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
