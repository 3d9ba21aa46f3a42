package models

import (
	"image"
	"time"
)

// PlacementMethod identifies the compositor that produced a result.
type PlacementMethod string

const (
	MethodLayerAware        PlacementMethod = "layer-aware"
	MethodGeometricFallback PlacementMethod = "geometric-fallback"
)

// Artwork is the caller-supplied raster to place into a template.
type Artwork struct {
	Image image.Image
}

// Width returns the artwork width in pixels
func (a Artwork) Width() int { return a.Image.Bounds().Dx() }

// Height returns the artwork height in pixels
func (a Artwork) Height() int { return a.Image.Bounds().Dy() }

// HasAlpha reports whether the artwork may carry transparency.
func (a Artwork) HasAlpha() bool {
	if o, ok := a.Image.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}

// PlacementRegion is where the artwork must end up, in template pixel space.
type PlacementRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether the region has a positive area.
func (r PlacementRegion) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Origin returns the top-left corner of the region
func (r PlacementRegion) Origin() image.Point {
	return image.Pt(r.X, r.Y)
}

// PlacementResult is the flattened output of one placement request.
type PlacementResult struct {
	Image          []byte          `json:"-"`
	Method         PlacementMethod `json:"method"`
	Rationale      string          `json:"rationale,omitempty"`
	PrimaryError   string          `json:"primary_error,omitempty"`
	Width          int             `json:"width"`
	Height         int             `json:"height"`
	Region         PlacementRegion `json:"region"`
	DPI            int             `json:"dpi"`
	ProcessingTime time.Duration   `json:"processing_time"`
}
