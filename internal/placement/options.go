package placement

import (
	"runtime"
	"time"
)

// DetectorOptions configures how the placement layer is located.
type DetectorOptions struct {
	// NameTargets are matched as substrings of the lowercased, trimmed layer
	// name, in order. The first hit wins.
	NameTargets []string
	// KindIndicators mark embedded or linked content in the layer kind.
	KindIndicators []string
	// TextKeywords are matched against lowercased text-layer content.
	TextKeywords []string
	// MarkerIndicators are matched case-sensitively against technical markers.
	MarkerIndicators []string
	// MarkerSubstring is matched case-insensitively against technical markers.
	MarkerSubstring string

	// Geometric candidate bounds. Area is exclusive, aspect inclusive.
	MinCandidateArea   int
	MaxCandidateArea   int
	MinCandidateAspect float64
	MaxCandidateAspect float64
}

// DefaultDetectorOptions returns the detector configuration used in production
func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{
		NameTargets: []string{
			"design", "artwork", "logo", "mockup", "replace", "smart object",
			"your design", "add design", "place design", "design here",
			"placeholder",
			"your artwork", "add artwork", "place artwork", "artwork here",
			"your logo", "add logo", "place logo", "logo here",
		},
		KindIndicators: []string{"smart", "embedded", "linked"},
		TextKeywords: []string{
			"design", "artwork", "logo", "replace", "add your", "insert",
			"place here", "your design here", "add design here",
		},
		MarkerIndicators:   []string{"SoLd", "SoLE", "PlLd", "plLd"},
		MarkerSubstring:    "smart",
		MinCandidateArea:   10000,
		MaxCandidateArea:   2000000,
		MinCandidateAspect: 0.5,
		MaxCandidateAspect: 2.0,
	}
}

// WithCandidateArea sets the exclusive area bounds for geometric candidates
func (o DetectorOptions) WithCandidateArea(minArea, maxArea int) DetectorOptions {
	o.MinCandidateArea = minArea
	o.MaxCandidateArea = maxArea
	return o
}

// WithCandidateAspect sets the inclusive width/height ratio bounds
func (o DetectorOptions) WithCandidateAspect(minAspect, maxAspect float64) DetectorOptions {
	o.MinCandidateAspect = minAspect
	o.MaxCandidateAspect = maxAspect
	return o
}

// WithNameTargets replaces the ordered name target list
func (o DetectorOptions) WithNameTargets(targets ...string) DetectorOptions {
	o.NameTargets = targets
	return o
}

// EngineOptions configures the placement engine
type EngineOptions struct {
	Detector DetectorOptions

	// FallbackScalePercent is the share of template width and height used by
	// the geometric fallback region.
	FallbackScalePercent int

	JPEGQuality int
	OutputDPI   int

	// MaxInFlight bounds concurrently processed requests; QueueTimeout is how
	// long a request may wait for a slot.
	MaxInFlight  int
	QueueTimeout time.Duration

	// Workers sizes the compositing pool; <= 0 means runtime.NumCPU().
	Workers int

	// MaxImagePixels guards raster decoding; <= 0 disables the check.
	MaxImagePixels int64
}

// DefaultEngineOptions returns default engine options
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		Detector:             DefaultDetectorOptions(),
		FallbackScalePercent: 70,
		JPEGQuality:          90,
		OutputDPI:            300,
		MaxInFlight:          4,
		QueueTimeout:         10 * time.Second,
		Workers:              runtime.NumCPU(),
		MaxImagePixels:       100000000,
	}
}
