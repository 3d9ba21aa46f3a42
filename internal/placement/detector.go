package placement

import (
	"fmt"
	"strings"

	"github.com/anime-shed/mockup-compositor-go/pkg/models"
)

// DetectionMethod names the check that selected a layer
type DetectionMethod string

const (
	DetectionNameMatch   DetectionMethod = "name_match"
	DetectionKindMatch   DetectionMethod = "smart_object_kind"
	DetectionTextMatch   DetectionMethod = "text_match"
	DetectionMarkerMatch DetectionMethod = "tagged_block"
	DetectionGeometric   DetectionMethod = "geometric_largest_area"
)

// Detection is a located placement layer. A Detection is only meaningful
// when the accompanying bool from Detect is true.
type Detection struct {
	Layer     models.Layer
	Method    DetectionMethod
	Rationale string
}

// Detector locates the single layer of a template meant to hold the artwork.
// It never mutates the tree and visits children strictly in slice order.
type Detector struct {
	opts DetectorOptions
}

// NewDetector creates a detector. Name targets and keywords are normalised
// to lower case once here.
func NewDetector(opts DetectorOptions) *Detector {
	opts.NameTargets = lowerAll(opts.NameTargets)
	opts.KindIndicators = lowerAll(opts.KindIndicators)
	opts.TextKeywords = lowerAll(opts.TextKeywords)
	opts.MarkerSubstring = strings.ToLower(opts.MarkerSubstring)
	return &Detector{opts: opts}
}

// Detect runs the prioritized per-layer checks over a pre-order traversal,
// stopping at the first match. When nothing matches it falls back to the
// largest geometric candidate.
func (d *Detector) Detect(layers []models.Layer) (Detection, bool) {
	if det, ok := d.search(layers); ok {
		return det, true
	}
	return d.largestCandidate(layers)
}

func (d *Detector) search(layers []models.Layer) (Detection, bool) {
	for _, l := range layers {
		switch node := l.(type) {
		case *models.Leaf:
			if !node.Visible {
				continue
			}
			if det, ok := d.match(node); ok {
				return det, true
			}
		case *models.Group:
			if !node.Visible {
				continue
			}
			if det, ok := d.match(node); ok {
				return det, true
			}
			if det, ok := d.search(node.Children); ok {
				return det, true
			}
		}
	}
	return Detection{}, false
}

// match applies name, kind, text and marker checks to one layer, in that order.
func (d *Detector) match(l models.Layer) (Detection, bool) {
	info := l.Info()

	name := strings.ToLower(strings.TrimSpace(info.Name))
	for _, target := range d.opts.NameTargets {
		if target != "" && strings.Contains(name, target) {
			return found(l, DetectionNameMatch, target), true
		}
	}

	kind := strings.ToLower(info.Kind)
	for _, indicator := range d.opts.KindIndicators {
		if indicator != "" && strings.Contains(kind, indicator) {
			return Detection{Layer: l, Method: DetectionKindMatch, Rationale: string(DetectionKindMatch)}, true
		}
	}

	if info.Text != "" {
		text := strings.ToLower(info.Text)
		for _, keyword := range d.opts.TextKeywords {
			if keyword != "" && strings.Contains(text, keyword) {
				return found(l, DetectionTextMatch, keyword), true
			}
		}
	}

	for _, marker := range info.TechnicalMarkers {
		if d.isEmbeddedMarker(marker) {
			return found(l, DetectionMarkerMatch, marker), true
		}
	}

	return Detection{}, false
}

func (d *Detector) isEmbeddedMarker(marker string) bool {
	for _, indicator := range d.opts.MarkerIndicators {
		if indicator != "" && strings.Contains(marker, indicator) {
			return true
		}
	}
	return d.opts.MarkerSubstring != "" && strings.Contains(strings.ToLower(marker), d.opts.MarkerSubstring)
}

// largestCandidate picks the visible layer with the largest area inside the
// configured area and aspect bounds. Ties keep the first in traversal order.
func (d *Detector) largestCandidate(layers []models.Layer) (Detection, bool) {
	var best models.Layer
	bestArea := 0

	models.Walk(layers, func(l models.Layer) bool {
		info := l.Info()
		if !info.Visible {
			return false
		}
		if d.isCandidate(info.Bounds) && info.Bounds.Area() > bestArea {
			best = l
			bestArea = info.Bounds.Area()
		}
		return true
	})

	if best == nil {
		return Detection{}, false
	}
	return Detection{
		Layer:     best,
		Method:    DetectionGeometric,
		Rationale: fmt.Sprintf("%s_%d", DetectionGeometric, bestArea),
	}, true
}

func (d *Detector) isCandidate(b models.Bounds) bool {
	if !b.WellFormed() || b.Height() <= 0 {
		return false
	}
	area := b.Area()
	if area <= d.opts.MinCandidateArea || area >= d.opts.MaxCandidateArea {
		return false
	}
	aspect := float64(b.Width()) / float64(b.Height())
	return aspect >= d.opts.MinCandidateAspect && aspect <= d.opts.MaxCandidateAspect
}

func found(l models.Layer, method DetectionMethod, matched string) Detection {
	return Detection{Layer: l, Method: method, Rationale: fmt.Sprintf("%s_%s", method, matched)}
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}
