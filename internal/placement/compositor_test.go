package placement

import (
	"image"
	"image/color"
	"testing"

	apperrors "github.com/anime-shed/mockup-compositor-go/internal/errors"
	"github.com/anime-shed/mockup-compositor-go/pkg/models"
)

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.NRGBA{R: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func near(a, b color.NRGBA, tolerance int) bool {
	diff := func(x, y uint8) int {
		d := int(x) - int(y)
		if d < 0 {
			return -d
		}
		return d
	}
	return diff(a.R, b.R) <= tolerance && diff(a.G, b.G) <= tolerance &&
		diff(a.B, b.B) <= tolerance && diff(a.A, b.A) <= tolerance
}

func TestFallbackCompositor_Region(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		w, h    int
		want    models.PlacementRegion
	}{
		{"Square", 70, 1000, 1000, models.PlacementRegion{X: 150, Y: 150, Width: 700, Height: 700}},
		{"Landscape", 70, 1200, 800, models.PlacementRegion{X: 180, Y: 120, Width: 840, Height: 560}},
		{"Odd size floors", 70, 101, 33, models.PlacementRegion{X: 15, Y: 5, Width: 70, Height: 23}},
		{"Full size", 100, 640, 480, models.PlacementRegion{X: 0, Y: 0, Width: 640, Height: 480}},
		{"Invalid percent defaults", 0, 1000, 1000, models.PlacementRegion{X: 150, Y: 150, Width: 700, Height: 700}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewFallbackCompositor(tt.percent).Region(tt.w, tt.h)
			if got != tt.want {
				t.Errorf("Region(%d, %d) = %+v, want %+v", tt.w, tt.h, got, tt.want)
			}
		})
	}
}

func TestFallbackCompositor_Composite(t *testing.T) {
	comp, err := NewFallbackCompositor(70).Composite(solid(1000, 1000, blue), models.Artwork{Image: solid(200, 100, red)})
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}

	if comp.Method != models.MethodGeometricFallback {
		t.Errorf("Expected fallback method, got %s", comp.Method)
	}
	if comp.Rationale != "centered_70_percent" {
		t.Errorf("Unexpected rationale %q", comp.Rationale)
	}
	if comp.Canvas.Bounds().Dx() != 1000 || comp.Canvas.Bounds().Dy() != 1000 {
		t.Errorf("Canvas size changed to %v", comp.Canvas.Bounds())
	}

	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{500, 500, red},
		{151, 151, red},
		{848, 848, red},
		{100, 100, blue},
		{149, 500, blue},
		{850, 500, blue},
	}
	for _, tt := range tests {
		if got := comp.Canvas.NRGBAAt(tt.x, tt.y); !near(got, tt.want, 8) {
			t.Errorf("Pixel (%d,%d) = %+v, want %+v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestFallbackCompositor_TransparentArtwork(t *testing.T) {
	art := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	comp, err := NewFallbackCompositor(70).Composite(solid(400, 400, blue), models.Artwork{Image: art})
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	if got := comp.Canvas.NRGBAAt(200, 200); !near(got, blue, 2) {
		t.Errorf("Expected template to show through transparent artwork, got %+v", got)
	}
}

func TestFallbackCompositor_Errors(t *testing.T) {
	fb := NewFallbackCompositor(70)

	_, err := fb.Composite(nil, models.Artwork{Image: solid(10, 10, red)})
	if !apperrors.IsType(err, apperrors.ErrorTypeFallbackCompositeFailed) {
		t.Errorf("Expected fallback composite failure for nil base, got %v", err)
	}

	_, err = fb.Composite(solid(1, 1, white), models.Artwork{Image: solid(10, 10, red)})
	if !apperrors.IsType(err, apperrors.ErrorTypeFallbackCompositeFailed) {
		t.Errorf("Expected fallback composite failure for 1x1 template, got %v", err)
	}
}

func TestLayerCompositor_SmartObjectPlaceholder(t *testing.T) {
	tpl := &models.Template{
		Width:  800,
		Height: 800,
		Layers: []models.Layer{
			leaf("Background", box(0, 0, 800, 800)),
			group("Group 1", leaf("Smart Object Placeholder", box(100, 100, 500, 500))),
		},
		Composite: solid(800, 800, white),
	}
	art := models.Artwork{Image: solid(300, 600, red)}

	comp, err := NewLayerCompositor(NewDetector(DefaultDetectorOptions())).Composite(tpl, art)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}

	if comp.Method != models.MethodLayerAware {
		t.Errorf("Expected layer-aware method, got %s", comp.Method)
	}
	if comp.Rationale != "name_match_smart object" {
		t.Errorf("Unexpected rationale %q", comp.Rationale)
	}
	wantRegion := models.PlacementRegion{X: 100, Y: 100, Width: 400, Height: 400}
	if comp.Region != wantRegion {
		t.Errorf("Expected region %+v, got %+v", wantRegion, comp.Region)
	}
	wantPlan := FitPlan{ResizeWidth: 400, ResizeHeight: 800, CropY: 200, TargetWidth: 400, TargetHeight: 400}
	if comp.Plan != wantPlan {
		t.Errorf("Expected plan %+v, got %+v", wantPlan, comp.Plan)
	}

	if got := comp.Canvas.NRGBAAt(300, 300); !near(got, red, 8) {
		t.Errorf("Expected artwork inside region, got %+v", got)
	}
	if got := comp.Canvas.NRGBAAt(50, 50); got != white {
		t.Errorf("Expected template outside region, got %+v", got)
	}
	if got := comp.Canvas.NRGBAAt(600, 600); got != white {
		t.Errorf("Expected template outside region, got %+v", got)
	}
	if got := tpl.Composite.(*image.NRGBA).NRGBAAt(300, 300); got != white {
		t.Errorf("Template composite was mutated: %+v", got)
	}
}

func TestLayerCompositor_ClampsOrigin(t *testing.T) {
	tests := []struct {
		name       string
		bounds     models.Bounds
		wantRegion models.PlacementRegion
	}{
		{"Negative origin", box(-50, -20, 150, 180), models.PlacementRegion{X: 0, Y: 0, Width: 200, Height: 200}},
		{"Overflows right and bottom", box(350, 300, 550, 500), models.PlacementRegion{X: 200, Y: 200, Width: 200, Height: 200}},
		{"Larger than canvas", box(-10, 0, 590, 600), models.PlacementRegion{X: 0, Y: 0, Width: 600, Height: 600}},
	}
	compositor := NewLayerCompositor(NewDetector(DefaultDetectorOptions()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := &models.Template{
				Layers:    []models.Layer{leaf("Artwork", tt.bounds)},
				Composite: solid(400, 400, white),
			}
			comp, err := compositor.Composite(tpl, models.Artwork{Image: solid(50, 50, red)})
			if err != nil {
				t.Fatalf("Composite failed: %v", err)
			}
			if comp.Region != tt.wantRegion {
				t.Errorf("Expected region %+v, got %+v", tt.wantRegion, comp.Region)
			}
			if comp.Canvas.Bounds().Dx() != 400 || comp.Canvas.Bounds().Dy() != 400 {
				t.Errorf("Canvas size changed to %v", comp.Canvas.Bounds())
			}
		})
	}
}

func TestLayerCompositor_Errors(t *testing.T) {
	compositor := NewLayerCompositor(NewDetector(DefaultDetectorOptions()))
	art := models.Artwork{Image: solid(10, 10, red)}

	tests := []struct {
		name     string
		tpl      *models.Template
		wantType apperrors.ErrorType
	}{
		{
			name:     "Missing composite",
			tpl:      &models.Template{Layers: []models.Layer{leaf("Artwork", box(0, 0, 10, 10))}},
			wantType: apperrors.ErrorTypeTemplateUnreadable,
		},
		{
			name:     "No target",
			tpl:      &models.Template{Layers: []models.Layer{leaf("Layer 1", box(0, 0, 10, 10))}, Composite: solid(100, 100, white)},
			wantType: apperrors.ErrorTypeNoPlacementTarget,
		},
		{
			name:     "Zero area target",
			tpl:      &models.Template{Layers: []models.Layer{leaf("Artwork", box(10, 10, 10, 50))}, Composite: solid(100, 100, white)},
			wantType: apperrors.ErrorTypeInvalidRegionGeometry,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compositor.Composite(tt.tpl, art)
			if !apperrors.IsType(err, tt.wantType) {
				t.Errorf("Expected %s, got %v", tt.wantType, err)
			}
		})
	}
}
