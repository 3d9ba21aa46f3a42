package psdparse

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/anime-shed/mockup-compositor-go/pkg/models"
)

// TextRecognizer reads text from a rasterised layer.
type TextRecognizer interface {
	Recognize(img image.Image) (string, error)
}

// document is the JSON payload a parse worker writes to stdout.
type document struct {
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Layers    []record `json:"layers,omitempty"`
	Composite []byte   `json:"composite"`
}

// record is one node of the layer tree on the wire.
type record struct {
	Name     string        `json:"name"`
	Bounds   models.Bounds `json:"bounds"`
	Visible  bool          `json:"visible"`
	Kind     string        `json:"kind"`
	Text     string        `json:"text,omitempty"`
	Markers  []string      `json:"markers,omitempty"`
	Group    bool          `json:"group,omitempty"`
	Children []record      `json:"children,omitempty"`
}

func toDocument(tpl *models.Template) (*document, error) {
	if tpl.Composite == nil {
		return nil, ErrNoComposite
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, tpl.Composite, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed)); err != nil {
		return nil, fmt.Errorf("failed to encode composite: %w", err)
	}
	return &document{
		Width:     tpl.Width,
		Height:    tpl.Height,
		Layers:    toRecords(tpl.Layers),
		Composite: buf.Bytes(),
	}, nil
}

func toRecords(layers []models.Layer) []record {
	if len(layers) == 0 {
		return nil
	}
	out := make([]record, 0, len(layers))
	for _, l := range layers {
		info := l.Info()
		r := record{
			Name:    info.Name,
			Bounds:  info.Bounds,
			Visible: info.Visible,
			Kind:    info.Kind,
			Text:    info.Text,
			Markers: info.TechnicalMarkers,
		}
		if g, ok := l.(*models.Group); ok {
			r.Group = true
			r.Children = toRecords(g.Children)
		}
		out = append(out, r)
	}
	return out
}

func (d *document) template() (*models.Template, error) {
	if len(d.Composite) == 0 {
		return nil, ErrNoComposite
	}
	composite, err := imaging.Decode(bytes.NewReader(d.Composite))
	if err != nil {
		return nil, fmt.Errorf("failed to decode composite: %w", err)
	}
	return &models.Template{
		Width:     d.Width,
		Height:    d.Height,
		Layers:    fromRecords(d.Layers),
		Composite: composite,
	}, nil
}

func fromRecords(records []record) []models.Layer {
	if len(records) == 0 {
		return nil
	}
	out := make([]models.Layer, 0, len(records))
	for _, r := range records {
		info := models.LayerInfo{
			Name:             r.Name,
			Bounds:           r.Bounds,
			Visible:          r.Visible,
			Kind:             r.Kind,
			Text:             r.Text,
			TechnicalMarkers: r.Markers,
		}
		if r.Group {
			out = append(out, &models.Group{LayerInfo: info, Children: fromRecords(r.Children)})
			continue
		}
		out = append(out, &models.Leaf{LayerInfo: info})
	}
	return out
}
