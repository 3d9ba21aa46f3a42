package psdparse

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/oov/psd"
	"golang.org/x/text/encoding/unicode"

	"github.com/anime-shed/mockup-compositor-go/pkg/models"
)

// Layer kinds reported on models.LayerInfo.Kind
const (
	KindGroup       = "group"
	KindSmartObject = "smartobject"
	KindType        = "type"
	KindShape       = "shape"
	KindPixel       = "pixel"
)

var (
	smartObjectKeys = []string{"SoLd", "SoLE", "PlLd", "plLd"}
	shapeKeys       = []string{"vmsk", "vsms", "vscg", "SoCo", "GdFl", "PtFl"}

	// textMarker precedes the UTF-16 text of a type layer descriptor.
	textMarker = []byte("Txt TEXT")
)

// ErrNoComposite is returned when a document carries no merged image.
var ErrNoComposite = errors.New("document has no merged composite image")

// ParseOptions selects how much of a layered document is decoded.
type ParseOptions struct {
	// CompositeOnly skips the layer tree; only size and composite are returned.
	CompositeOnly bool
}

// Decode parses PSD/PSB bytes into a template. Layer pixel data is skipped
// unless a recognizer needs it for type layers without readable text.
func Decode(data []byte, opts ParseOptions, recognizer TextRecognizer) (*models.Template, error) {
	doc, _, err := psd.Decode(bytes.NewReader(data), &psd.DecodeOptions{
		SkipLayerImage: opts.CompositeOnly || recognizer == nil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode layered document: %w", err)
	}
	return FromPSD(doc, opts, recognizer)
}

// FromPSD converts a decoded document into the layer model.
func FromPSD(doc *psd.PSD, opts ParseOptions, recognizer TextRecognizer) (*models.Template, error) {
	if doc.Picker == nil {
		return nil, ErrNoComposite
	}

	tpl := &models.Template{
		Width:     doc.Config.Rect.Dx(),
		Height:    doc.Config.Rect.Dy(),
		Composite: doc.Picker,
	}
	if !opts.CompositeOnly {
		tpl.Layers = convertLayers(doc.Layer, recognizer)
	}
	return tpl, nil
}

func convertLayers(src []psd.Layer, recognizer TextRecognizer) []models.Layer {
	out := make([]models.Layer, 0, len(src))
	for i := range src {
		out = append(out, convertLayer(&src[i], recognizer))
	}
	return out
}

func convertLayer(l *psd.Layer, recognizer TextRecognizer) models.Layer {
	info := models.LayerInfo{
		Name:             layerName(l),
		Bounds:           models.BoundsFromRect(l.Rect),
		Visible:          l.Visible(),
		Kind:             layerKind(l),
		TechnicalMarkers: markers(l),
	}

	if l.Folder() {
		g := &models.Group{LayerInfo: info, Children: convertLayers(l.Layer, recognizer)}
		g.Kind = KindGroup
		g.Bounds = groupBounds(g.Bounds, g.Children)
		return g
	}

	if info.Kind == KindType {
		info.Text = typeLayerText(l.AdditionalLayerInfo[psd.AdditionalInfoKey("TySh")])
		if info.Text == "" && recognizer != nil && l.Picker != nil {
			info.Text = recognizeText(recognizer, l.Picker)
		}
	}
	return &models.Leaf{LayerInfo: info}
}

// layerName prefers the Unicode name block over the legacy Pascal string.
func layerName(l *psd.Layer) string {
	if name := strings.TrimSpace(l.UnicodeName); name != "" {
		return name
	}
	return strings.TrimSpace(l.Name)
}

func layerKind(l *psd.Layer) string {
	if l.Folder() {
		return KindGroup
	}
	switch {
	case hasAnyKey(l, smartObjectKeys):
		return KindSmartObject
	case hasAnyKey(l, []string{"TySh", "tySh"}):
		return KindType
	case hasAnyKey(l, shapeKeys):
		return KindShape
	default:
		return KindPixel
	}
}

func hasAnyKey(l *psd.Layer, keys []string) bool {
	for _, k := range keys {
		if _, ok := l.AdditionalLayerInfo[psd.AdditionalInfoKey(k)]; ok {
			return true
		}
	}
	return false
}

// markers returns the additional-info block keys of a layer in sorted order.
func markers(l *psd.Layer) []string {
	if len(l.AdditionalLayerInfo) == 0 {
		return nil
	}
	keys := make([]string, 0, len(l.AdditionalLayerInfo))
	for k := range l.AdditionalLayerInfo {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}

// groupBounds replaces a folder's own rect with the union of its children
// when the rect is a placeholder (empty or at most one pixel wide or high)
// or lies inside that union.
func groupBounds(own models.Bounds, children []models.Layer) models.Bounds {
	union := childBounds(children)
	if union.Empty() {
		return own
	}
	if own.Empty() || own.Width() <= 1 || own.Height() <= 1 || union.Contains(own) {
		return union
	}
	return own
}

func childBounds(children []models.Layer) models.Bounds {
	var b models.Bounds
	for _, c := range children {
		b = b.Union(c.Info().Bounds)
	}
	return b
}

// typeLayerText extracts the text content from a TySh block. The descriptor
// stores it as a 4-byte UTF-16 unit count followed by big-endian UTF-16.
func typeLayerText(block []byte) string {
	idx := bytes.Index(block, textMarker)
	if idx < 0 {
		return ""
	}
	rest := block[idx+len(textMarker):]
	if len(rest) < 4 {
		return ""
	}
	units := int(binary.BigEndian.Uint32(rest))
	rest = rest[4:]
	if units <= 0 || units*2 > len(rest) {
		return ""
	}

	decoded, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(rest[:units*2])
	if err != nil {
		return ""
	}
	text := strings.TrimRight(string(decoded), "\x00")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

func recognizeText(recognizer TextRecognizer, img image.Image) string {
	text, err := recognizer.Recognize(img)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
