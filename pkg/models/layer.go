package models

import "image"

// Bounds is an axis-aligned pixel rectangle in template coordinates.
type Bounds struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// BoundsFromRect converts an image.Rectangle to Bounds
func BoundsFromRect(r image.Rectangle) Bounds {
	return Bounds{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}
}

func (b Bounds) Width() int  { return b.Right - b.Left }
func (b Bounds) Height() int { return b.Bottom - b.Top }

// Area returns width*height, or 0 when the bounds are not well-formed.
func (b Bounds) Area() int {
	if !b.WellFormed() {
		return 0
	}
	return b.Width() * b.Height()
}

// WellFormed reports whether right >= left and bottom >= top.
func (b Bounds) WellFormed() bool {
	return b.Right >= b.Left && b.Bottom >= b.Top
}

// Empty reports whether the bounds enclose no pixels.
func (b Bounds) Empty() bool {
	return b.Area() == 0
}

// Union returns the smallest bounds containing both b and o. Empty operands are ignored.
func (b Bounds) Union(o Bounds) Bounds {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	return Bounds{
		Left:   min(b.Left, o.Left),
		Top:    min(b.Top, o.Top),
		Right:  max(b.Right, o.Right),
		Bottom: max(b.Bottom, o.Bottom),
	}
}

// Contains reports whether o lies entirely inside b.
func (b Bounds) Contains(o Bounds) bool {
	return o.Left >= b.Left && o.Top >= b.Top && o.Right <= b.Right && o.Bottom <= b.Bottom
}

// Rect converts the bounds to an image.Rectangle
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// LayerInfo holds the attributes shared by leaf and group layers.
type LayerInfo struct {
	Name    string `json:"name"`
	Bounds  Bounds `json:"bounds"`
	Visible bool   `json:"visible"`
	// Kind classifies the layer content, e.g. "pixel", "type", "smartobject", "group".
	Kind string `json:"kind"`
	// Text is the layer's text content; empty when the layer is not a text layer.
	Text string `json:"text,omitempty"`
	// TechnicalMarkers are low-level block keys found on the layer.
	TechnicalMarkers []string `json:"technical_markers,omitempty"`
}

// Layer is a node of a template's layer tree. It is implemented only by
// *Leaf and *Group, so a type switch over those two is exhaustive.
type Layer interface {
	Info() *LayerInfo
	layer()
}

// Leaf is a layer with its own raster (or text / embedded) content.
type Leaf struct {
	LayerInfo
}

// Group is a folder layer. It has no content of its own.
type Group struct {
	LayerInfo
	Children []Layer `json:"children"`
}

func (l *Leaf) Info() *LayerInfo  { return &l.LayerInfo }
func (g *Group) Info() *LayerInfo { return &g.LayerInfo }

func (*Leaf) layer()  {}
func (*Group) layer() {}

// Template is a parsed layered design: the layer tree plus the flattened
// document composite.
type Template struct {
	Width     int
	Height    int
	Layers    []Layer
	Composite image.Image
}

// Walk visits every layer depth-first in pre-order. Returning false from fn
// skips the subtree of that layer.
func Walk(layers []Layer, fn func(Layer) bool) {
	for _, l := range layers {
		if !fn(l) {
			continue
		}
		if g, ok := l.(*Group); ok {
			Walk(g.Children, fn)
		}
	}
}
