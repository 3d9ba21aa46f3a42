package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// psdMagic is the signature shared by PSD and PSB documents.
var psdMagic = []byte("8BPS")

var layeredExtensions = map[string]bool{
	".psd": true,
	".psb": true,
}

var (
	// ErrTooLarge is returned when an image exceeds the decoder pixel budget.
	ErrTooLarge = errors.New("image exceeds pixel limit")
	// ErrLayered is returned for layered documents, which are only parsed in
	// an isolated worker.
	ErrLayered = errors.New("layered documents are not decoded as rasters")
)

// IsLayered reports whether the template should be tried as a layered
// document, either by filename hint or by content signature.
func IsLayered(filename string, data []byte) bool {
	if layeredExtensions[strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))] {
		return true
	}
	return bytes.HasPrefix(data, psdMagic)
}

// Decoder decodes raster bytes with a pixel budget.
type Decoder struct {
	MaxPixels int64
}

// NewDecoder creates a decoder; maxPixels <= 0 disables the limit.
func NewDecoder(maxPixels int64) *Decoder {
	return &Decoder{MaxPixels: maxPixels}
}

// DecodeConfig returns dimensions and format without decoding pixels
func (d *Decoder) DecodeConfig(data []byte) (image.Config, string, error) {
	if len(data) == 0 {
		return image.Config{}, "", errors.New("empty image data")
	}
	if bytes.HasPrefix(data, psdMagic) {
		return image.Config{}, "", ErrLayered
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, "", fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if err := d.CheckSize(cfg.Width, cfg.Height); err != nil {
		return image.Config{}, "", err
	}
	return cfg, format, nil
}

// CheckSize applies the pixel budget to a w×h image.
func (d *Decoder) CheckSize(w, h int) error {
	if d.MaxPixels > 0 && int64(w)*int64(h) > d.MaxPixels {
		return fmt.Errorf("%w: %dx%d > %d", ErrTooLarge, w, h, d.MaxPixels)
	}
	return nil
}

// Decode checks the header against the pixel budget and decodes the image.
func (d *Decoder) Decode(data []byte) (image.Image, string, error) {
	if _, _, err := d.DecodeConfig(data); err != nil {
		return nil, "", err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if img == nil {
		return nil, "", fmt.Errorf("decoder returned no pixels for %s", format)
	}
	return img, format, nil
}
