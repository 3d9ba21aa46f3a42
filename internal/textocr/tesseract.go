//go:build tesseract

package textocr

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Recognizer runs tesseract over layer rasters.
type Recognizer struct {
	mu         sync.Mutex
	client     *gosseract.Client
	vocabulary *Vocabulary
}

// New creates a tesseract-backed recognizer for lang.
func New(lang string, keywords []string) (*Recognizer, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set recognition language %q: %w", lang, err)
	}
	return &Recognizer{client: client, vocabulary: NewVocabulary(keywords)}, nil
}

// Recognize returns the normalised text found in img.
func (r *Recognizer) Recognize(img image.Image) (string, error) {
	// Type layers are usually dark text on transparency; flatten onto white
	// and upscale small rasters so tesseract sees glyphs of a usable size.
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), image.White)
	flat := imaging.Overlay(bg, img, image.Point{}, 1.0)
	if flat.Bounds().Dy() < 64 {
		flat = imaging.Resize(flat, 0, 64, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Grayscale(flat), imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode layer raster: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to load layer raster: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("text recognition failed: %w", err)
	}
	return r.vocabulary.Normalize(text), nil
}

// Close releases the tesseract client
func (r *Recognizer) Close() error {
	return r.client.Close()
}
