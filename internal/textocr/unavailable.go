//go:build !tesseract

package textocr

import "image"

// Recognizer is a stub in builds without tesseract.
type Recognizer struct{}

// New always fails without the tesseract build tag.
func New(string, []string) (*Recognizer, error) {
	return nil, ErrUnavailable
}

// Recognize always fails without the tesseract build tag.
func (*Recognizer) Recognize(image.Image) (string, error) {
	return "", ErrUnavailable
}

// Close is a no-op
func (*Recognizer) Close() error { return nil }
