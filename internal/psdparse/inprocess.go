package psdparse

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/anime-shed/mockup-compositor-go/internal/errors"
	"github.com/anime-shed/mockup-compositor-go/pkg/models"
)

// InProcessParser decodes on a goroutine with panic recovery and a deadline.
// A timed-out decode is abandoned, not stopped, so it keeps its CPU and
// memory until it returns on its own.
type InProcessParser struct {
	decode     DecodeFunc
	recognizer TextRecognizer
	timeout    time.Duration
}

// NewInProcessParser creates an in-process parser. recognizer may be nil.
func NewInProcessParser(timeout time.Duration, recognizer TextRecognizer) *InProcessParser {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &InProcessParser{decode: Decode, recognizer: recognizer, timeout: timeout}
}

type parseResult struct {
	tpl *models.Template
	err error
}

// Parse decodes data or gives up after the configured timeout.
func (p *InProcessParser) Parse(ctx context.Context, data []byte, opts ParseOptions) (*models.Template, error) {
	done := make(chan parseResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- parseResult{err: apperrors.NewParsingCrashedError(fmt.Sprintf("decoder panicked: %v", r), nil)}
			}
		}()
		tpl, err := p.decode(data, opts, p.recognizer)
		if err != nil {
			err = apperrors.NewParsingCrashedError("failed to parse layered document", err)
		}
		done <- parseResult{tpl: tpl, err: err}
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.tpl, res.err
	case <-timer.C:
		return nil, apperrors.NewParsingTimeoutError(fmt.Sprintf("layer parsing exceeded %s", p.timeout), nil)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
