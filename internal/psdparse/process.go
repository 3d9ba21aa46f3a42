package psdparse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/mockup-compositor-go/internal/errors"
	"github.com/anime-shed/mockup-compositor-go/internal/logger"
	"github.com/anime-shed/mockup-compositor-go/pkg/models"
)

// ProcessOptions configures the subprocess parser.
type ProcessOptions struct {
	// Executable is the binary that serves the parse-layers subcommand;
	// empty means the current executable.
	Executable string
	// Env is appended to the inherited environment of the worker.
	Env []string

	Timeout     time.Duration
	MaxOutput   int64
	OCR         bool
	OCRLanguage string
}

// ProcessParser parses layered documents in a child process that is killed
// when it exceeds its time budget. A crash or hang in the decoder never
// reaches the calling process.
type ProcessParser struct {
	opts ProcessOptions
}

// NewProcessParser creates a subprocess parser
func NewProcessParser(opts ProcessOptions) (*ProcessParser, error) {
	if opts.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate worker executable: %w", err)
		}
		opts.Executable = exe
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 25 * time.Second
	}
	if opts.MaxOutput <= 0 {
		opts.MaxOutput = 512 << 20
	}
	return &ProcessParser{opts: opts}, nil
}

// Parse runs one worker over data. The worker's partial output is discarded
// on timeout.
func (p *ProcessParser) Parse(ctx context.Context, data []byte, opts ParseOptions) (*models.Template, error) {
	start := time.Now()
	parseCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(parseCtx, p.opts.Executable, opts.Args(p.opts.OCR, p.opts.OCRLanguage)...)
	cmd.Env = append(os.Environ(), p.opts.Env...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.WaitDelay = time.Second

	stdout := &cappedBuffer{limit: p.opts.MaxOutput, onOverflow: cancel}
	stderr := &cappedBuffer{limit: 64 << 10}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()
	elapsed := time.Since(start)

	fields := logrus.Fields{
		"composite_only": opts.CompositeOnly,
		"duration":       elapsed.String(),
		"input_bytes":    len(data),
	}

	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case stdout.Overflowed():
		logger.WithFields(fields).Warn("Layer parse worker output exceeded limit")
		return nil, apperrors.NewParsingCrashedError(
			fmt.Sprintf("worker output exceeded %d bytes", p.opts.MaxOutput), nil)
	case errors.Is(parseCtx.Err(), context.DeadlineExceeded):
		logger.WithFields(fields).Warn("Layer parse worker killed after timeout")
		return nil, apperrors.NewParsingTimeoutError(
			fmt.Sprintf("layer parsing exceeded %s", p.opts.Timeout), parseCtx.Err())
	case runErr != nil:
		msg := strings.TrimSpace(stderr.String())
		logger.WithFields(fields).WithError(runErr).WithField("stderr", msg).Warn("Layer parse worker failed")
		if msg == "" {
			msg = runErr.Error()
		}
		return nil, apperrors.NewParsingCrashedError(fmt.Sprintf("worker failed: %s", msg), runErr)
	}

	var doc document
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return nil, apperrors.NewParsingCrashedError("worker produced an unreadable payload", err)
	}
	tpl, err := doc.template()
	if err != nil {
		return nil, apperrors.NewParsingCrashedError("worker produced an invalid payload", err)
	}

	logger.WithFields(fields).WithField("layers", len(tpl.Layers)).Debug("Layer parse worker finished")
	return tpl, nil
}

// cappedBuffer collects process output up to limit bytes. Past the limit it
// drops data, records the overflow and calls onOverflow once.
type cappedBuffer struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	limit      int64
	overflowed bool
	onOverflow func()
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.overflowed {
		return len(p), nil
	}
	remaining := b.limit - int64(b.buf.Len())
	if int64(len(p)) > remaining {
		b.buf.Write(p[:max(remaining, 0)])
		b.overflowed = true
		if b.onOverflow != nil {
			b.onOverflow()
		}
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) Overflowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflowed
}

func (b *cappedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Bytes()
}

func (b *cappedBuffer) String() string {
	return string(b.Bytes())
}
