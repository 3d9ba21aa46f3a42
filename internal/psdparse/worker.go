package psdparse

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/anime-shed/mockup-compositor-go/pkg/models"
)

// WorkerCommand is the subcommand that runs a parse worker.
const WorkerCommand = "parse-layers"

// DecodeFunc parses layered document bytes.
type DecodeFunc func(data []byte, opts ParseOptions, recognizer TextRecognizer) (*models.Template, error)

// RecognizerFactory builds a text recognizer for the given language.
type RecognizerFactory func(lang string) (TextRecognizer, error)

// Worker is the body of the isolated parse process: it reads a document
// from stdin and writes the JSON layer tree and composite to stdout.
type Worker struct {
	Decode        DecodeFunc
	NewRecognizer RecognizerFactory
	MaxInput      int64
}

// NewWorker creates a worker backed by the PSD decoder
func NewWorker(newRecognizer RecognizerFactory) *Worker {
	return &Worker{Decode: Decode, NewRecognizer: newRecognizer, MaxInput: 1 << 31}
}

// Run parses args (without the subcommand name) and processes one document.
func (w *Worker) Run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet(WorkerCommand, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	compositeOnly := fs.Bool("composite-only", false, "skip the layer tree")
	ocr := fs.Bool("ocr", false, "recognise text in type layers without readable text")
	lang := fs.String("ocr-lang", "eng", "recognition language")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("invalid worker arguments: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(stdin, w.MaxInput+1))
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	if int64(len(data)) > w.MaxInput {
		return fmt.Errorf("document exceeds %d bytes", w.MaxInput)
	}

	var recognizer TextRecognizer
	if *ocr && !*compositeOnly && w.NewRecognizer != nil {
		if recognizer, err = w.NewRecognizer(*lang); err != nil {
			return fmt.Errorf("failed to start text recognition: %w", err)
		}
		if c, ok := recognizer.(io.Closer); ok {
			defer c.Close()
		}
	}

	tpl, err := w.Decode(data, ParseOptions{CompositeOnly: *compositeOnly}, recognizer)
	if err != nil {
		return err
	}
	doc, err := toDocument(tpl)
	if err != nil {
		return err
	}
	return json.NewEncoder(stdout).Encode(doc)
}

// Args returns the worker command line for opts.
func (o ParseOptions) Args(ocr bool, lang string) []string {
	args := []string{WorkerCommand}
	if o.CompositeOnly {
		args = append(args, "-composite-only")
	}
	if ocr && !o.CompositeOnly {
		args = append(args, "-ocr")
		if lang != "" {
			args = append(args, "-ocr-lang", lang)
		}
	}
	return args
}
