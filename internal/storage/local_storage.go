package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalFetcher serves bundled mockup templates from a directory. Locations
// are file:///relative/path or bare relative names; paths escaping the
// directory are rejected.
type LocalFetcher struct {
	dir      string
	maxBytes int64
}

// NewLocalFetcher creates a fetcher rooted at dir
func NewLocalFetcher(dir string, maxBytes int64) *LocalFetcher {
	return &LocalFetcher{dir: dir, maxBytes: maxBytes}
}

// Fetch reads a file below the root directory
func (l *LocalFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := localName(location)
	if err != nil {
		return nil, err
	}

	root, err := os.OpenRoot(l.dir)
	if err != nil {
		return nil, fmt.Errorf("mockup directory unavailable: %w", err)
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, name)
	}
	if l.maxBytes > 0 && info.Size() > l.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, name, info.Size())
	}
	return readLimited(f, l.maxBytes)
}

// List returns the template file names directly inside the root directory
func (l *LocalFetcher) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list mockup directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func localName(location string) (string, error) {
	name := location
	if strings.HasPrefix(location, "file:") {
		u, err := url.Parse(location)
		if err != nil {
			return "", fmt.Errorf("invalid file URL: %w", err)
		}
		if u.Host != "" && u.Host != "localhost" {
			return "", fmt.Errorf("file URL must not name a remote host: %q", u.Host)
		}
		name = u.Path
	}
	name = strings.TrimPrefix(filepath.ToSlash(name), "/")
	if name == "" || !fs.ValidPath(name) {
		return "", fmt.Errorf("invalid local asset path %q", location)
	}
	return filepath.FromSlash(name), nil
}
