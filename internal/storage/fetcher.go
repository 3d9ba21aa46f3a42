package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// AssetFetcher retrieves raw template or artwork bytes from a location.
type AssetFetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

var (
	// ErrNotFound is returned when the asset does not exist at its location
	ErrNotFound = errors.New("asset not found")
	// ErrTooLarge is returned when an asset exceeds the configured size limit
	ErrTooLarge = errors.New("asset exceeds size limit")
)

// readLimited reads r fully, failing with ErrTooLarge past limit bytes.
// limit <= 0 disables the check.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
