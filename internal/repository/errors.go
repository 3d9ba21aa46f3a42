package repository

import "errors"

// ErrSourceUnavailable indicates no fetcher is configured for the scheme
var ErrSourceUnavailable = errors.New("asset source unavailable")
