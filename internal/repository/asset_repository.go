package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/mockup-compositor-go/internal/errors"
	"github.com/anime-shed/mockup-compositor-go/internal/logger"
	"github.com/anime-shed/mockup-compositor-go/internal/storage"
	"github.com/anime-shed/mockup-compositor-go/pkg/validation"
)

// AssetRepository resolves template and artwork locations to bytes
type AssetRepository interface {
	// FetchAsset retrieves the asset at location
	FetchAsset(ctx context.Context, location string) ([]byte, error)

	// ValidateAssetURL checks that location is acceptable and has a source
	ValidateAssetURL(location string) error
}

// SchemeRepository dispatches fetches to a storage fetcher by URL scheme.
// A location without a scheme is looked up in the local mockup library.
type SchemeRepository struct {
	fetchers  map[string]storage.AssetFetcher
	validator *validation.URLValidator
}

// NewSchemeRepository creates a repository. Nil fetchers are skipped so a
// deployment without Azure credentials simply has no azblob source.
func NewSchemeRepository(validator *validation.URLValidator, fetchers map[string]storage.AssetFetcher) *SchemeRepository {
	active := make(map[string]storage.AssetFetcher, len(fetchers))
	for scheme, f := range fetchers {
		if f != nil {
			active[strings.ToLower(scheme)] = f
		}
	}
	return &SchemeRepository{fetchers: active, validator: validator}
}

// ValidateAssetURL validates the location and checks a fetcher serves it
func (r *SchemeRepository) ValidateAssetURL(location string) error {
	if err := r.validator.ValidateSourceURL(location); err != nil {
		return err
	}
	scheme := schemeOf(location)
	if _, ok := r.fetchers[scheme]; !ok {
		return apperrors.NewValidationError(
			fmt.Sprintf("no source configured for %q locations", scheme), ErrSourceUnavailable)
	}
	return nil
}

// FetchAsset validates location and retrieves it, mapping storage failures
// to application errors.
func (r *SchemeRepository) FetchAsset(ctx context.Context, location string) ([]byte, error) {
	if err := r.ValidateAssetURL(location); err != nil {
		return nil, err
	}
	scheme := schemeOf(location)

	data, err := r.fetchers[scheme].Fetch(ctx, location)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"scheme":   scheme,
			"location": location,
		}).WithError(err).Warn("Asset fetch failed")

		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, apperrors.NewTimeoutError("asset fetch did not complete", err)
		case errors.Is(err, storage.ErrNotFound):
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("asset not found: %s", location), err)
		case errors.Is(err, storage.ErrTooLarge):
			return nil, apperrors.NewValidationError("asset exceeds the upload size limit", err)
		default:
			return nil, apperrors.NewNetworkError("failed to fetch asset", err)
		}
	}
	return data, nil
}

// schemeOf returns the lowercased scheme, or "file" for plain paths.
func schemeOf(location string) string {
	u, err := url.Parse(strings.TrimSpace(location))
	if err != nil || u.Scheme == "" {
		return validation.SchemeFile
	}
	return strings.ToLower(u.Scheme)
}
