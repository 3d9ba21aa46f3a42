package validation

import (
	"fmt"
	"path/filepath"
	"strings"

	apperrors "github.com/anime-shed/mockup-compositor-go/internal/errors"
)

// AssetLimits bounds what a client may submit as template or artwork
type AssetLimits struct {
	MaxBytes int64
	// Extensions lists accepted filename extensions, lowercased with dot.
	Extensions []string
}

// DefaultAssetLimits returns the limits used for uploads
func DefaultAssetLimits(maxBytes int64) AssetLimits {
	return AssetLimits{
		MaxBytes: maxBytes,
		Extensions: []string{
			".psd", ".psb", ".png", ".jpg", ".jpeg", ".webp", ".gif", ".bmp", ".tif", ".tiff",
		},
	}
}

// AssetValidator checks submitted asset bytes and names
type AssetValidator struct {
	limits AssetLimits
}

// NewAssetValidator creates a validator with the given limits
func NewAssetValidator(limits AssetLimits) *AssetValidator {
	return &AssetValidator{limits: limits}
}

// ValidateAsset checks that an asset is present and within the size limit
func (v *AssetValidator) ValidateAsset(role string, data []byte) error {
	if len(data) == 0 {
		return apperrors.NewValidationError(fmt.Sprintf("%s is empty", role), nil)
	}
	if v.limits.MaxBytes > 0 && int64(len(data)) > v.limits.MaxBytes {
		return apperrors.NewValidationError(
			fmt.Sprintf("%s exceeds %d bytes", role, v.limits.MaxBytes), nil)
	}
	return nil
}

// ValidateSize checks a declared size before the body is read
func (v *AssetValidator) ValidateSize(role string, size int64) error {
	if v.limits.MaxBytes > 0 && size > v.limits.MaxBytes {
		return apperrors.NewValidationError(
			fmt.Sprintf("%s exceeds %d bytes", role, v.limits.MaxBytes), nil)
	}
	return nil
}

// ValidateFilename accepts an empty name (format is sniffed from content)
// or one with a supported extension.
func (v *AssetValidator) ValidateFilename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(v.limits.Extensions) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range v.limits.Extensions {
		if ext == allowed {
			return nil
		}
	}
	return apperrors.NewValidationError(fmt.Sprintf("unsupported file type %q", ext), nil)
}
