package validation

import (
	"io/fs"
	"net/url"
	"slices"
	"strings"

	apperrors "github.com/anime-shed/mockup-compositor-go/internal/errors"
)

// Source schemes understood by the asset repository
const (
	SchemeHTTP      = "http"
	SchemeHTTPS     = "https"
	SchemeAzureBlob = "azblob"
	SchemeFile      = "file"
)

// URLValidator handles asset location validation
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator creates a validator accepting every supported source
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{SchemeHTTP, SchemeHTTPS, SchemeAzureBlob, SchemeFile},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewURLValidatorWithOptions creates a URL validator with custom options.
// Host restrictions apply to http and https locations only.
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateSourceURL validates a template or artwork location. A location
// without a scheme is a path in the local mockup library.
func (v *URLValidator) ValidateSourceURL(location string) error {
	location = strings.TrimSpace(location)
	if location == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(location)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme == "" {
		scheme = SchemeFile
	}
	if !v.isSchemeAllowed(scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	switch scheme {
	case SchemeHTTP, SchemeHTTPS:
		if parsedURL.Host == "" {
			return apperrors.NewValidationError("URL must have a valid host", nil)
		}
		if !v.isHostAllowed(parsedURL.Hostname()) {
			return apperrors.NewValidationError("URL host not allowed", nil)
		}
	case SchemeAzureBlob:
		if parsedURL.Host == "" || strings.Trim(parsedURL.Path, "/") == "" {
			return apperrors.NewValidationError("Blob URL must name a container and a blob", nil)
		}
	case SchemeFile:
		if !isLibraryPath(parsedURL) {
			return apperrors.NewValidationError("Path must stay inside the mockup library", nil)
		}
	}

	return nil
}

func isLibraryPath(u *url.URL) bool {
	if u.Host != "" && u.Host != "localhost" {
		return false
	}
	p := strings.TrimPrefix(u.Path, "/")
	if u.Scheme == "" && u.Opaque != "" {
		p = u.Opaque
	}
	return p != "" && fs.ValidPath(p)
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	return slices.Contains(v.allowedSchemes, scheme)
}

// isHostAllowed checks if the URL host is in the allowed list
// Returns true if no host restrictions are set (empty allowedHosts)
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	return slices.Contains(v.allowedHosts, host)
}
