package validation

import (
	"net/url"
	"strings"

	apperrors "github.com/anime-shed/plant-classifier-go/internal/errors"
)

// URLValidator checks upstream endpoint addresses before the form is wired to them.
type URLValidator struct {
	allowedSchemes []string
}

// NewURLValidator creates a URL validator accepting http and https
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
	}
}

// NewURLValidatorWithSchemes creates a URL validator with custom schemes
func NewURLValidatorWithSchemes(schemes ...string) *URLValidator {
	return &URLValidator{allowedSchemes: schemes}
}

// ValidateEndpointURL validates that endpointURL is an absolute URL a
// multipart POST can be sent to.
func (v *URLValidator) ValidateEndpointURL(endpointURL string) error {
	if strings.TrimSpace(endpointURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(endpointURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if parsedURL.Fragment != "" {
		return apperrors.NewValidationError("URL must not contain a fragment", nil)
	}

	return nil
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}
