package validation

import (
	"testing"

	apperrors "github.com/anime-shed/plant-classifier-go/internal/errors"
)

func TestNewURLValidator(t *testing.T) {
	validator := NewURLValidator()
	if validator == nil {
		t.Fatal("Expected non-nil URL validator")
	}

	expectedSchemes := []string{"http", "https"}
	if len(validator.allowedSchemes) != len(expectedSchemes) {
		t.Errorf("Expected %d schemes, got %d", len(expectedSchemes), len(validator.allowedSchemes))
	}

	for i, scheme := range expectedSchemes {
		if validator.allowedSchemes[i] != scheme {
			t.Errorf("Expected scheme %s, got %s", scheme, validator.allowedSchemes[i])
		}
	}
}

func TestValidateEndpointURL_ValidURLs(t *testing.T) {
	validator := NewURLValidator()

	validURLs := []string{
		"http://0.0.0.0:8080/predict",
		"http://127.0.0.1:4000/feedback",
		"https://classifier.example.com/predict",
		"HTTPS://feedback.example.com/v1/feedback?source=web",
	}

	for _, url := range validURLs {
		if err := validator.ValidateEndpointURL(url); err != nil {
			t.Errorf("Expected valid URL %s to pass validation, got error: %v", url, err)
		}
	}
}

func TestValidateEndpointURL_Invalid(t *testing.T) {
	validator := NewURLValidator()

	tests := []struct {
		url     string
		message string
	}{
		{"", "URL cannot be empty"},
		{"   ", "URL cannot be empty"},
		{"://missing-scheme", "Invalid URL format"},
		{"not-a-url", "URL scheme not allowed"},
		{"ftp://example.com/predict", "URL scheme not allowed"},
		{"http://", "URL must have a valid host"},
		{"http:///predict", "URL must have a valid host"},
		{"http://example.com/predict#frag", "URL must not contain a fragment"},
	}

	for _, tt := range tests {
		err := validator.ValidateEndpointURL(tt.url)
		if err == nil {
			t.Errorf("Expected URL %q to fail validation", tt.url)
			continue
		}

		appErr, ok := err.(*apperrors.AppError)
		if !ok {
			t.Errorf("Expected AppError, got: %T", err)
			continue
		}
		if appErr.Message != tt.message {
			t.Errorf("URL %q: expected %q, got %q", tt.url, tt.message, appErr.Message)
		}
		if appErr.Type != apperrors.ErrorTypeValidation {
			t.Errorf("URL %q: expected validation error, got %s", tt.url, appErr.Type)
		}
	}
}

func TestIsSchemeAllowed(t *testing.T) {
	validator := NewURLValidatorWithSchemes("https")

	if !validator.isSchemeAllowed("https") {
		t.Error("Expected https scheme to be allowed")
	}
	if validator.isSchemeAllowed("http") {
		t.Error("Expected http scheme to be disallowed")
	}
}
