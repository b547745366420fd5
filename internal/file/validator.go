package file

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"slices"

	"NYCU-SDC/questionnaire-backend/internal"
)

// DefaultMaxSize is the largest questionnaire file accepted by default (5MB).
const DefaultMaxSize int64 = 5 << 20

// ValidatorOption is a function that configures validation rules
type ValidatorOption func(*validatorConfig)

// validatorConfig holds the validation configuration
type validatorConfig struct {
	maxSize      int64
	allowedTypes []string
	checkFormat  func([]byte) error
}

// Validator performs file validation based on configured rules
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateStream validates a file stream and returns the validated data
// It applies the provided validation options internally
func (v *Validator) ValidateStream(stream io.Reader, contentType string, opts ...ValidatorOption) ([]byte, error) {
	config := &validatorConfig{}
	for _, opt := range opts {
		opt(config)
	}

	// Read one byte past the limit so oversized streams are detected without reading them fully
	reader := stream
	if config.maxSize > 0 {
		reader = io.LimitReader(stream, config.maxSize+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file stream: %w", err)
	}

	if config.maxSize > 0 && int64(len(data)) > config.maxSize {
		return nil, internal.ErrFileTooLarge
	}

	if len(config.allowedTypes) > 0 {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			mediaType = contentType
		}

		if !slices.Contains(config.allowedTypes, mediaType) {
			return nil, internal.ErrInvalidFileType
		}
	}

	if config.checkFormat != nil {
		if err := config.checkFormat(data); err != nil {
			return nil, err
		}
	}

	return data, nil
}

// WithMaxSize sets the maximum allowed file size in bytes
func WithMaxSize(size int64) ValidatorOption {
	return func(c *validatorConfig) {
		c.maxSize = size
	}
}

// WithContentType sets allowed MIME types without format validation
func WithContentType(contentTypes ...string) ValidatorOption {
	return func(c *validatorConfig) {
		c.allowedTypes = contentTypes
	}
}

// WithCustomValidation allows custom validation logic
func WithCustomValidation(check func([]byte) error) ValidatorOption {
	return func(c *validatorConfig) {
		c.checkFormat = check
	}
}

// WithJSON accepts application/json uploads whose body is well-formed JSON
func WithJSON() ValidatorOption {
	return func(c *validatorConfig) {
		c.allowedTypes = []string{"application/json"}
		c.checkFormat = validateJSON
	}
}

func validateJSON(data []byte) error {
	if !json.Valid(data) {
		return internal.ErrInvalidFileType
	}
	return nil
}
