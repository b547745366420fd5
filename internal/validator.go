package internal

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var shortIDPattern = regexp.MustCompile(`^[0-9a-z]+$`)

func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// IsShortID reports whether id has the shape of an identifier issued by the shortid package.
func IsShortID(id string) bool {
	return shortIDPattern.MatchString(id)
}
