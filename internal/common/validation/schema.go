package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateAgainstSchema validates a decoded JSON document against a JSON
// schema expressed as a Go map. Handlers run this before taking any lock.
func ValidateAgainstSchema(input map[string]interface{}, schema map[string]interface{}) *ValidationResult {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(input)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "_schema",
				Message: err.Error(),
				Code:    "SCHEMA_ERROR",
			}},
		}
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return &ValidationResult{Valid: false, Errors: errs}
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// FirstMessage returns the first error message, or "" when valid.
func (vr *ValidationResult) FirstMessage() string {
	if len(vr.Errors) == 0 {
		return ""
	}
	return fmt.Sprintf("%s: %s", vr.Errors[0].Field, vr.Errors[0].Message)
}

// ValidateClientID enforces the opaque client identifier format.
func ValidateClientID(clientID string) bool {
	pattern := regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	return pattern.MatchString(clientID)
}
