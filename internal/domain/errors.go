package domain

import (
	"fmt"
	"strings"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput     = "INVALID_INPUT"
	ErrValidationFailed = "VALIDATION_FAILED"
	ErrNotFound         = "NOT_FOUND"
	ErrStorage          = "STORAGE_ERROR"
	ErrRateLimit        = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer   = "INTERNAL_SERVER_ERROR"
	ErrUnavailable      = "SERVICE_UNAVAILABLE"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ConfigErrorCode classifies a checklist construction failure
type ConfigErrorCode string

const (
	ConfigDependencyCycle   ConfigErrorCode = "dependency_cycle"
	ConfigMissingTemplate   ConfigErrorCode = "missing_template"
	ConfigUnknownReference  ConfigErrorCode = "unknown_reference"
	ConfigInvalidDefinition ConfigErrorCode = "invalid_definition"
)

// ConfigurationError is returned when a checklist definition cannot be built into a schema.
// It is fatal at startup and never produced per request.
type ConfigurationError struct {
	Code    ConfigErrorCode `json:"code"`
	Element string          `json:"element,omitempty"`
	Path    []string        `json:"path,omitempty"`
	Message string          `json:"message"`
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("checklist configuration error (")
	b.WriteString(string(e.Code))
	b.WriteString(")")
	if e.Element != "" {
		b.WriteString(" for element '")
		b.WriteString(e.Element)
		b.WriteString("'")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Path) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Path, " -> "))
		b.WriteString("]")
	}
	return b.String()
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(code ConfigErrorCode, element, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Code:    code,
		Element: element,
		Message: fmt.Sprintf(format, args...),
	}
}

// ValidationFailure carries every violation found in a case
type ValidationFailure struct {
	Violations []Violation `json:"violations"`
}

// Error implements the error interface
func (e *ValidationFailure) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Element, v.Reason)
	}
	noun := "violations"
	if len(e.Violations) == 1 {
		noun = "violation"
	}
	return fmt.Sprintf("case validation failed with %d %s (%s)", len(e.Violations), noun, strings.Join(parts, "; "))
}

// Codes returns the distinct reason codes of the failure, in first-seen order
func (e *ValidationFailure) Codes() []ReasonCode {
	seen := make(map[ReasonCode]bool)
	var codes []ReasonCode
	for _, v := range e.Violations {
		if !seen[v.Reason] {
			seen[v.Reason] = true
			codes = append(codes, v.Reason)
		}
	}
	return codes
}
