package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Validation failure",
			code:      ErrValidationFailed,
			message:   "Case data failed checklist validation",
			details:   "2 violations",
			requestID: "req-123",
		},
		{
			name:      "Storage error",
			code:      ErrStorage,
			message:   "Audit store unavailable",
			details:   "sqlite: database is locked",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}
			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError(ConfigDependencyCycle, "b", "dependency cycle detected")
	err.Path = []string{"a", "b", "a"}

	msg := err.Error()
	for _, want := range []string{"dependency_cycle", "'b'", "a -> b -> a"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in error string %q", want, msg)
		}
	}

	var wrapped error = fmt.Errorf("loading checklist: %w", err)
	var target *ConfigurationError
	if !errors.As(wrapped, &target) {
		t.Fatal("Expected errors.As to find the configuration error")
	}
	if target.Code != ConfigDependencyCycle {
		t.Errorf("Expected code %s, got %s", ConfigDependencyCycle, target.Code)
	}
}

func TestValidationFailure(t *testing.T) {
	failure := &ValidationFailure{Violations: []Violation{
		{Element: "procedure", Reason: ReasonMissingRequired},
		{Element: "nuclear_grade", Reason: ReasonInvalidValue},
		{Element: "necrosis", Reason: ReasonMissingRequired},
	}}

	msg := failure.Error()
	if !strings.Contains(msg, "3 violations") {
		t.Errorf("Expected violation count in %q", msg)
	}
	if !strings.Contains(msg, "nuclear_grade: invalid_value") {
		t.Errorf("Expected element detail in %q", msg)
	}

	codes := failure.Codes()
	if len(codes) != 2 || codes[0] != ReasonMissingRequired || codes[1] != ReasonInvalidValue {
		t.Errorf("Unexpected codes %v", codes)
	}

	single := &ValidationFailure{Violations: []Violation{{Element: "x", Reason: ReasonInvalidValue}}}
	if !strings.Contains(single.Error(), "1 violation ") {
		t.Errorf("Expected singular noun in %q", single.Error())
	}
}
