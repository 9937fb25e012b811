package messages

import (
	"fmt"
	"strings"
)

// ValidationError represents validation failures
type ValidationError struct {
	Message    string
	Violations []ValidationViolation
}

// ValidationViolation represents a single validation violation
type ValidationViolation struct {
	Field   string
	Message string
	Value   any
}

// NewValidationError creates a new validation error
func NewValidationError(message string, violations ...ValidationViolation) *ValidationError {
	return &ValidationError{
		Message:    message,
		Violations: violations,
	}
}

// Error implements the error interface with detailed violations
func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation error: " + e.Message
	}
	var b strings.Builder
	fmt.Fprintf(&b, "validation error: %s", e.Message)
	for _, v := range e.Violations {
		fmt.Fprintf(&b, "\n  - %s: %s", v.Field, v.Message)
	}
	return b.String()
}
