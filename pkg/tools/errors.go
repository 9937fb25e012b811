package tools

import (
	"errors"
	"fmt"
	"strings"
)

// Common error variables for tool operations.
var (
	// ErrToolNotFound indicates a requested tool doesn't exist
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidParameters indicates the provided arguments are invalid
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrExecutionTimeout indicates tool execution exceeded timeout
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrToolPanicked indicates the tool execution panicked
	ErrToolPanicked = errors.New("tool execution panicked")

	// ErrDuplicateTool indicates a tool name is already registered
	ErrDuplicateTool = errors.New("tool already registered")
)

// ErrorType categorizes tool errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeExecution  ErrorType = "execution"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeNotFound   ErrorType = "not_found"
)

// ToolError reports a failed tool call. Its message is what the agent sees
// in the tool message of the next run.
type ToolError struct {
	Type     ErrorType
	ToolName string
	CallID   string
	Cause    error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	var parts []string
	if e.ToolName != "" {
		parts = append(parts, fmt.Sprintf("tool %q", e.ToolName))
	}
	parts = append(parts, string(e.Type))
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying error.
func (e *ToolError) Unwrap() error {
	return e.Cause
}

func newToolError(errType ErrorType, name, callID string, cause error) *ToolError {
	return &ToolError{Type: errType, ToolName: name, CallID: callID, Cause: cause}
}
