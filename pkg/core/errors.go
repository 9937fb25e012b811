package core

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrAgentNotFound  = errors.New("agent not found")
	ErrStreamClosed   = errors.New("stream closed")
	ErrRunInProgress  = errors.New("a run is already in progress")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrSessionExpired = errors.New("session expired")
)

// ConfigError represents configuration-related errors
type ConfigError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field %s (value: %v): %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// AgentError represents a failure of a hosted agent while serving a run
type AgentError struct {
	AgentName string
	RunID     string
	Err       error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s failed run %s: %v", e.AgentName, e.RunID, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// TransportError represents connection, status and framing failures between
// the caller and an agent endpoint.
type TransportError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error in %s (status: %d): %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error in %s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// EncodingError represents a failure converting an event to or from a wire format
type EncodingError struct {
	Format    string
	EventType string
	Err       error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s encoding error for event type %s: %v", e.Format, e.EventType, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}
