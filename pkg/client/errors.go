package client

import (
	"errors"
	"fmt"
)

// ErrMaxToolRounds is returned by RunWithTools when the agent keeps asking
// for tools after the configured number of rounds.
var ErrMaxToolRounds = errors.New("maximum tool rounds reached")

// RunError is the failure reported by a RUN_ERROR event.
type RunError struct {
	Message string
	Code    string
	RunID   string
}

func (e *RunError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("run error [%s]: %s", e.Code, e.Message)
	}
	return "run error: " + e.Message
}
