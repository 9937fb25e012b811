package client

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/messages"
	"github.com/ag-ui/go-engine/pkg/middleware"
)

// DefaultMaxToolRounds bounds RunWithTools when Config.MaxToolRounds is zero.
const DefaultMaxToolRounds = 8

// Config contains configuration options for an agent.
type Config struct {
	// AgentID names the agent in logs
	AgentID string `yaml:"agent_id"`

	// ThreadID fixes the conversation thread. When empty an eager agent
	// generates one and a deferred agent adopts the first one it sees.
	ThreadID string `yaml:"thread_id"`

	// Identity is "eager" (default) or "deferred"
	Identity string `yaml:"identity"`

	// MaxToolRounds bounds the number of follow-up runs RunWithTools starts
	MaxToolRounds int `yaml:"max_tool_rounds"`

	// InitialState seeds the state document sent with the first run
	InitialState any `yaml:"initial_state"`
}

// ParseIdentityMode parses "eager", "deferred" or "" (eager).
func ParseIdentityMode(s string) (core.IdentityMode, error) {
	switch s {
	case "", "eager":
		return core.IdentityEager, nil
	case "deferred":
		return core.IdentityDeferred, nil
	default:
		return 0, fmt.Errorf("unknown identity mode %q", s)
	}
}

func (c Config) validate() error {
	if _, err := ParseIdentityMode(c.Identity); err != nil {
		return &core.ConfigError{Field: "Identity", Value: c.Identity, Err: err}
	}
	if c.MaxToolRounds < 0 {
		return &core.ConfigError{
			Field: "MaxToolRounds",
			Value: c.MaxToolRounds,
			Err:   errors.New("max tool rounds cannot be negative"),
		}
	}
	return nil
}

// Option configures optional collaborators of an agent.
type Option func(*Agent)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithMiddleware appends stages to the agent's chain. The first stage
// given is the outermost.
func WithMiddleware(stages ...middleware.Middleware) Option {
	return func(a *Agent) {
		a.stages = append(a.stages, stages...)
	}
}

// WithIdentityMode overrides Config.Identity.
func WithIdentityMode(mode core.IdentityMode) Option {
	return func(a *Agent) {
		a.mode = mode
	}
}

// WithMessages seeds the conversation history.
func WithMessages(msgs ...messages.Message) Option {
	return func(a *Agent) {
		for _, msg := range msgs {
			a.messages = append(a.messages, msg.Clone())
		}
	}
}
