package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ag-ui/go-engine/pkg/core"
)

// Handler executes a tool call. args is the JSON-encoded argument object as
// streamed by the agent; the returned string becomes the tool message
// content.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Tool represents a function the agent may call and the caller executes.
type Tool struct {
	// Name is the name the agent uses in TOOL_CALL_START
	Name string `json:"name"`

	// Description explains what the tool does
	Description string `json:"description"`

	// Parameters is the JSON Schema of the argument object
	Parameters json.RawMessage `json:"parameters,omitempty"`

	// Timeout overrides the executor's default timeout when positive
	Timeout time.Duration `json:"-"`

	// Handler implements the tool's execution logic
	Handler Handler `json:"-"`
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q handler is required", t.Name)
	}
	if _, err := CompileSchema(t.Parameters); err != nil {
		return fmt.Errorf("tool %q has invalid parameters schema: %w", t.Name, err)
	}
	return nil
}

// Definition returns the tool as advertised in a RunRequest.
func (t *Tool) Definition() core.Tool {
	return core.Tool{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  append(json.RawMessage(nil), t.Parameters...),
	}
}

// NewTool builds a tool whose arguments decode into T. The parameter schema
// is generated from T's struct tags. A string result is used verbatim, any
// other result is JSON-encoded.
//
// Example:
//
//	type WeatherParams struct {
//		City string `json:"city" jsonschema:"description=City name"`
//	}
//
//	tool, err := NewTool("weather", "Get the weather",
//		func(ctx context.Context, p WeatherParams) (any, error) {
//			return lookup(ctx, p.City)
//		})
func NewTool[T any](name, description string, fn func(context.Context, T) (any, error)) (*Tool, error) {
	schema, err := GenerateSchema[T]()
	if err != nil {
		return nil, err
	}

	handler := func(ctx context.Context, args json.RawMessage) (string, error) {
		var params T
		if len(args) > 0 {
			if err := json.Unmarshal(args, &params); err != nil {
				return "", fmt.Errorf("%w: %v", ErrInvalidParameters, err)
			}
		}
		result, err := fn(ctx, params)
		if err != nil {
			return "", err
		}
		if s, ok := result.(string); ok {
			return s, nil
		}
		data, err := json.Marshal(result)
		if err != nil {
			return "", fmt.Errorf("failed to encode result: %w", err)
		}
		return string(data), nil
	}

	return &Tool{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Handler:     handler,
	}, nil
}
