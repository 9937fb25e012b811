// Package tools provides caller-side tools for the multi-round tool flow.
//
// An agent requests a tool with TOOL_CALL_START/ARGS/END and finishes its
// run. The caller executes the call, appends a tool message carrying the
// matching toolCallId and starts a new run. This package implements the
// caller's half:
//
//   - JSON Schema-based tool definition, generated from Go types
//   - a registry that advertises tools in a RunRequest
//   - an executor that validates arguments, applies timeouts and runs
//     calls concurrently
//
// # Tool Definition
//
//	type WeatherParams struct {
//		Location string `json:"location" jsonschema:"description=City name or coordinates"`
//	}
//
//	tool, err := tools.NewTool("weather", "Get current weather for a location",
//		func(ctx context.Context, p WeatherParams) (any, error) {
//			return lookupWeather(ctx, p.Location)
//		})
//
// # Tool Registration
//
//	registry := tools.NewRegistry()
//	err := registry.Register(tool)
//
// # Tool Execution
//
// The executor plugs into client.Agent.RunWithTools:
//
//	executor := tools.NewExecutor(registry, tools.WithDefaultTimeout(10*time.Second))
//	run, err := agent.RunWithTools(ctx, client.RunParams{Tools: registry.Definitions()}, executor)
package tools
