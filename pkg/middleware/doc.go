// Package middleware provides the stage chain events flow through between an
// event producer and the run orchestrator.
//
// A stage receives the request and the next stage, so it can rewrite the
// request on the way in and the event stream on the way out. Stages can be
// stateless (Map, FilterToolCalls) or keep per-run or cross-run state (Tally,
// Logging, Telemetry, ValidateToolArguments).
//
// Example usage:
//
//	import "github.com/ag-ui/go-engine/pkg/middleware"
//
//	tally := middleware.NewTally()
//	producer := middleware.Chain(agent,
//		middleware.Logging(logger),
//		middleware.FilterToolCalls(middleware.ToolFilter{Deny: []string{"shell"}}),
//		tally,
//	)
//
// The first stage is the outermost one: it sees the request first and each
// event last.
package middleware
