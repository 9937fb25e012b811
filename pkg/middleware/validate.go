package middleware

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/tools"
)

// ErrorCodeInvalidToolArguments is the RUN_ERROR code emitted by
// ValidateToolArguments.
const ErrorCodeInvalidToolArguments = "INVALID_TOOL_ARGUMENTS"

// ValidateToolArguments checks every completed tool call against the
// parameter schema of the matching tool in the request. The first violation
// replaces the TOOL_CALL_END with a RUN_ERROR and ends the stream. Calls
// opened by TOOL_CALL_CHUNK without an explicit end are checked when
// RUN_FINISHED arrives. Calls to tools the request does not declare pass
// unchecked.
func ValidateToolArguments() Middleware {
	return Func(func(ctx context.Context, req *core.RunRequest, next core.EventProducer) (core.EventStream, error) {
		schemas := make(map[string]*tools.Schema, len(req.Tools))
		for _, tool := range req.Tools {
			schema, err := tools.CompileSchema(tool.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tool %q: %w", tool.Name, err)
			}
			schemas[tool.Name] = schema
		}

		upstream, err := next.Run(ctx, req)
		if err != nil {
			return nil, err
		}

		type call struct {
			id   string
			name string
			args strings.Builder
		}
		open := make(map[string]*call)
		var chunked []*call
		lastChunk := ""
		runID := req.RunID

		check := func(c *call) events.Event {
			schema, known := schemas[c.name]
			if !known {
				return nil
			}
			err := schema.ValidateArguments(c.args.String())
			if err == nil {
				return nil
			}
			opts := []events.RunErrorOption{events.WithErrorCode(ErrorCodeInvalidToolArguments)}
			if runID != "" {
				opts = append(opts, events.WithRunID(runID))
			}
			return events.NewRunErrorEvent(fmt.Sprintf("tool call %s (%s): %v", c.id, c.name, err), opts...)
		}

		return Transform(upstream, func(_ context.Context, event events.Event) ([]events.Event, error) {
			switch e := event.(type) {
			case *events.RunStartedEvent:
				runID = e.RunID
			case *events.ToolCallStartEvent:
				open[e.ToolCallID] = &call{id: e.ToolCallID, name: e.ToolCallName}
			case *events.ToolCallArgsEvent:
				if c, ok := open[e.ToolCallID]; ok {
					c.args.WriteString(e.Delta)
				}
			case *events.ToolCallChunkEvent:
				id := e.ID()
				if id == "" {
					id = lastChunk
				}
				c, ok := open[id]
				if !ok && id != "" {
					c = &call{id: id, name: e.Name()}
					open[id] = c
					chunked = append(chunked, c)
					lastChunk = id
				}
				if c != nil {
					c.args.WriteString(e.Args())
				}
			case *events.ToolCallEndEvent:
				c, ok := open[e.ToolCallID]
				if !ok {
					break
				}
				delete(open, e.ToolCallID)
				if runErr := check(c); runErr != nil {
					return []events.Event{runErr}, io.EOF
				}
			case *events.RunFinishedEvent:
				for _, c := range chunked {
					if _, ok := open[c.id]; !ok {
						continue
					}
					if runErr := check(c); runErr != nil {
						return []events.Event{runErr}, io.EOF
					}
				}
			}
			return []events.Event{event}, nil
		}, nil), nil
	})
}
