package testutil

import "github.com/ag-ui/go-engine/pkg/core/events"

// Run wraps body in RUN_STARTED and RUN_FINISHED.
func Run(threadID, runID string, body ...events.Event) []events.Event {
	out := make([]events.Event, 0, len(body)+2)
	out = append(out, events.NewRunStartedEvent(threadID, runID))
	out = append(out, body...)
	return append(out, events.NewRunFinishedEvent(threadID, runID))
}

// TextMessage returns the start, content and end events of an assistant
// message with one content event per delta.
func TextMessage(id string, deltas ...string) []events.Event {
	out := []events.Event{events.NewTextMessageStartEvent(id, events.WithRole("assistant"))}
	for _, delta := range deltas {
		out = append(out, events.NewTextMessageContentEvent(id, delta))
	}
	return append(out, events.NewTextMessageEndEvent(id))
}

// ToolCall returns the start, args and end events of a tool call.
func ToolCall(id, name, parentMessageID string, args ...string) []events.Event {
	var opts []events.ToolCallStartOption
	if parentMessageID != "" {
		opts = append(opts, events.WithParentMessageID(parentMessageID))
	}
	out := []events.Event{events.NewToolCallStartEvent(id, name, opts...)}
	for _, delta := range args {
		out = append(out, events.NewToolCallArgsEvent(id, delta))
	}
	return append(out, events.NewToolCallEndEvent(id))
}

// Concat joins event slices.
func Concat(parts ...[]events.Event) []events.Event {
	var out []events.Event
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}
