// Package events provides the event types and sequencing rules of the AG-UI
// protocol.
//
// An agent run is an ordered stream of typed events. The set of event types is
// closed; every type in this package implements Event and nothing else does.
//
// # Event Types
//
// Run Lifecycle Events:
//   - RUN_STARTED: first event of every run (threadId, runId)
//   - RUN_FINISHED: successful terminal event, optional result
//   - RUN_ERROR: failed terminal event (message, optional code)
//   - STEP_STARTED / STEP_FINISHED: named sub-steps
//
// Message Events:
//   - TEXT_MESSAGE_START / TEXT_MESSAGE_CONTENT / TEXT_MESSAGE_END
//   - TEXT_MESSAGE_CHUNK: self-describing fragment with implicit start
//
// Tool Events:
//   - TOOL_CALL_START / TOOL_CALL_ARGS / TOOL_CALL_END
//   - TOOL_CALL_CHUNK: self-describing fragment with implicit start
//   - TOOL_CALL_RESULT: caller-side result, never emitted inside a run
//
// Thinking Events:
//   - THINKING_START / THINKING_END: a reasoning step, optional title
//   - THINKING_TEXT_MESSAGE_START / _CONTENT / _END: text inside a step
//
// State Events:
//   - STATE_SNAPSHOT: complete state document
//   - STATE_DELTA: RFC 6902 JSON Patch applied atomically
//   - MESSAGES_SNAPSHOT: authoritative message history
//
// Extension Events:
//   - RAW, CUSTOM
//
// # Basic Usage
//
//	import "github.com/ag-ui/go-engine/pkg/core/events"
//
//	sequence := []events.Event{
//		events.NewRunStartedEvent("thread-1", "run-1"),
//		events.NewTextMessageStartEvent("msg-1", events.WithRole("assistant")),
//		events.NewTextMessageContentEvent("msg-1", "Hello"),
//		events.NewTextMessageEndEvent("msg-1"),
//		events.NewRunFinishedEvent("thread-1", "run-1"),
//	}
//	if err := events.ValidateSequence(sequence); err != nil {
//		var seqErr *events.SequenceError
//		if errors.As(err, &seqErr) {
//			log.Printf("event %d broke rule %s", seqErr.Index, seqErr.Rule)
//		}
//	}
//
// A Verifier performs the same checks incrementally while a run streams:
//
//	v := events.NewVerifier(events.WithInitialState(state))
//	for event := range incoming {
//		if err := v.Verify(event); err != nil {
//			return err
//		}
//	}
//	return v.Finish()
//
// # Serialization
//
// EventFromJSON selects the concrete type from the "type" field. Fields the
// schema does not define are preserved in BaseEvent.Extensions and written
// back by ToJSON, so relaying an event never drops data:
//
//	event, err := events.EventFromJSON(data)
//	if err != nil {
//		return err
//	}
//	out, err := event.ToJSON()
package events
