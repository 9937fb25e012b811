package events

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Sequence rule identifiers reported in SequenceError.Rule.
const (
	RuleInvalidEvent      = "invalid-event"
	RuleFirstEvent        = "first-event"
	RuleDuplicateRun      = "duplicate-run-started"
	RuleAfterTerminal     = "after-terminal"
	RuleMissingTerminal   = "missing-terminal"
	RuleRunIdentity       = "run-identity"
	RuleOpenAtFinish      = "open-at-finish"
	RuleMessageLifecycle  = "message-lifecycle"
	RuleToolCallLifecycle = "tool-call-lifecycle"
	RuleStepLifecycle     = "step-lifecycle"
	RuleThinkingLifecycle = "thinking-lifecycle"
	RuleToolResult        = "tool-result-in-stream"
	RuleStateDelta        = "state-delta"
)

// SequenceError reports the first event that violates the run lifecycle.
type SequenceError struct {
	Index     int
	EventType EventType
	Rule      string
	Message   string
	Err       error
}

func (e *SequenceError) Error() string {
	if e.EventType == "" {
		return fmt.Sprintf("invalid event sequence at index %d [%s]: %s", e.Index, e.Rule, e.Message)
	}
	return fmt.Sprintf("invalid event sequence at index %d (%s) [%s]: %s", e.Index, e.EventType, e.Rule, e.Message)
}

func (e *SequenceError) Unwrap() error {
	return e.Err
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithInitialState enables STATE_DELTA checking from the given document.
// Without it, deltas are checked only after the first STATE_SNAPSHOT.
func WithInitialState(doc any) VerifierOption {
	return func(v *Verifier) {
		data, err := json.Marshal(doc)
		if err != nil {
			return
		}
		v.state = data
		v.trackState = true
	}
}

// WithoutStateTracking disables STATE_DELTA application checks.
func WithoutStateTracking() VerifierOption {
	return func(v *Verifier) {
		v.noState = true
	}
}

// Verifier checks a run's events one at a time as they arrive. It is not
// safe for concurrent use; a run feeds it from a single goroutine.
type Verifier struct {
	index      int
	started    bool
	terminated bool
	threadID   string
	runID      string

	messages      map[string]bool // open, true when opened by a chunk
	endedMessages map[string]bool
	lastChunkID   string
	toolCalls     map[string]bool // open, true when opened by a chunk
	endedCalls    map[string]bool
	lastCallChunk string
	steps         map[string]bool
	thinking      bool
	thinkingText  bool

	state      []byte
	trackState bool
	noState    bool
}

// NewVerifier creates a verifier for one run.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		messages:      make(map[string]bool),
		endedMessages: make(map[string]bool),
		toolCalls:     make(map[string]bool),
		endedCalls:    make(map[string]bool),
		steps:         make(map[string]bool),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Started reports whether RUN_STARTED has been seen.
func (v *Verifier) Started() bool { return v.started }

// Terminated reports whether a terminal event has been seen.
func (v *Verifier) Terminated() bool { return v.terminated }

// Identity returns the thread and run ids from RUN_STARTED.
func (v *Verifier) Identity() (threadID, runID string) { return v.threadID, v.runID }

func (v *Verifier) fail(event Event, rule, format string, args ...any) error {
	err := &SequenceError{Index: v.index, Rule: rule, Message: fmt.Sprintf(format, args...)}
	if event != nil {
		err.EventType = event.Type()
	}
	return err
}

// Verify checks the next event. After the first error the verifier should be
// discarded.
func (v *Verifier) Verify(event Event) error {
	defer func() { v.index++ }()

	if event == nil || event.GetBaseEvent() == nil {
		return v.fail(nil, RuleInvalidEvent, "event is nil")
	}
	if err := event.Validate(); err != nil {
		seqErr := v.fail(event, RuleInvalidEvent, "%v", err).(*SequenceError)
		seqErr.Err = err
		return seqErr
	}
	if v.terminated {
		return v.fail(event, RuleAfterTerminal, "no events may follow a terminal event")
	}
	if !v.started {
		e, ok := event.(*RunStartedEvent)
		if !ok {
			return v.fail(event, RuleFirstEvent, "first event must be %s", EventTypeRunStarted)
		}
		v.started = true
		v.threadID, v.runID = e.ThreadID, e.RunID
		return nil
	}

	switch e := event.(type) {
	case *RunStartedEvent:
		return v.fail(event, RuleDuplicateRun, "run %s already started", v.runID)

	case *RunFinishedEvent:
		if e.ThreadID != v.threadID || e.RunID != v.runID {
			return v.fail(event, RuleRunIdentity, "finished thread %s run %s does not match started thread %s run %s",
				e.ThreadID, e.RunID, v.threadID, v.runID)
		}
		if open := v.openDescription(); open != "" {
			return v.fail(event, RuleOpenAtFinish, "run finished with open %s", open)
		}
		v.terminated = true

	case *RunErrorEvent:
		if e.RunID != "" && e.RunID != v.runID {
			return v.fail(event, RuleRunIdentity, "error for run %s does not match started run %s", e.RunID, v.runID)
		}
		v.terminated = true

	case *StepStartedEvent:
		if v.steps[e.StepName] {
			return v.fail(event, RuleStepLifecycle, "step %s already started", e.StepName)
		}
		v.steps[e.StepName] = true

	case *StepFinishedEvent:
		if !v.steps[e.StepName] {
			return v.fail(event, RuleStepLifecycle, "cannot finish step %s that was not started", e.StepName)
		}
		delete(v.steps, e.StepName)

	case *TextMessageStartEvent:
		if _, open := v.messages[e.MessageID]; open || v.endedMessages[e.MessageID] {
			return v.fail(event, RuleMessageLifecycle, "message %s already started", e.MessageID)
		}
		v.messages[e.MessageID] = false

	case *TextMessageContentEvent:
		if _, open := v.messages[e.MessageID]; !open {
			return v.fail(event, RuleMessageLifecycle, "cannot add content to message %s that is not open", e.MessageID)
		}

	case *TextMessageEndEvent:
		if _, open := v.messages[e.MessageID]; !open {
			return v.fail(event, RuleMessageLifecycle, "cannot end message %s that is not open", e.MessageID)
		}
		delete(v.messages, e.MessageID)
		v.endedMessages[e.MessageID] = true
		if v.lastChunkID == e.MessageID {
			v.lastChunkID = ""
		}

	case *TextMessageChunkEvent:
		id := e.ID()
		if id == "" {
			if v.lastChunkID == "" {
				return v.fail(event, RuleMessageLifecycle, "chunk without messageId and no open chunked message")
			}
			return nil
		}
		if _, open := v.messages[id]; open {
			return nil
		}
		if v.endedMessages[id] {
			return v.fail(event, RuleMessageLifecycle, "chunk for message %s that already ended", id)
		}
		v.messages[id] = true
		v.lastChunkID = id

	case *ToolCallStartEvent:
		if _, open := v.toolCalls[e.ToolCallID]; open || v.endedCalls[e.ToolCallID] {
			return v.fail(event, RuleToolCallLifecycle, "tool call %s already started", e.ToolCallID)
		}
		v.toolCalls[e.ToolCallID] = false

	case *ToolCallArgsEvent:
		if _, open := v.toolCalls[e.ToolCallID]; !open {
			return v.fail(event, RuleToolCallLifecycle, "cannot add args to tool call %s that is not open", e.ToolCallID)
		}

	case *ToolCallEndEvent:
		if _, open := v.toolCalls[e.ToolCallID]; !open {
			return v.fail(event, RuleToolCallLifecycle, "cannot end tool call %s that is not open", e.ToolCallID)
		}
		delete(v.toolCalls, e.ToolCallID)
		v.endedCalls[e.ToolCallID] = true
		if v.lastCallChunk == e.ToolCallID {
			v.lastCallChunk = ""
		}

	case *ToolCallChunkEvent:
		id := e.ID()
		if id == "" {
			if v.lastCallChunk == "" {
				return v.fail(event, RuleToolCallLifecycle, "chunk without toolCallId and no open chunked tool call")
			}
			return nil
		}
		if _, open := v.toolCalls[id]; open {
			return nil
		}
		if v.endedCalls[id] {
			return v.fail(event, RuleToolCallLifecycle, "chunk for tool call %s that already ended", id)
		}
		if e.Name() == "" {
			return v.fail(event, RuleToolCallLifecycle, "first chunk of tool call %s must carry toolCallName", id)
		}
		v.toolCalls[id] = true
		v.lastCallChunk = id

	case *ThinkingStartEvent:
		if v.thinking {
			return v.fail(event, RuleThinkingLifecycle, "thinking step already in progress")
		}
		v.thinking = true

	case *ThinkingEndEvent:
		if !v.thinking {
			return v.fail(event, RuleThinkingLifecycle, "no thinking step in progress")
		}
		if v.thinkingText {
			return v.fail(event, RuleThinkingLifecycle, "thinking message still open")
		}
		v.thinking = false

	case *ThinkingTextMessageStartEvent:
		if !v.thinking {
			return v.fail(event, RuleThinkingLifecycle, "thinking message outside a thinking step")
		}
		if v.thinkingText {
			return v.fail(event, RuleThinkingLifecycle, "thinking message already in progress")
		}
		v.thinkingText = true

	case *ThinkingTextMessageContentEvent:
		if !v.thinkingText {
			return v.fail(event, RuleThinkingLifecycle, "no thinking message in progress")
		}

	case *ThinkingTextMessageEndEvent:
		if !v.thinkingText {
			return v.fail(event, RuleThinkingLifecycle, "no thinking message in progress")
		}
		v.thinkingText = false

	case *ToolCallResultEvent:
		return v.fail(event, RuleToolResult, "tool call results are supplied by the caller in a new run")

	case *StateSnapshotEvent:
		if v.noState {
			return nil
		}
		data, err := json.Marshal(e.Snapshot)
		if err != nil {
			return v.fail(event, RuleStateDelta, "snapshot is not serializable: %v", err)
		}
		v.state = data
		v.trackState = true

	case *StateDeltaEvent:
		if v.noState || !v.trackState {
			return nil
		}
		next, err := ApplyPatch(v.state, e.Delta)
		if err != nil {
			seqErr := v.fail(event, RuleStateDelta, "patch failed: %v", err).(*SequenceError)
			seqErr.Err = err
			return seqErr
		}
		v.state = next

	case *MessagesSnapshotEvent, *RawEvent, *CustomEvent:

	default:
		return v.fail(event, RuleInvalidEvent, "unknown event type %s", event.Type())
	}
	return nil
}

// Finish reports an error if the run has not reached a terminal event.
func (v *Verifier) Finish() error {
	if !v.started {
		return &SequenceError{Index: v.index, Rule: RuleFirstEvent, Message: "stream contained no " + string(EventTypeRunStarted)}
	}
	if !v.terminated {
		return &SequenceError{Index: v.index, Rule: RuleMissingTerminal, Message: "stream ended before a terminal event"}
	}
	return nil
}

// openDescription lists entries that must be closed before RUN_FINISHED.
// Chunk-opened messages and tool calls close implicitly and are not listed.
func (v *Verifier) openDescription() string {
	var parts []string
	var ids []string
	for id, chunked := range v.messages {
		if !chunked {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		sort.Strings(ids)
		parts = append(parts, "messages "+strings.Join(ids, ", "))
	}
	ids = ids[:0]
	for id, chunked := range v.toolCalls {
		if !chunked {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		sort.Strings(ids)
		parts = append(parts, "tool calls "+strings.Join(ids, ", "))
	}
	if ids = sortedKeys(v.steps); len(ids) > 0 {
		parts = append(parts, "steps "+strings.Join(ids, ", "))
	}
	if v.thinking {
		parts = append(parts, "thinking step")
	}
	return strings.Join(parts, "; ")
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateSequence validates a complete run: every event is checked in order
// and the sequence must end with exactly one terminal event.
func ValidateSequence(events []Event, opts ...VerifierOption) error {
	v := NewVerifier(opts...)
	for _, event := range events {
		if err := v.Verify(event); err != nil {
			return err
		}
	}
	return v.Finish()
}
