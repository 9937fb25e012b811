package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of AG-UI event
type EventType string

// AG-UI Event Type constants - matching the protocol specification
const (
	EventTypeRunStarted         EventType = "RUN_STARTED"
	EventTypeRunFinished        EventType = "RUN_FINISHED"
	EventTypeRunError           EventType = "RUN_ERROR"
	EventTypeStepStarted        EventType = "STEP_STARTED"
	EventTypeStepFinished       EventType = "STEP_FINISHED"
	EventTypeTextMessageStart   EventType = "TEXT_MESSAGE_START"
	EventTypeTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	EventTypeTextMessageEnd     EventType = "TEXT_MESSAGE_END"
	EventTypeTextMessageChunk   EventType = "TEXT_MESSAGE_CHUNK"
	EventTypeToolCallStart      EventType = "TOOL_CALL_START"
	EventTypeToolCallArgs       EventType = "TOOL_CALL_ARGS"
	EventTypeToolCallEnd        EventType = "TOOL_CALL_END"
	EventTypeToolCallResult     EventType = "TOOL_CALL_RESULT"
	EventTypeToolCallChunk      EventType = "TOOL_CALL_CHUNK"
	EventTypeThinkingStart      EventType = "THINKING_START"
	EventTypeThinkingEnd        EventType = "THINKING_END"
	EventTypeStateSnapshot      EventType = "STATE_SNAPSHOT"
	EventTypeStateDelta         EventType = "STATE_DELTA"
	EventTypeMessagesSnapshot   EventType = "MESSAGES_SNAPSHOT"
	EventTypeRaw                EventType = "RAW"
	EventTypeCustom             EventType = "CUSTOM"

	EventTypeThinkingTextMessageStart   EventType = "THINKING_TEXT_MESSAGE_START"
	EventTypeThinkingTextMessageContent EventType = "THINKING_TEXT_MESSAGE_CONTENT"
	EventTypeThinkingTextMessageEnd     EventType = "THINKING_TEXT_MESSAGE_END"
)

// validEventTypes is a map for O(1) lookup of valid event types
var validEventTypes = map[EventType]bool{
	EventTypeRunStarted:         true,
	EventTypeRunFinished:        true,
	EventTypeRunError:           true,
	EventTypeStepStarted:        true,
	EventTypeStepFinished:       true,
	EventTypeTextMessageStart:   true,
	EventTypeTextMessageContent: true,
	EventTypeTextMessageEnd:     true,
	EventTypeTextMessageChunk:   true,
	EventTypeToolCallStart:      true,
	EventTypeToolCallArgs:       true,
	EventTypeToolCallEnd:        true,
	EventTypeToolCallResult:     true,
	EventTypeToolCallChunk:      true,
	EventTypeThinkingStart:      true,
	EventTypeThinkingEnd:        true,
	EventTypeStateSnapshot:      true,
	EventTypeStateDelta:         true,
	EventTypeMessagesSnapshot:   true,
	EventTypeRaw:                true,
	EventTypeCustom:             true,

	EventTypeThinkingTextMessageStart:   true,
	EventTypeThinkingTextMessageContent: true,
	EventTypeThinkingTextMessageEnd:     true,
}

// IsValid reports whether t is one of the protocol event types.
func (t EventType) IsValid() bool {
	return validEventTypes[t]
}

// IsTerminal reports whether t ends a run.
func (t EventType) IsTerminal() bool {
	return t == EventTypeRunFinished || t == EventTypeRunError
}

// AllEventTypes returns every protocol event type.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeRunStarted, EventTypeRunFinished, EventTypeRunError,
		EventTypeStepStarted, EventTypeStepFinished,
		EventTypeTextMessageStart, EventTypeTextMessageContent, EventTypeTextMessageEnd, EventTypeTextMessageChunk,
		EventTypeToolCallStart, EventTypeToolCallArgs, EventTypeToolCallEnd, EventTypeToolCallResult, EventTypeToolCallChunk,
		EventTypeThinkingStart, EventTypeThinkingEnd,
		EventTypeThinkingTextMessageStart, EventTypeThinkingTextMessageContent, EventTypeThinkingTextMessageEnd,
		EventTypeStateSnapshot, EventTypeStateDelta, EventTypeMessagesSnapshot,
		EventTypeRaw, EventTypeCustom,
	}
}

// Event defines the common interface for all AG-UI events. The set of
// implementations is closed: only the event structs of this package satisfy
// it, so consumers can switch on the concrete type exhaustively.
type Event interface {
	// Type returns the event type
	Type() EventType

	// Timestamp returns the event timestamp (Unix milliseconds)
	Timestamp() *int64

	// SetTimestamp sets the event timestamp
	SetTimestamp(timestamp int64)

	// Validate validates the event structure and content
	Validate() error

	// ToJSON serializes the event to JSON for cross-SDK compatibility,
	// including extension fields captured at decode time.
	ToJSON() ([]byte, error)

	// GetBaseEvent returns the underlying base event
	GetBaseEvent() *BaseEvent

	sealed()
}

// BaseEvent provides common fields and functionality for all events
type BaseEvent struct {
	EventType   EventType `json:"type"`
	TimestampMs *int64    `json:"timestamp,omitempty"`
	RawEvent    any       `json:"rawEvent,omitempty"`

	// Extensions holds top-level fields this package does not know about.
	// They never affect validity and are written back by ToJSON.
	Extensions map[string]json.RawMessage `json:"-"`
}

// Type returns the event type
func (b *BaseEvent) Type() EventType {
	return b.EventType
}

// Timestamp returns the event timestamp
func (b *BaseEvent) Timestamp() *int64 {
	return b.TimestampMs
}

// SetTimestamp sets the event timestamp
func (b *BaseEvent) SetTimestamp(timestamp int64) {
	b.TimestampMs = &timestamp
}

// GetBaseEvent returns the base event
func (b *BaseEvent) GetBaseEvent() *BaseEvent {
	return b
}

func (b *BaseEvent) sealed() {}

// NewBaseEvent creates a new base event with the given type and current timestamp
func NewBaseEvent(eventType EventType) *BaseEvent {
	now := time.Now().UnixMilli()
	return &BaseEvent{
		EventType:   eventType,
		TimestampMs: &now,
	}
}

// Validate validates the base event structure
func (b *BaseEvent) Validate() error {
	if b == nil {
		return fmt.Errorf("BaseEvent validation failed: base event is nil")
	}
	if b.EventType == "" {
		return fmt.Errorf("BaseEvent validation failed: type field is required")
	}
	if !b.EventType.IsValid() {
		return fmt.Errorf("BaseEvent validation failed: invalid event type '%s'", b.EventType)
	}
	return nil
}

// GenerateMessageID returns a new random message id.
func GenerateMessageID() string {
	return "msg-" + uuid.NewString()
}

// GenerateToolCallID returns a new random tool call id.
func GenerateToolCallID() string {
	return "tool-" + uuid.NewString()
}

// GenerateRunID returns a new random run id.
func GenerateRunID() string {
	return uuid.NewString()
}

// GenerateThreadID returns a new random thread id.
func GenerateThreadID() string {
	return uuid.NewString()
}

func requireField(eventName, field, value string) error {
	if value == "" {
		return fmt.Errorf("%s validation failed: %s field is required", eventName, field)
	}
	return nil
}
