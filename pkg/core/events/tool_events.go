package events

import "fmt"

// ToolCallStartEvent indicates the start of a tool call
type ToolCallStartEvent struct {
	*BaseEvent
	ToolCallID      string  `json:"toolCallId"`
	ToolCallName    string  `json:"toolCallName"`
	ParentMessageID *string `json:"parentMessageId,omitempty"`
}

// NewToolCallStartEvent creates a new tool call start event
func NewToolCallStartEvent(toolCallID, toolCallName string, options ...ToolCallStartOption) *ToolCallStartEvent {
	event := &ToolCallStartEvent{
		BaseEvent:    NewBaseEvent(EventTypeToolCallStart),
		ToolCallID:   toolCallID,
		ToolCallName: toolCallName,
	}
	for _, opt := range options {
		opt(event)
	}
	return event
}

// ToolCallStartOption defines options for creating tool call start events
type ToolCallStartOption func(*ToolCallStartEvent)

// WithParentMessageID sets the parent message ID
func WithParentMessageID(parentMessageID string) ToolCallStartOption {
	return func(e *ToolCallStartEvent) {
		e.ParentMessageID = &parentMessageID
	}
}

// WithAutoToolCallID generates a tool call id when none was given
func WithAutoToolCallID() ToolCallStartOption {
	return func(e *ToolCallStartEvent) {
		if e.ToolCallID == "" {
			e.ToolCallID = GenerateToolCallID()
		}
	}
}

// Validate validates the tool call start event
func (e *ToolCallStartEvent) Validate() error {
	if err := e.BaseEvent.Validate(); err != nil {
		return err
	}
	if err := requireField("ToolCallStartEvent", "toolCallId", e.ToolCallID); err != nil {
		return err
	}
	return requireField("ToolCallStartEvent", "toolCallName", e.ToolCallName)
}

// ToJSON serializes the event to JSON
func (e *ToolCallStartEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}

// ToolCallArgsEvent contains a fragment of tool call arguments
type ToolCallArgsEvent struct {
	*BaseEvent
	ToolCallID string `json:"toolCallId"`
	Delta      string `json:"delta"`
}

// NewToolCallArgsEvent creates a new tool call args event
func NewToolCallArgsEvent(toolCallID, delta string) *ToolCallArgsEvent {
	return &ToolCallArgsEvent{
		BaseEvent:  NewBaseEvent(EventTypeToolCallArgs),
		ToolCallID: toolCallID,
		Delta:      delta,
	}
}

// Validate validates the tool call args event
func (e *ToolCallArgsEvent) Validate() error {
	if err := e.BaseEvent.Validate(); err != nil {
		return err
	}
	return requireField("ToolCallArgsEvent", "toolCallId", e.ToolCallID)
}

// ToJSON serializes the event to JSON
func (e *ToolCallArgsEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}

// ToolCallEndEvent indicates the end of a tool call
type ToolCallEndEvent struct {
	*BaseEvent
	ToolCallID string `json:"toolCallId"`
}

// NewToolCallEndEvent creates a new tool call end event
func NewToolCallEndEvent(toolCallID string) *ToolCallEndEvent {
	return &ToolCallEndEvent{
		BaseEvent:  NewBaseEvent(EventTypeToolCallEnd),
		ToolCallID: toolCallID,
	}
}

// Validate validates the tool call end event
func (e *ToolCallEndEvent) Validate() error {
	if err := e.BaseEvent.Validate(); err != nil {
		return err
	}
	return requireField("ToolCallEndEvent", "toolCallId", e.ToolCallID)
}

// ToJSON serializes the event to JSON
func (e *ToolCallEndEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}

// ToolCallResultEvent carries the outcome of a tool call. It is produced on
// the caller side and is never part of an agent's own output stream.
type ToolCallResultEvent struct {
	*BaseEvent
	MessageID  string  `json:"messageId"`
	ToolCallID string  `json:"toolCallId"`
	Content    string  `json:"content"`
	Role       *string `json:"role,omitempty"`
}

// NewToolCallResultEvent creates a new tool call result event
func NewToolCallResultEvent(messageID, toolCallID, content string) *ToolCallResultEvent {
	return &ToolCallResultEvent{
		BaseEvent:  NewBaseEvent(EventTypeToolCallResult),
		MessageID:  messageID,
		ToolCallID: toolCallID,
		Content:    content,
	}
}

// Validate validates the tool call result event
func (e *ToolCallResultEvent) Validate() error {
	if err := e.BaseEvent.Validate(); err != nil {
		return err
	}
	if err := requireField("ToolCallResultEvent", "messageId", e.MessageID); err != nil {
		return err
	}
	if err := requireField("ToolCallResultEvent", "toolCallId", e.ToolCallID); err != nil {
		return err
	}
	if e.Role != nil && *e.Role != "tool" {
		return fmt.Errorf("ToolCallResultEvent validation failed: role must be tool, got %q", *e.Role)
	}
	return nil
}

// ToJSON serializes the event to JSON
func (e *ToolCallResultEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}

// ToolCallChunkEvent is a self-describing tool call fragment. The first
// chunk for a call id opens the call and must name the tool; a chunk without
// an id continues the most recent chunked call.
type ToolCallChunkEvent struct {
	*BaseEvent
	ToolCallID      *string `json:"toolCallId,omitempty"`
	ToolCallName    *string `json:"toolCallName,omitempty"`
	ParentMessageID *string `json:"parentMessageId,omitempty"`
	Delta           *string `json:"delta,omitempty"`
}

// NewToolCallChunkEvent creates a new tool call chunk event. Empty
// arguments are left unset.
func NewToolCallChunkEvent(toolCallID, toolCallName, delta string) *ToolCallChunkEvent {
	event := &ToolCallChunkEvent{BaseEvent: NewBaseEvent(EventTypeToolCallChunk)}
	if toolCallID != "" {
		event.ToolCallID = &toolCallID
	}
	if toolCallName != "" {
		event.ToolCallName = &toolCallName
	}
	if delta != "" {
		event.Delta = &delta
	}
	return event
}

// WithChunkParentMessageID sets the parent message of the chunk's call.
func (e *ToolCallChunkEvent) WithChunkParentMessageID(parentMessageID string) *ToolCallChunkEvent {
	e.ParentMessageID = &parentMessageID
	return e
}

// ID returns the chunk's tool call id or "".
func (e *ToolCallChunkEvent) ID() string {
	if e.ToolCallID == nil {
		return ""
	}
	return *e.ToolCallID
}

// Name returns the chunk's tool name or "".
func (e *ToolCallChunkEvent) Name() string {
	if e.ToolCallName == nil {
		return ""
	}
	return *e.ToolCallName
}

// Parent returns the chunk's parent message id or "".
func (e *ToolCallChunkEvent) Parent() string {
	if e.ParentMessageID == nil {
		return ""
	}
	return *e.ParentMessageID
}

// Args returns the chunk's argument fragment or "".
func (e *ToolCallChunkEvent) Args() string {
	if e.Delta == nil {
		return ""
	}
	return *e.Delta
}

// Validate validates the tool call chunk event
func (e *ToolCallChunkEvent) Validate() error {
	if err := e.BaseEvent.Validate(); err != nil {
		return err
	}
	if e.ToolCallID != nil && *e.ToolCallID == "" {
		return fmt.Errorf("ToolCallChunkEvent validation failed: toolCallId must not be empty when present")
	}
	if e.ToolCallName != nil && *e.ToolCallName == "" {
		return fmt.Errorf("ToolCallChunkEvent validation failed: toolCallName must not be empty when present")
	}
	return nil
}

// ToJSON serializes the event to JSON
func (e *ToolCallChunkEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}
