package events

import "fmt"

// TextMessageStartEvent indicates the start of a streaming text message
type TextMessageStartEvent struct {
	*BaseEvent
	MessageID string  `json:"messageId"`
	Role      *string `json:"role,omitempty"`
}

// NewTextMessageStartEvent creates a new text message start event
func NewTextMessageStartEvent(messageID string, options ...TextMessageStartOption) *TextMessageStartEvent {
	event := &TextMessageStartEvent{
		BaseEvent: NewBaseEvent(EventTypeTextMessageStart),
		MessageID: messageID,
	}
	for _, opt := range options {
		opt(event)
	}
	return event
}

// TextMessageStartOption defines options for creating text message start events
type TextMessageStartOption func(*TextMessageStartEvent)

// WithRole sets the role for the message
func WithRole(role string) TextMessageStartOption {
	return func(e *TextMessageStartEvent) {
		e.Role = &role
	}
}

// WithAutoMessageID automatically generates a unique message ID if the provided messageID is empty
func WithAutoMessageID() TextMessageStartOption {
	return func(e *TextMessageStartEvent) {
		if e.MessageID == "" {
			e.MessageID = GenerateMessageID()
		}
	}
}

// RoleOrDefault returns the declared role, or "assistant".
func (e *TextMessageStartEvent) RoleOrDefault() string {
	if e.Role == nil || *e.Role == "" {
		return "assistant"
	}
	return *e.Role
}

// Validate validates the text message start event
func (e *TextMessageStartEvent) Validate() error {
	if err := e.BaseEvent.Validate(); err != nil {
		return err
	}
	return requireField("TextMessageStartEvent", "messageId", e.MessageID)
}

// ToJSON serializes the event to JSON
func (e *TextMessageStartEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}

// TextMessageContentEvent contains a piece of streaming text message content
type TextMessageContentEvent struct {
	*BaseEvent
	MessageID string `json:"messageId"`
	Delta     string `json:"delta"`
}

// NewTextMessageContentEvent creates a new text message content event
func NewTextMessageContentEvent(messageID, delta string) *TextMessageContentEvent {
	return &TextMessageContentEvent{
		BaseEvent: NewBaseEvent(EventTypeTextMessageContent),
		MessageID: messageID,
		Delta:     delta,
	}
}

// Validate validates the text message content event
func (e *TextMessageContentEvent) Validate() error {
	if err := e.BaseEvent.Validate(); err != nil {
		return err
	}
	if err := requireField("TextMessageContentEvent", "messageId", e.MessageID); err != nil {
		return err
	}
	if e.Delta == "" {
		return fmt.Errorf("TextMessageContentEvent validation failed: delta must not be empty")
	}
	return nil
}

// ToJSON serializes the event to JSON
func (e *TextMessageContentEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}

// TextMessageEndEvent indicates the end of a streaming text message
type TextMessageEndEvent struct {
	*BaseEvent
	MessageID string `json:"messageId"`
}

// NewTextMessageEndEvent creates a new text message end event
func NewTextMessageEndEvent(messageID string) *TextMessageEndEvent {
	return &TextMessageEndEvent{
		BaseEvent: NewBaseEvent(EventTypeTextMessageEnd),
		MessageID: messageID,
	}
}

// Validate validates the text message end event
func (e *TextMessageEndEvent) Validate() error {
	if err := e.BaseEvent.Validate(); err != nil {
		return err
	}
	return requireField("TextMessageEndEvent", "messageId", e.MessageID)
}

// ToJSON serializes the event to JSON
func (e *TextMessageEndEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}

// TextMessageChunkEvent is a self-describing text fragment. The first chunk
// for a message id opens the message implicitly; a chunk without an id
// continues the most recent chunked message.
type TextMessageChunkEvent struct {
	*BaseEvent
	MessageID *string `json:"messageId,omitempty"`
	Role      *string `json:"role,omitempty"`
	Delta     *string `json:"delta,omitempty"`
}

// NewTextMessageChunkEvent creates a new text message chunk event
func NewTextMessageChunkEvent(messageID, delta string) *TextMessageChunkEvent {
	event := &TextMessageChunkEvent{BaseEvent: NewBaseEvent(EventTypeTextMessageChunk)}
	if messageID != "" {
		event.MessageID = &messageID
	}
	if delta != "" {
		event.Delta = &delta
	}
	return event
}

// ID returns the chunk's message id or "".
func (e *TextMessageChunkEvent) ID() string {
	if e.MessageID == nil {
		return ""
	}
	return *e.MessageID
}

// Text returns the chunk's delta or "".
func (e *TextMessageChunkEvent) Text() string {
	if e.Delta == nil {
		return ""
	}
	return *e.Delta
}

// Validate validates the text message chunk event
func (e *TextMessageChunkEvent) Validate() error {
	if err := e.BaseEvent.Validate(); err != nil {
		return err
	}
	if e.MessageID != nil && *e.MessageID == "" {
		return fmt.Errorf("TextMessageChunkEvent validation failed: messageId must not be empty when present")
	}
	if e.Role != nil && *e.Role != "assistant" {
		return fmt.Errorf("TextMessageChunkEvent validation failed: role must be assistant, got %q", *e.Role)
	}
	return nil
}

// ToJSON serializes the event to JSON
func (e *TextMessageChunkEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}
