package events

// ThinkingStartEvent opens a thinking step. Thinking steps do not nest.
type ThinkingStartEvent struct {
	*BaseEvent
	Title *string `json:"title,omitempty"`
}

// NewThinkingStartEvent creates a new thinking start event. An empty title
// is left unset.
func NewThinkingStartEvent(title string) *ThinkingStartEvent {
	event := &ThinkingStartEvent{BaseEvent: NewBaseEvent(EventTypeThinkingStart)}
	if title != "" {
		event.Title = &title
	}
	return event
}

// Validate validates the thinking start event
func (e *ThinkingStartEvent) Validate() error {
	return e.BaseEvent.Validate()
}

// ToJSON serializes the event to JSON
func (e *ThinkingStartEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}

// ThinkingEndEvent closes the open thinking step.
type ThinkingEndEvent struct {
	*BaseEvent
}

// NewThinkingEndEvent creates a new thinking end event
func NewThinkingEndEvent() *ThinkingEndEvent {
	return &ThinkingEndEvent{BaseEvent: NewBaseEvent(EventTypeThinkingEnd)}
}

// Validate validates the thinking end event
func (e *ThinkingEndEvent) Validate() error {
	return e.BaseEvent.Validate()
}

// ToJSON serializes the event to JSON
func (e *ThinkingEndEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}

// ThinkingTextMessageStartEvent opens the reasoning text of the current
// thinking step.
type ThinkingTextMessageStartEvent struct {
	*BaseEvent
}

// NewThinkingTextMessageStartEvent creates a new thinking text start event
func NewThinkingTextMessageStartEvent() *ThinkingTextMessageStartEvent {
	return &ThinkingTextMessageStartEvent{BaseEvent: NewBaseEvent(EventTypeThinkingTextMessageStart)}
}

// Validate validates the thinking text start event
func (e *ThinkingTextMessageStartEvent) Validate() error {
	return e.BaseEvent.Validate()
}

// ToJSON serializes the event to JSON
func (e *ThinkingTextMessageStartEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}

// ThinkingTextMessageContentEvent carries a fragment of reasoning text.
type ThinkingTextMessageContentEvent struct {
	*BaseEvent
	Delta string `json:"delta"`
}

// NewThinkingTextMessageContentEvent creates a new thinking text content event
func NewThinkingTextMessageContentEvent(delta string) *ThinkingTextMessageContentEvent {
	return &ThinkingTextMessageContentEvent{
		BaseEvent: NewBaseEvent(EventTypeThinkingTextMessageContent),
		Delta:     delta,
	}
}

// Validate validates the thinking text content event
func (e *ThinkingTextMessageContentEvent) Validate() error {
	if err := e.BaseEvent.Validate(); err != nil {
		return err
	}
	return requireField("ThinkingTextMessageContentEvent", "delta", e.Delta)
}

// ToJSON serializes the event to JSON
func (e *ThinkingTextMessageContentEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}

// ThinkingTextMessageEndEvent closes the reasoning text.
type ThinkingTextMessageEndEvent struct {
	*BaseEvent
}

// NewThinkingTextMessageEndEvent creates a new thinking text end event
func NewThinkingTextMessageEndEvent() *ThinkingTextMessageEndEvent {
	return &ThinkingTextMessageEndEvent{BaseEvent: NewBaseEvent(EventTypeThinkingTextMessageEnd)}
}

// Validate validates the thinking text end event
func (e *ThinkingTextMessageEndEvent) Validate() error {
	return e.BaseEvent.Validate()
}

// ToJSON serializes the event to JSON
func (e *ThinkingTextMessageEndEvent) ToJSON() ([]byte, error) {
	return marshalEvent(e)
}
