package messages

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	RoleDeveloper MessageRole = "developer"
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Validate validates that a role is one of the allowed values
func (r MessageRole) Validate() error {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool, RoleDeveloper:
		return nil
	default:
		return fmt.Errorf("invalid role: %q", r)
	}
}

// ToolCallTypeFunction is the only tool call type defined by the protocol.
const ToolCallTypeFunction = "function"

// ToolCall represents a tool/function call within an assistant message
type ToolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function represents a function call. Arguments is the JSON-encoded
// argument object as accumulated from the stream.
type Function struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewToolCall creates a function tool call.
func NewToolCall(id, name, arguments string) ToolCall {
	return ToolCall{
		ID:       id,
		Type:     ToolCallTypeFunction,
		Function: Function{Name: name, Arguments: arguments},
	}
}

// Message is implemented by one struct per role. The set is closed:
// *DeveloperMessage, *SystemMessage, *UserMessage, *AssistantMessage
// and *ToolMessage.
type Message interface {
	GetID() string
	GetRole() MessageRole
	GetName() *string
	// IsEphemeral reports whether the message is held locally by the caller
	// and is not part of the durable conversation history.
	IsEphemeral() bool
	Validate() error
	Clone() Message
	isMessage()
}

// BaseMessage contains common fields for all message types
type BaseMessage struct {
	ID   string      `json:"id"`
	Role MessageRole `json:"role"`
	Name *string     `json:"name,omitempty"`

	// Ephemeral messages are never serialized.
	Ephemeral bool `json:"-"`
}

// GetID returns the message ID
func (m *BaseMessage) GetID() string {
	return m.ID
}

// GetRole returns the message role
func (m *BaseMessage) GetRole() MessageRole {
	return m.Role
}

// GetName returns the message name
func (m *BaseMessage) GetName() *string {
	return m.Name
}

// IsEphemeral reports whether the message is caller-held only.
func (m *BaseMessage) IsEphemeral() bool {
	return m.Ephemeral
}

func (m *BaseMessage) isMessage() {}

func (m *BaseMessage) validateBase(role MessageRole) error {
	if m.ID == "" {
		return NewValidationError(fmt.Sprintf("%s message id is required", role),
			ValidationViolation{Field: "id", Message: "id is required"})
	}
	if m.Role != role {
		return NewValidationError(fmt.Sprintf("%s message has role %q", role, m.Role),
			ValidationViolation{Field: "role", Message: "role does not match message type", Value: m.Role})
	}
	return nil
}

func (m BaseMessage) clone() BaseMessage {
	out := m
	if m.Name != nil {
		name := *m.Name
		out.Name = &name
	}
	return out
}

// ensureID ensures the message has an ID, generating one if needed
func (m *BaseMessage) ensureID() {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
}

func missingContent(role MessageRole) error {
	return NewValidationError(fmt.Sprintf("%s message content is required", role),
		ValidationViolation{Field: "content", Message: "content is required"})
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// DeveloperMessage carries developer instructions. Content must be present
// but may be empty while the message is streaming.
type DeveloperMessage struct {
	BaseMessage
	Content *string `json:"content"`
}

// NewDeveloperMessage creates a new developer message
func NewDeveloperMessage(content string) *DeveloperMessage {
	msg := &DeveloperMessage{BaseMessage: BaseMessage{Role: RoleDeveloper}, Content: &content}
	msg.ensureID()
	return msg
}

// Validate validates the developer message
func (m *DeveloperMessage) Validate() error {
	if err := m.validateBase(RoleDeveloper); err != nil {
		return err
	}
	if m.Content == nil {
		return missingContent(RoleDeveloper)
	}
	return nil
}

// TextContent returns the content or "" when absent.
func (m *DeveloperMessage) TextContent() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// Clone returns a deep copy.
func (m *DeveloperMessage) Clone() Message {
	out := *m
	out.BaseMessage = m.BaseMessage.clone()
	out.Content = cloneString(m.Content)
	return &out
}

// SystemMessage represents a system-level message
type SystemMessage struct {
	BaseMessage
	Content *string `json:"content"`
}

// NewSystemMessage creates a new system message
func NewSystemMessage(content string) *SystemMessage {
	msg := &SystemMessage{BaseMessage: BaseMessage{Role: RoleSystem}, Content: &content}
	msg.ensureID()
	return msg
}

// Validate validates the system message
func (m *SystemMessage) Validate() error {
	if err := m.validateBase(RoleSystem); err != nil {
		return err
	}
	if m.Content == nil {
		return missingContent(RoleSystem)
	}
	return nil
}

// TextContent returns the content or "" when absent.
func (m *SystemMessage) TextContent() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// Clone returns a deep copy.
func (m *SystemMessage) Clone() Message {
	out := *m
	out.BaseMessage = m.BaseMessage.clone()
	out.Content = cloneString(m.Content)
	return &out
}

// UserMessage represents a message from a user. Content is either plain
// text or a list of content blocks.
type UserMessage struct {
	BaseMessage
	Content Content `json:"content"`
}

// NewUserMessage creates a new user message with text content
func NewUserMessage(content string) *UserMessage {
	msg := &UserMessage{BaseMessage: BaseMessage{Role: RoleUser}, Content: TextContent(content)}
	msg.ensureID()
	return msg
}

// Validate validates the user message
func (m *UserMessage) Validate() error {
	if err := m.validateBase(RoleUser); err != nil {
		return err
	}
	if !m.Content.Present() {
		return missingContent(RoleUser)
	}
	return m.Content.Validate()
}

// Clone returns a deep copy.
func (m *UserMessage) Clone() Message {
	out := *m
	out.BaseMessage = m.BaseMessage.clone()
	out.Content = m.Content.clone()
	return &out
}

// AssistantMessage represents a message from the agent. Content is optional
// and the message may carry tool calls instead.
type AssistantMessage struct {
	BaseMessage
	Content   *string    `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// NewAssistantMessage creates a new assistant message
func NewAssistantMessage(content string) *AssistantMessage {
	msg := &AssistantMessage{BaseMessage: BaseMessage{Role: RoleAssistant}, Content: &content}
	msg.ensureID()
	return msg
}

// NewAssistantMessageWithTools creates a new assistant message with tool calls
func NewAssistantMessageWithTools(toolCalls []ToolCall) *AssistantMessage {
	msg := &AssistantMessage{BaseMessage: BaseMessage{Role: RoleAssistant}, ToolCalls: toolCalls}
	msg.ensureID()
	return msg
}

// Validate validates the assistant message
func (m *AssistantMessage) Validate() error {
	if err := m.validateBase(RoleAssistant); err != nil {
		return err
	}
	if m.Content == nil && len(m.ToolCalls) == 0 {
		return NewValidationError("assistant message must have either content or tool calls",
			ValidationViolation{Field: "content", Message: "content or toolCalls is required"})
	}
	for i, tc := range m.ToolCalls {
		if tc.ID == "" {
			return fmt.Errorf("tool call at index %d missing ID", i)
		}
		if tc.Type != ToolCallTypeFunction {
			return fmt.Errorf("tool call at index %d has invalid type: %s", i, tc.Type)
		}
		if tc.Function.Name == "" {
			return fmt.Errorf("tool call at index %d missing function name", i)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m *AssistantMessage) Clone() Message {
	out := *m
	out.BaseMessage = m.BaseMessage.clone()
	out.Content = cloneString(m.Content)
	if m.ToolCalls != nil {
		out.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	return &out
}

// TextContent returns the assistant text or "" when absent.
func (m *AssistantMessage) TextContent() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// FindToolCall returns the index of the tool call with the given id, or -1.
func (m *AssistantMessage) FindToolCall(id string) int {
	for i := range m.ToolCalls {
		if m.ToolCalls[i].ID == id {
			return i
		}
	}
	return -1
}

// ToolMessage represents a tool execution result
type ToolMessage struct {
	BaseMessage
	Content    string  `json:"content"`
	ToolCallID string  `json:"toolCallId"`
	Error      *string `json:"error,omitempty"`
}

// NewToolMessage creates a new tool message
func NewToolMessage(content string, toolCallID string) *ToolMessage {
	msg := &ToolMessage{
		BaseMessage: BaseMessage{Role: RoleTool},
		Content:     content,
		ToolCallID:  toolCallID,
	}
	msg.ensureID()
	return msg
}

// NewToolErrorMessage creates a tool message reporting a failed execution.
func NewToolErrorMessage(toolCallID string, err error) *ToolMessage {
	msg := NewToolMessage("", toolCallID)
	text := err.Error()
	msg.Error = &text
	return msg
}

// Validate validates the tool message
func (m *ToolMessage) Validate() error {
	if err := m.validateBase(RoleTool); err != nil {
		return err
	}
	if m.ToolCallID == "" {
		return NewValidationError("tool message toolCallId is required",
			ValidationViolation{Field: "toolCallId", Message: "toolCallId is required"})
	}
	return nil
}

// Clone returns a deep copy.
func (m *ToolMessage) Clone() Message {
	out := *m
	out.BaseMessage = m.BaseMessage.clone()
	if m.Error != nil {
		text := *m.Error
		out.Error = &text
	}
	return &out
}

// MarkEphemeral flags msg as caller-held only and returns it.
func MarkEphemeral(msg Message) Message {
	switch m := msg.(type) {
	case *DeveloperMessage:
		m.Ephemeral = true
	case *SystemMessage:
		m.Ephemeral = true
	case *UserMessage:
		m.Ephemeral = true
	case *AssistantMessage:
		m.Ephemeral = true
	case *ToolMessage:
		m.Ephemeral = true
	}
	return msg
}

// ToJSON serializes a single message.
func ToJSON(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
