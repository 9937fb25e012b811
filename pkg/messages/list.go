package messages

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// List is an ordered conversation. It decodes polymorphically on "role".
type List []Message

// Validate validates all messages in the list
func (l List) Validate() error {
	for i, msg := range l {
		if msg == nil {
			return fmt.Errorf("invalid message at index %d: nil", i)
		}
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("invalid message at index %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the list.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	for i, msg := range l {
		out[i] = msg.Clone()
	}
	return out
}

// IndexOf returns the position of the message with the given id, or -1.
func (l List) IndexOf(id string) int {
	for i, msg := range l {
		if msg.GetID() == id {
			return i
		}
	}
	return -1
}

// Durable returns the list without ephemeral messages.
func (l List) Durable() List {
	out := make(List, 0, len(l))
	for _, msg := range l {
		if !msg.IsEphemeral() {
			out = append(out, msg)
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler. Ephemeral messages are omitted.
func (l List) MarshalJSON() ([]byte, error) {
	durable := l.Durable()
	raw := make([]json.RawMessage, 0, len(durable))
	for _, msg := range durable {
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, err
		}
		raw = append(raw, data)
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler
func (l *List) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("messages must be an array: %w", err)
	}
	out := make(List, 0, len(raw))
	for i, item := range raw {
		msg, err := Unmarshal(item)
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, msg)
	}
	*l = out
	return nil
}

// Unmarshal decodes one message, selecting the variant by its role.
func Unmarshal(data []byte) (Message, error) {
	role := MessageRole(gjson.GetBytes(data, "role").String())
	var msg Message
	switch role {
	case RoleDeveloper:
		msg = &DeveloperMessage{}
	case RoleSystem:
		msg = &SystemMessage{}
	case RoleUser:
		msg = &UserMessage{}
	case RoleAssistant:
		msg = &AssistantMessage{}
	case RoleTool:
		msg = &ToolMessage{}
	default:
		return nil, NewValidationError("unknown message role",
			ValidationViolation{Field: "role", Message: "unknown role", Value: string(role)})
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to decode %s message: %w", role, err)
	}
	return msg, nil
}
