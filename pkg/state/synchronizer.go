package state

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/messages"
	"github.com/ag-ui/go-engine/pkg/stream"
)

// PatchError is returned when a STATE_DELTA cannot be applied. The document
// is left exactly as it was before the delta.
type PatchError struct {
	Operations []events.JSONPatchOperation
	Err        error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("state delta rejected (%d operations): %v", len(e.Operations), e.Err)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}

// Mutation is a change requested by a subscriber. Nil fields are left alone.
type Mutation struct {
	Messages messages.List
	State    any
	// StopPropagation skips the event pass for the current event.
	StopPropagation bool
}

// Change reports what one Apply call modified.
type Change struct {
	Messages    bool
	State       bool
	NewMessages []string
}

func (c *Change) merge(other Change) {
	c.Messages = c.Messages || other.Messages
	c.State = c.State || other.State
	c.NewMessages = append(c.NewMessages, other.NewMessages...)
}

// Synchronizer owns the canonical message list and state document of one
// run. Readers only ever get deep copies.
type Synchronizer struct {
	mu       sync.RWMutex
	state    any
	messages messages.List
}

// NewSynchronizer seeds the synchronizer with the last known state and
// messages. Both are copied.
func NewSynchronizer(state any, msgs messages.List) *Synchronizer {
	return &Synchronizer{
		state:    core.CloneJSON(state),
		messages: msgs.Clone(),
	}
}

// State returns a deep copy of the current document.
func (s *Synchronizer) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.CloneJSON(s.state)
}

// Messages returns a deep copy of the current message list.
func (s *Synchronizer) Messages() messages.List {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages.Clone()
}

// ApplySnapshot replaces the document wholesale.
func (s *Synchronizer) ApplySnapshot(doc any) {
	s.mu.Lock()
	s.state = core.CloneJSON(doc)
	s.mu.Unlock()
}

// ApplyDelta applies ops in order. Either all of them apply or none do.
func (s *Synchronizer) ApplyDelta(ops []events.JSONPatchOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(s.state)
	if err != nil {
		return &PatchError{Operations: ops, Err: fmt.Errorf("failed to encode state: %w", err)}
	}
	patched, err := events.ApplyPatch(doc, ops)
	if err != nil {
		return &PatchError{Operations: ops, Err: err}
	}
	next, err := core.DecodeJSON(patched)
	if err != nil {
		return &PatchError{Operations: ops, Err: fmt.Errorf("failed to decode patched state: %w", err)}
	}
	s.state = next
	return nil
}

// ApplyMessagesSnapshot replaces the message list with snapshot while
// keeping local ephemeral messages. An ephemeral message stays after the
// closest durable message that preceded it locally and survives in the
// snapshot, or at the front if none does. Snapshot entries always win over a
// local message with the same id. It returns the ids new to the list.
func (s *Synchronizer) ApplyMessagesSnapshot(snapshot messages.List) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, added := mergeSnapshot(s.messages, snapshot.Clone())
	s.messages = merged
	return added
}

func mergeSnapshot(local, snapshot messages.List) (messages.List, []string) {
	inSnapshot := make(map[string]bool, len(snapshot))
	for _, msg := range snapshot {
		inSnapshot[msg.GetID()] = true
	}

	// Group ephemeral messages by anchor. "" anchors to the front.
	anchored := make(map[string]messages.List)
	anchor := ""
	known := make(map[string]bool, len(local))
	for _, msg := range local {
		known[msg.GetID()] = true
		if !msg.IsEphemeral() {
			if inSnapshot[msg.GetID()] {
				anchor = msg.GetID()
			}
			continue
		}
		if inSnapshot[msg.GetID()] {
			continue
		}
		anchored[anchor] = append(anchored[anchor], msg)
	}

	out := make(messages.List, 0, len(snapshot)+len(local))
	out = append(out, anchored[""]...)
	var added []string
	for _, msg := range snapshot {
		out = append(out, msg)
		out = append(out, anchored[msg.GetID()]...)
		if !known[msg.GetID()] {
			added = append(added, msg.GetID())
		}
	}
	return out, added
}

// ApplyMutation applies a subscriber mutation. It runs before the event
// pass for the same event.
func (s *Synchronizer) ApplyMutation(m Mutation) Change {
	s.mu.Lock()
	defer s.mu.Unlock()

	var change Change
	if m.Messages != nil {
		before := make(map[string]bool, len(s.messages))
		for _, msg := range s.messages {
			before[msg.GetID()] = true
		}
		s.messages = m.Messages.Clone()
		for _, msg := range s.messages {
			if !before[msg.GetID()] {
				change.NewMessages = append(change.NewMessages, msg.GetID())
			}
		}
		change.Messages = true
	}
	if m.State != nil {
		doc, err := core.NormalizeJSON(m.State)
		if err != nil {
			doc = core.CloneJSON(m.State)
		}
		s.state = doc
		change.State = true
	}
	return change
}

// Apply is the event pass: it incorporates the assembler updates produced
// for event, then the event's own snapshot or delta. A failing delta leaves
// everything untouched and returns a *PatchError.
func (s *Synchronizer) Apply(event events.Event, updates []stream.Update) (Change, error) {
	var change Change
	switch e := event.(type) {
	case *events.StateSnapshotEvent:
		s.ApplySnapshot(e.Snapshot)
		change.State = true
	case *events.StateDeltaEvent:
		if err := s.ApplyDelta(e.Delta); err != nil {
			return Change{}, err
		}
		change.State = true
	case *events.MessagesSnapshotEvent:
		change.NewMessages = s.ApplyMessagesSnapshot(e.Messages)
		change.Messages = true
	}
	for _, u := range updates {
		change.merge(s.ApplyUpdate(u))
	}
	return change, nil
}

// ApplyUpdate keeps the canonical list current while a message or tool call
// is still streaming.
func (s *Synchronizer) ApplyUpdate(u stream.Update) Change {
	switch u.Kind {
	case stream.MessageStarted:
		if s.BeginMessage(u.Message.ID, u.Message.Role) {
			return Change{Messages: true, NewMessages: []string{u.Message.ID}}
		}
	case stream.MessageContent:
		if s.AppendContent(u.Message.ID, u.Delta) {
			return Change{Messages: true}
		}
	case stream.ToolCallStarted:
		created := s.AttachToolCall(u.ToolCall.ParentMessageID, u.ToolCall.ToToolCall())
		change := Change{Messages: true}
		if created != "" {
			change.NewMessages = []string{created}
		}
		return change
	case stream.ToolCallArgs:
		if s.UpdateToolCall(u.ToolCall.ID, u.ToolCall.Arguments) {
			return Change{Messages: true}
		}
	}
	return Change{}
}

// BeginMessage appends an empty message with the given role unless one with
// the same id exists. It reports whether a message was added.
func (s *Synchronizer) BeginMessage(id string, role messages.MessageRole) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.messages.IndexOf(id) >= 0 {
		return false
	}
	msg := stream.Message{ID: id, Role: role}
	s.messages = append(s.messages, msg.ToMessage())
	return true
}

// AppendContent appends delta to the text content of message id.
func (s *Synchronizer) AppendContent(id, delta string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.messages.IndexOf(id)
	if i < 0 {
		return false
	}
	switch m := s.messages[i].(type) {
	case *messages.AssistantMessage:
		text := m.TextContent() + delta
		m.Content = &text
	case *messages.UserMessage:
		m.Content = messages.TextContent(m.Content.String() + delta)
	case *messages.SystemMessage:
		text := m.TextContent() + delta
		m.Content = &text
	case *messages.DeveloperMessage:
		text := m.TextContent() + delta
		m.Content = &text
	case *messages.ToolMessage:
		m.Content += delta
	default:
		return false
	}
	return true
}

// UpsertMessage replaces the message with the same id, or appends msg.
func (s *Synchronizer) UpsertMessage(msg messages.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg = msg.Clone()
	if i := s.messages.IndexOf(msg.GetID()); i >= 0 {
		s.messages[i] = msg
		return
	}
	s.messages = append(s.messages, msg)
}

// AttachToolCall adds call to the assistant message parentID. When there is
// no such assistant message a new one is appended, keyed by parentID or by
// the call id. It returns the id of the created message, or "".
func (s *Synchronizer) AttachToolCall(parentID string, call messages.ToolCall) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if parentID != "" {
		if i := s.messages.IndexOf(parentID); i >= 0 {
			if m, ok := s.messages[i].(*messages.AssistantMessage); ok {
				m.ToolCalls = append(m.ToolCalls, call)
				return ""
			}
		}
	}
	id := parentID
	if id == "" || s.messages.IndexOf(id) >= 0 {
		id = call.ID
	}
	msg := &messages.AssistantMessage{
		BaseMessage: messages.BaseMessage{ID: id, Role: messages.RoleAssistant},
		ToolCalls:   []messages.ToolCall{call},
	}
	s.messages = append(s.messages, msg)
	return id
}

// UpdateToolCall sets the accumulated arguments of tool call id.
func (s *Synchronizer) UpdateToolCall(id, arguments string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.messages {
		m, ok := msg.(*messages.AssistantMessage)
		if !ok {
			continue
		}
		if i := m.FindToolCall(id); i >= 0 {
			m.ToolCalls[i].Function.Arguments = arguments
			return true
		}
	}
	return false
}
