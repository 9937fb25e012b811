package stream

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/messages"
)

// Errors reported by the assembler.
var (
	ErrAlreadyOpen = errors.New("already open")
	ErrNotOpen     = errors.New("not open")
	ErrOpenAtDrain = errors.New("entries still open at run end")
)

// UpdateKind identifies an assembler update.
type UpdateKind string

const (
	MessageStarted   UpdateKind = "message_started"
	MessageContent   UpdateKind = "message_content"
	MessageFinished  UpdateKind = "message_finished"
	ToolCallStarted  UpdateKind = "tool_call_started"
	ToolCallArgs     UpdateKind = "tool_call_args"
	ToolCallFinished UpdateKind = "tool_call_finished"
)

// Message is a text message as accumulated so far.
type Message struct {
	ID      string
	Role    messages.MessageRole
	Content string
}

// ToMessage converts the accumulated text to the conversation model.
func (m Message) ToMessage() messages.Message {
	base := messages.BaseMessage{ID: m.ID, Role: m.Role}
	content := m.Content
	switch m.Role {
	case messages.RoleUser:
		return &messages.UserMessage{BaseMessage: base, Content: messages.TextContent(content)}
	case messages.RoleSystem:
		return &messages.SystemMessage{BaseMessage: base, Content: &content}
	case messages.RoleDeveloper:
		return &messages.DeveloperMessage{BaseMessage: base, Content: &content}
	default:
		base.Role = messages.RoleAssistant
		return &messages.AssistantMessage{BaseMessage: base, Content: &content}
	}
}

// ToolCall is a tool invocation as accumulated so far.
type ToolCall struct {
	ID              string
	Name            string
	ParentMessageID string
	Arguments       string
}

// ToToolCall converts to the conversation model.
func (c ToolCall) ToToolCall() messages.ToolCall {
	return messages.NewToolCall(c.ID, c.Name, c.Arguments)
}

// Update reports one change caused by an event. Message and ToolCall hold a
// copy of the accumulated value at the time of the update.
type Update struct {
	Kind     UpdateKind
	Message  *Message
	ToolCall *ToolCall
	Delta    string
}

type messageBuffer struct {
	role    messages.MessageRole
	content strings.Builder
	chunked bool
	seq     int
}

type toolCallBuffer struct {
	name     string
	parentID string
	args     strings.Builder
	chunked  bool
	seq      int
}

// Assembler folds start/delta/end event triples into complete messages and
// tool calls. Entries are keyed by id, so interleaved streams are supported.
// It is not safe for concurrent use.
type Assembler struct {
	messages      map[string]*messageBuffer
	toolCalls     map[string]*toolCallBuffer
	lastChunkID   string
	lastCallChunk string
	seq           int
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	a := &Assembler{}
	a.Reset()
	return a
}

// Reset drops all partial state. It is used when a run fails or is cancelled.
func (a *Assembler) Reset() {
	a.messages = make(map[string]*messageBuffer)
	a.toolCalls = make(map[string]*toolCallBuffer)
	a.lastChunkID = ""
	a.lastCallChunk = ""
}

// OpenMessages returns the ids of messages that have started but not ended.
func (a *Assembler) OpenMessages() []string {
	ids := make([]string, 0, len(a.messages))
	for id := range a.messages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OpenToolCalls returns the ids of tool calls that have started but not ended.
func (a *Assembler) OpenToolCalls() []string {
	ids := make([]string, 0, len(a.toolCalls))
	for id := range a.toolCalls {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Process folds one event. Events that do not concern messages or tool
// calls produce no updates; thinking events are among them.
func (a *Assembler) Process(event events.Event) ([]Update, error) {
	switch e := event.(type) {
	case *events.TextMessageStartEvent:
		return a.startMessage(e.MessageID, messages.MessageRole(e.RoleOrDefault()), false)

	case *events.TextMessageContentEvent:
		return a.appendMessage(e.MessageID, e.Delta)

	case *events.TextMessageEndEvent:
		return a.finishMessage(e.MessageID)

	case *events.TextMessageChunkEvent:
		return a.chunk(e)

	case *events.ToolCallStartEvent:
		parentID := ""
		if e.ParentMessageID != nil {
			parentID = *e.ParentMessageID
		}
		return a.startToolCall(e.ToolCallID, e.ToolCallName, parentID, false)

	case *events.ToolCallArgsEvent:
		return a.appendToolCall(e.ToolCallID, e.Delta)

	case *events.ToolCallEndEvent:
		buf, ok := a.toolCalls[e.ToolCallID]
		if !ok {
			return nil, fmt.Errorf("tool call %s: %w", e.ToolCallID, ErrNotOpen)
		}
		delete(a.toolCalls, e.ToolCallID)
		if a.lastCallChunk == e.ToolCallID {
			a.lastCallChunk = ""
		}
		return []Update{{Kind: ToolCallFinished, ToolCall: buf.snapshot(e.ToolCallID)}}, nil

	case *events.ToolCallChunkEvent:
		return a.toolChunk(e)
	}
	return nil, nil
}

// Drain ends the run: messages and tool calls opened by chunks are finished,
// in the order they were opened, and any explicitly opened entry left behind
// is an error.
// The assembler is empty afterwards.
func (a *Assembler) Drain() ([]Update, error) {
	defer a.Reset()

	type pending struct {
		seq    int
		update Update
	}
	var chunked []pending
	var open []string
	for id, buf := range a.messages {
		if buf.chunked {
			chunked = append(chunked, pending{buf.seq, Update{Kind: MessageFinished, Message: buf.snapshot(id)}})
		} else {
			open = append(open, "message "+id)
		}
	}
	for id, buf := range a.toolCalls {
		if buf.chunked {
			chunked = append(chunked, pending{buf.seq, Update{Kind: ToolCallFinished, ToolCall: buf.snapshot(id)}})
		} else {
			open = append(open, "tool call "+id)
		}
	}
	if len(open) > 0 {
		sort.Strings(open)
		return nil, fmt.Errorf("%w: %s", ErrOpenAtDrain, strings.Join(open, ", "))
	}

	sort.Slice(chunked, func(i, j int) bool { return chunked[i].seq < chunked[j].seq })
	var updates []Update
	for _, p := range chunked {
		updates = append(updates, p.update)
	}
	return updates, nil
}

func (a *Assembler) next() int {
	a.seq++
	return a.seq
}

func (a *Assembler) startMessage(id string, role messages.MessageRole, chunked bool) ([]Update, error) {
	if _, ok := a.messages[id]; ok {
		return nil, fmt.Errorf("message %s: %w", id, ErrAlreadyOpen)
	}
	buf := &messageBuffer{role: role, chunked: chunked, seq: a.next()}
	a.messages[id] = buf
	return []Update{{Kind: MessageStarted, Message: buf.snapshot(id)}}, nil
}

func (a *Assembler) appendMessage(id, delta string) ([]Update, error) {
	buf, ok := a.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotOpen)
	}
	buf.content.WriteString(delta)
	return []Update{{Kind: MessageContent, Message: buf.snapshot(id), Delta: delta}}, nil
}

func (a *Assembler) finishMessage(id string) ([]Update, error) {
	buf, ok := a.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotOpen)
	}
	delete(a.messages, id)
	if a.lastChunkID == id {
		a.lastChunkID = ""
	}
	return []Update{{Kind: MessageFinished, Message: buf.snapshot(id)}}, nil
}

// chunk normalizes a TEXT_MESSAGE_CHUNK into the start/content form.
func (a *Assembler) chunk(e *events.TextMessageChunkEvent) ([]Update, error) {
	id := e.ID()
	if id == "" {
		id = a.lastChunkID
		if id == "" {
			return nil, fmt.Errorf("chunk without messageId: %w", ErrNotOpen)
		}
	}

	var updates []Update
	if _, ok := a.messages[id]; !ok {
		started, err := a.startMessage(id, messages.RoleAssistant, true)
		if err != nil {
			return nil, err
		}
		updates = append(updates, started...)
		a.lastChunkID = id
	}
	if delta := e.Text(); delta != "" {
		appended, err := a.appendMessage(id, delta)
		if err != nil {
			return nil, err
		}
		updates = append(updates, appended...)
	}
	return updates, nil
}

func (a *Assembler) startToolCall(id, name, parentID string, chunked bool) ([]Update, error) {
	if _, ok := a.toolCalls[id]; ok {
		return nil, fmt.Errorf("tool call %s: %w", id, ErrAlreadyOpen)
	}
	buf := &toolCallBuffer{name: name, parentID: parentID, chunked: chunked, seq: a.next()}
	a.toolCalls[id] = buf
	return []Update{{Kind: ToolCallStarted, ToolCall: buf.snapshot(id)}}, nil
}

func (a *Assembler) appendToolCall(id, delta string) ([]Update, error) {
	buf, ok := a.toolCalls[id]
	if !ok {
		return nil, fmt.Errorf("tool call %s: %w", id, ErrNotOpen)
	}
	buf.args.WriteString(delta)
	return []Update{{Kind: ToolCallArgs, ToolCall: buf.snapshot(id), Delta: delta}}, nil
}

// toolChunk normalizes a TOOL_CALL_CHUNK into the start/args form.
func (a *Assembler) toolChunk(e *events.ToolCallChunkEvent) ([]Update, error) {
	id := e.ID()
	if id == "" {
		id = a.lastCallChunk
		if id == "" {
			return nil, fmt.Errorf("chunk without toolCallId: %w", ErrNotOpen)
		}
	}

	var updates []Update
	if _, ok := a.toolCalls[id]; !ok {
		started, err := a.startToolCall(id, e.Name(), e.Parent(), true)
		if err != nil {
			return nil, err
		}
		updates = append(updates, started...)
		a.lastCallChunk = id
	}
	if delta := e.Args(); delta != "" {
		appended, err := a.appendToolCall(id, delta)
		if err != nil {
			return nil, err
		}
		updates = append(updates, appended...)
	}
	return updates, nil
}

func (b *messageBuffer) snapshot(id string) *Message {
	return &Message{ID: id, Role: b.role, Content: b.content.String()}
}

func (b *toolCallBuffer) snapshot(id string) *ToolCall {
	return &ToolCall{ID: id, Name: b.name, ParentMessageID: b.parentID, Arguments: b.args.String()}
}
