package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ag-ui/go-engine/pkg/messages"
)

func TestEventValidate(t *testing.T) {
	empty := ""
	tool := "tool"
	user := "user"

	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{"run started", NewRunStartedEvent("t", "r"), false},
		{"run started without thread", NewRunStartedEvent("", "r"), true},
		{"run started without run", NewRunStartedEvent("t", ""), true},
		{"run finished with result", NewRunFinishedEvent("t", "r").WithResult(map[string]any{"ok": true}), false},
		{"run error", NewRunErrorEvent("boom", WithErrorCode("E1")), false},
		{"run error without message", NewRunErrorEvent(""), true},
		{"step started", NewStepStartedEvent("plan"), false},
		{"step without name", NewStepFinishedEvent(""), true},
		{"message start", NewTextMessageStartEvent("m", WithRole("assistant")), false},
		{"message start auto id", NewTextMessageStartEvent("", WithAutoMessageID()), false},
		{"message start without id", NewTextMessageStartEvent(""), true},
		{"message content", NewTextMessageContentEvent("m", "hi"), false},
		{"message content empty delta", NewTextMessageContentEvent("m", ""), true},
		{"message end", NewTextMessageEndEvent("m"), false},
		{"chunk", NewTextMessageChunkEvent("m", "hi"), false},
		{"chunk without id", NewTextMessageChunkEvent("", "hi"), false},
		{"chunk with empty id", &TextMessageChunkEvent{BaseEvent: NewBaseEvent(EventTypeTextMessageChunk), MessageID: &empty}, true},
		{"chunk with user role", &TextMessageChunkEvent{BaseEvent: NewBaseEvent(EventTypeTextMessageChunk), Role: &user}, true},
		{"tool start", NewToolCallStartEvent("c", "search", WithParentMessageID("m")), false},
		{"tool start without name", NewToolCallStartEvent("c", ""), true},
		{"tool args", NewToolCallArgsEvent("c", `{"q"`), false},
		{"tool end", NewToolCallEndEvent("c"), false},
		{"tool chunk", NewToolCallChunkEvent("c", "search", "{}"), false},
		{"tool chunk continuation", NewToolCallChunkEvent("", "", "{}"), false},
		{"tool chunk with empty id", &ToolCallChunkEvent{BaseEvent: NewBaseEvent(EventTypeToolCallChunk), ToolCallID: &empty}, true},
		{"tool chunk with empty name", &ToolCallChunkEvent{BaseEvent: NewBaseEvent(EventTypeToolCallChunk), ToolCallName: &empty}, true},
		{"thinking start", NewThinkingStartEvent("plan"), false},
		{"thinking end", NewThinkingEndEvent(), false},
		{"thinking text start", NewThinkingTextMessageStartEvent(), false},
		{"thinking content", NewThinkingTextMessageContentEvent("hmm"), false},
		{"thinking content empty delta", NewThinkingTextMessageContentEvent(""), true},
		{"thinking text end", NewThinkingTextMessageEndEvent(), false},
		{"tool result", &ToolCallResultEvent{BaseEvent: NewBaseEvent(EventTypeToolCallResult), MessageID: "m", ToolCallID: "c", Role: &tool}, false},
		{"tool result without call", NewToolCallResultEvent("m", "", "x"), true},
		{"snapshot", NewStateSnapshotEvent(map[string]any{"a": 1}), false},
		{"delta", NewStateDeltaEvent([]JSONPatchOperation{{Op: "add", Path: "/a", Value: 1}}), false},
		{"delta bad op", NewStateDeltaEvent([]JSONPatchOperation{{Op: "merge", Path: "/a"}}), true},
		{"delta move without from", NewStateDeltaEvent([]JSONPatchOperation{{Op: "move", Path: "/a"}}), true},
		{"messages snapshot", NewMessagesSnapshotEvent(messages.List{messages.NewUserMessage("hi")}), false},
		{"messages snapshot invalid message", NewMessagesSnapshotEvent(messages.List{&messages.ToolMessage{BaseMessage: messages.BaseMessage{ID: "x", Role: messages.RoleTool}}}), true},
		{"raw", NewRawEvent(map[string]any{"k": "v"}, WithSource("upstream")), false},
		{"custom", NewCustomEvent("progress", 0.5), false},
		{"custom without name", NewCustomEvent("", nil), true},
		{"nil base", &RunStartedEvent{ThreadID: "t", RunID: "r"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEventJSONWireFormat(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "run started",
			event: &RunStartedEvent{BaseEvent: &BaseEvent{EventType: EventTypeRunStarted}, ThreadID: "t1", RunID: "r1"},
			want:  `{"type":"RUN_STARTED","threadId":"t1","runId":"r1"}`,
		},
		{
			name:  "run finished with result",
			event: &RunFinishedEvent{BaseEvent: &BaseEvent{EventType: EventTypeRunFinished}, ThreadID: "t1", RunID: "r1", Result: "done"},
			want:  `{"type":"RUN_FINISHED","threadId":"t1","runId":"r1","result":"done"}`,
		},
		{
			name:  "tool call start",
			event: &ToolCallStartEvent{BaseEvent: &BaseEvent{EventType: EventTypeToolCallStart}, ToolCallID: "c1", ToolCallName: "search"},
			want:  `{"type":"TOOL_CALL_START","toolCallId":"c1","toolCallName":"search"}`,
		},
		{
			name: "state delta keeps explicit null",
			event: &StateDeltaEvent{BaseEvent: &BaseEvent{EventType: EventTypeStateDelta}, Delta: []JSONPatchOperation{
				{Op: "add", Path: "/a", Value: nil},
				{Op: "remove", Path: "/b"},
			}},
			want: `{"type":"STATE_DELTA","delta":[{"op":"add","path":"/a","value":null},{"op":"remove","path":"/b"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.event.ToJSON()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEventFromJSON(t *testing.T) {
	t.Run("decodes every type", func(t *testing.T) {
		inputs := map[EventType]string{
			EventTypeRunStarted:         `{"type":"RUN_STARTED","threadId":"t","runId":"r"}`,
			EventTypeRunFinished:        `{"type":"RUN_FINISHED","threadId":"t","runId":"r","result":{"n":1}}`,
			EventTypeRunError:           `{"type":"RUN_ERROR","message":"boom","code":"E"}`,
			EventTypeStepStarted:        `{"type":"STEP_STARTED","stepName":"s"}`,
			EventTypeStepFinished:       `{"type":"STEP_FINISHED","stepName":"s"}`,
			EventTypeTextMessageStart:   `{"type":"TEXT_MESSAGE_START","messageId":"m","role":"assistant"}`,
			EventTypeTextMessageContent: `{"type":"TEXT_MESSAGE_CONTENT","messageId":"m","delta":"x"}`,
			EventTypeTextMessageEnd:     `{"type":"TEXT_MESSAGE_END","messageId":"m"}`,
			EventTypeTextMessageChunk:   `{"type":"TEXT_MESSAGE_CHUNK","messageId":"m","delta":"x"}`,
			EventTypeToolCallStart:      `{"type":"TOOL_CALL_START","toolCallId":"c","toolCallName":"f","parentMessageId":"m"}`,
			EventTypeToolCallArgs:       `{"type":"TOOL_CALL_ARGS","toolCallId":"c","delta":"{}"}`,
			EventTypeToolCallEnd:        `{"type":"TOOL_CALL_END","toolCallId":"c"}`,
			EventTypeToolCallResult:     `{"type":"TOOL_CALL_RESULT","messageId":"m2","toolCallId":"c","content":"ok","role":"tool"}`,
			EventTypeToolCallChunk:      `{"type":"TOOL_CALL_CHUNK","toolCallId":"c","toolCallName":"f","parentMessageId":"m","delta":"{}"}`,
			EventTypeThinkingStart:      `{"type":"THINKING_START","title":"plan"}`,
			EventTypeThinkingEnd:        `{"type":"THINKING_END"}`,
			EventTypeStateSnapshot:      `{"type":"STATE_SNAPSHOT","snapshot":{"counter":1}}`,
			EventTypeStateDelta:         `{"type":"STATE_DELTA","delta":[{"op":"replace","path":"/counter","value":2}]}`,
			EventTypeMessagesSnapshot:   `{"type":"MESSAGES_SNAPSHOT","messages":[{"id":"u","role":"user","content":"hi"}]}`,
			EventTypeRaw:                `{"type":"RAW","event":{"x":1},"source":"s"}`,
			EventTypeCustom:             `{"type":"CUSTOM","name":"n","value":[1,2]}`,

			EventTypeThinkingTextMessageStart:   `{"type":"THINKING_TEXT_MESSAGE_START"}`,
			EventTypeThinkingTextMessageContent: `{"type":"THINKING_TEXT_MESSAGE_CONTENT","delta":"hmm"}`,
			EventTypeThinkingTextMessageEnd:     `{"type":"THINKING_TEXT_MESSAGE_END"}`,
		}
		require.Len(t, inputs, len(AllEventTypes()))

		for eventType, input := range inputs {
			event, err := EventFromJSON([]byte(input))
			require.NoError(t, err, eventType)
			assert.Equal(t, eventType, event.Type())
			assert.NoError(t, event.Validate(), eventType)
			assert.Empty(t, event.GetBaseEvent().Extensions, eventType)

			out, err := event.ToJSON()
			require.NoError(t, err)
			assert.JSONEq(t, input, string(out), eventType)
		}
	})

	t.Run("preserves extension fields", func(t *testing.T) {
		input := `{"type":"TEXT_MESSAGE_CONTENT","messageId":"m","delta":"x","vendor.trace":{"span":"abc"},"priority":3}`
		event, err := EventFromJSON([]byte(input))
		require.NoError(t, err)

		base := event.GetBaseEvent()
		require.Len(t, base.Extensions, 2)
		assert.JSONEq(t, `{"span":"abc"}`, string(base.Extensions["vendor.trace"]))
		assert.NoError(t, event.Validate())

		out, err := event.ToJSON()
		require.NoError(t, err)
		assert.JSONEq(t, input, string(out))
	})

	t.Run("messages snapshot decodes role variants", func(t *testing.T) {
		event, err := EventFromJSON([]byte(`{"type":"MESSAGES_SNAPSHOT","messages":[{"id":"a","role":"assistant","content":"hi"},{"id":"t","role":"tool","content":"r","toolCallId":"c"}]}`))
		require.NoError(t, err)
		snapshot := event.(*MessagesSnapshotEvent)
		require.Len(t, snapshot.Messages, 2)
		assert.IsType(t, &messages.AssistantMessage{}, snapshot.Messages[0])
		assert.IsType(t, &messages.ToolMessage{}, snapshot.Messages[1])
	})

	errorCases := map[string]string{
		"invalid json": `{"type":`,
		"missing type": `{"messageId":"m"}`,
		"unknown type": `{"type":"REASONING_START"}`,
		"wrong shape":  `{"type":"STATE_DELTA","delta":"nope"}`,
	}
	for name, input := range errorCases {
		t.Run(name, func(t *testing.T) {
			_, err := EventFromJSON([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestApplyPatchIsAllOrNothing(t *testing.T) {
	doc := []byte(`{"counter":42}`)

	out, err := ApplyPatch(doc, []JSONPatchOperation{{Op: "replace", Path: "/counter", Value: 43}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"counter":43}`, string(out))

	_, err = ApplyPatch(doc, []JSONPatchOperation{
		{Op: "add", Path: "/other", Value: true},
		{Op: "remove", Path: "/missing"},
	})
	require.Error(t, err)
	assert.JSONEq(t, `{"counter":42}`, string(doc))

	out, err = ApplyPatch(nil, []JSONPatchOperation{{Op: "add", Path: "/a", Value: 1}})
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, float64(1), decoded["a"])
}
