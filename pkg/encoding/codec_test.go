package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/messages"
)

func sampleEvents() []events.Event {
	return []events.Event{
		events.NewRunStartedEvent("t", "r"),
		events.NewTextMessageStartEvent("m", events.WithRole("assistant")),
		events.NewTextMessageContentEvent("m", "héllo"),
		events.NewToolCallStartEvent("c", "search", events.WithParentMessageID("m")),
		events.NewStateSnapshotEvent(map[string]any{"counter": 42, "tags": []any{"a", "b"}}),
		events.NewStateDeltaEvent([]events.JSONPatchOperation{{Op: "replace", Path: "/counter", Value: 43}}),
		events.NewMessagesSnapshotEvent(messages.List{messages.NewUserMessage("hi")}),
		events.NewRunFinishedEvent("t", "r").WithResult(map[string]any{"ok": true}),
	}
}

func TestCodecsRoundTrip(t *testing.T) {
	for _, codec := range []Codec{NewJSON(), NewProtobuf()} {
		t.Run(codec.ContentType(), func(t *testing.T) {
			for _, event := range sampleEvents() {
				data, err := codec.Encode(event)
				require.NoError(t, err)

				decoded, err := codec.Decode(data)
				require.NoError(t, err)
				assert.Equal(t, event.Type(), decoded.Type())

				want, err := event.ToJSON()
				require.NoError(t, err)
				got, err := decoded.ToJSON()
				require.NoError(t, err)
				assert.JSONEq(t, string(want), string(got))
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := NewJSON().Decode([]byte(`{"type":"NOPE"}`))
	var encErr *core.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "json", encErr.Format)

	_, err = NewProtobuf().Decode([]byte{0xff, 0xff})
	assert.ErrorAs(t, err, &encErr)
}

func TestForContentType(t *testing.T) {
	codec, err := ForContentType("application/json; charset=utf-8")
	require.NoError(t, err)
	assert.IsType(t, JSONCodec{}, codec)

	codec, err = ForContentType("application/x-protobuf")
	require.NoError(t, err)
	assert.IsType(t, ProtoCodec{}, codec)

	_, err = ForContentType("text/plain")
	assert.Error(t, err)
}

func TestStructHelpers(t *testing.T) {
	req := &core.RunRequest{ThreadID: "t", RunID: "r", State: map[string]any{"n": 1.5}}
	s, err := ToStruct(req)
	require.NoError(t, err)
	assert.Equal(t, "t", s.GetFields()["threadId"].GetStringValue())

	var back core.RunRequest
	require.NoError(t, FromStruct(s, &back))
	assert.Equal(t, "r", back.RunID)
	assert.Equal(t, map[string]any{"n": 1.5}, back.State)
}
