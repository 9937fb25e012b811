package events

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// NewEvent returns an empty event of the given type, ready to be decoded into.
func NewEvent(eventType EventType) (Event, error) {
	base := &BaseEvent{EventType: eventType}
	switch eventType {
	case EventTypeRunStarted:
		return &RunStartedEvent{BaseEvent: base}, nil
	case EventTypeRunFinished:
		return &RunFinishedEvent{BaseEvent: base}, nil
	case EventTypeRunError:
		return &RunErrorEvent{BaseEvent: base}, nil
	case EventTypeStepStarted:
		return &StepStartedEvent{BaseEvent: base}, nil
	case EventTypeStepFinished:
		return &StepFinishedEvent{BaseEvent: base}, nil
	case EventTypeTextMessageStart:
		return &TextMessageStartEvent{BaseEvent: base}, nil
	case EventTypeTextMessageContent:
		return &TextMessageContentEvent{BaseEvent: base}, nil
	case EventTypeTextMessageEnd:
		return &TextMessageEndEvent{BaseEvent: base}, nil
	case EventTypeTextMessageChunk:
		return &TextMessageChunkEvent{BaseEvent: base}, nil
	case EventTypeToolCallStart:
		return &ToolCallStartEvent{BaseEvent: base}, nil
	case EventTypeToolCallArgs:
		return &ToolCallArgsEvent{BaseEvent: base}, nil
	case EventTypeToolCallEnd:
		return &ToolCallEndEvent{BaseEvent: base}, nil
	case EventTypeToolCallResult:
		return &ToolCallResultEvent{BaseEvent: base}, nil
	case EventTypeToolCallChunk:
		return &ToolCallChunkEvent{BaseEvent: base}, nil
	case EventTypeThinkingStart:
		return &ThinkingStartEvent{BaseEvent: base}, nil
	case EventTypeThinkingEnd:
		return &ThinkingEndEvent{BaseEvent: base}, nil
	case EventTypeThinkingTextMessageStart:
		return &ThinkingTextMessageStartEvent{BaseEvent: base}, nil
	case EventTypeThinkingTextMessageContent:
		return &ThinkingTextMessageContentEvent{BaseEvent: base}, nil
	case EventTypeThinkingTextMessageEnd:
		return &ThinkingTextMessageEndEvent{BaseEvent: base}, nil
	case EventTypeStateSnapshot:
		return &StateSnapshotEvent{BaseEvent: base}, nil
	case EventTypeStateDelta:
		return &StateDeltaEvent{BaseEvent: base}, nil
	case EventTypeMessagesSnapshot:
		return &MessagesSnapshotEvent{BaseEvent: base}, nil
	case EventTypeRaw:
		return &RawEvent{BaseEvent: base}, nil
	case EventTypeCustom:
		return &CustomEvent{BaseEvent: base}, nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// EventFromJSON parses an event from JSON data. Top-level fields that are not
// part of the event's schema are kept in BaseEvent.Extensions.
func EventFromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("failed to parse event: invalid JSON")
	}
	typ := gjson.GetBytes(data, "type")
	if !typ.Exists() {
		return nil, fmt.Errorf("failed to parse event: type field is required")
	}

	event, err := NewEvent(EventType(typ.String()))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", typ.String(), err)
	}

	known := knownFields(event)
	var extensions map[string]json.RawMessage
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		if !known[key.String()] {
			if extensions == nil {
				extensions = make(map[string]json.RawMessage)
			}
			extensions[key.String()] = json.RawMessage(value.Raw)
		}
		return true
	})
	event.GetBaseEvent().Extensions = extensions

	return event, nil
}

// marshalEvent encodes e and merges its extension fields back in. Schema
// fields take precedence over an extension with the same name.
func marshalEvent(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", e.Type(), err)
	}
	base := e.GetBaseEvent()
	if base == nil || len(base.Extensions) == 0 {
		return data, nil
	}

	keys := make([]string, 0, len(base.Extensions))
	for k := range base.Extensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := escapePath(k)
		if gjson.GetBytes(data, path).Exists() {
			continue
		}
		data, err = sjson.SetRawBytes(data, path, base.Extensions[k])
		if err != nil {
			return nil, fmt.Errorf("failed to write extension field %q: %w", k, err)
		}
	}
	return data, nil
}

var pathEscaper = strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`, ":", `\:`)

func escapePath(key string) string {
	return pathEscaper.Replace(key)
}

var knownFieldCache sync.Map // reflect.Type -> map[string]bool

func knownFields(e Event) map[string]bool {
	t := reflect.TypeOf(e)
	if cached, ok := knownFieldCache.Load(t); ok {
		return cached.(map[string]bool)
	}
	fields := make(map[string]bool)
	collectJSONFields(t, fields)
	knownFieldCache.Store(t, fields)
	return fields
}

func collectJSONFields(t reflect.Type, fields map[string]bool) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" {
			collectJSONFields(f.Type, fields)
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		fields[name] = true
	}
}
