package encoding

import (
	"encoding/json"
	"fmt"
	"mime"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
)

// Media types understood by ForContentType.
const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
)

// Codec converts single events to and from a wire format.
type Codec interface {
	ContentType() string
	Encode(event events.Event) ([]byte, error)
	Decode(data []byte) (events.Event, error)
}

// JSONCodec encodes events as their canonical camelCase JSON.
type JSONCodec struct{}

// NewJSON returns the JSON codec.
func NewJSON() JSONCodec { return JSONCodec{} }

// ContentType implements Codec.
func (JSONCodec) ContentType() string { return ContentTypeJSON }

// Encode implements Codec.
func (JSONCodec) Encode(event events.Event) ([]byte, error) {
	data, err := event.ToJSON()
	if err != nil {
		return nil, &core.EncodingError{Format: "json", EventType: string(event.Type()), Err: err}
	}
	return data, nil
}

// Decode implements Codec.
func (JSONCodec) Decode(data []byte) (events.Event, error) {
	event, err := events.EventFromJSON(data)
	if err != nil {
		return nil, &core.EncodingError{Format: "json", EventType: "unknown", Err: err}
	}
	return event, nil
}

// ProtoCodec encodes events as google.protobuf.Struct messages carrying the
// same fields as the JSON form.
type ProtoCodec struct{}

// NewProtobuf returns the protobuf codec.
func NewProtobuf() ProtoCodec { return ProtoCodec{} }

// ContentType implements Codec.
func (ProtoCodec) ContentType() string { return ContentTypeProtobuf }

// Encode implements Codec.
func (ProtoCodec) Encode(event events.Event) ([]byte, error) {
	s, err := EventToStruct(event)
	if err != nil {
		return nil, err
	}
	data, err := proto.Marshal(s)
	if err != nil {
		return nil, &core.EncodingError{Format: "protobuf", EventType: string(event.Type()), Err: err}
	}
	return data, nil
}

// Decode implements Codec.
func (ProtoCodec) Decode(data []byte) (events.Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, &core.EncodingError{Format: "protobuf", EventType: "unknown", Err: err}
	}
	return EventFromStruct(&s)
}

// EventToStruct converts an event to a protobuf Struct.
func EventToStruct(event events.Event) (*structpb.Struct, error) {
	data, err := event.ToJSON()
	if err != nil {
		return nil, &core.EncodingError{Format: "protobuf", EventType: string(event.Type()), Err: err}
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, &core.EncodingError{Format: "protobuf", EventType: string(event.Type()), Err: err}
	}
	return s, nil
}

// EventFromStruct converts a protobuf Struct back to an event.
func EventFromStruct(s *structpb.Struct) (events.Event, error) {
	eventType := s.GetFields()["type"].GetStringValue()
	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, &core.EncodingError{Format: "protobuf", EventType: eventType, Err: err}
	}
	event, err := events.EventFromJSON(data)
	if err != nil {
		return nil, &core.EncodingError{Format: "protobuf", EventType: eventType, Err: err}
	}
	return event, nil
}

// ToStruct converts any JSON-serializable value to a protobuf Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// FromStruct decodes a protobuf Struct into v through its JSON form.
func FromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ForContentType returns the codec for a media type, ignoring parameters.
func ForContentType(contentType string) (Codec, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("invalid content type %q: %w", contentType, err)
	}
	switch strings.ToLower(mediaType) {
	case ContentTypeJSON, "text/json":
		return JSONCodec{}, nil
	case ContentTypeProtobuf, "application/protobuf", "application/vnd.google.protobuf":
		return ProtoCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
}
