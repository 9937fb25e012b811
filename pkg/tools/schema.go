package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a compiled parameter schema.
type Schema struct {
	raw      json.RawMessage
	compiled *validator.Schema
}

// CompileSchema compiles a JSON Schema document. An empty document accepts
// any arguments.
func CompileSchema(raw json.RawMessage) (*Schema, error) {
	s := &Schema{raw: raw}
	if len(bytes.TrimSpace(raw)) == 0 {
		return s, nil
	}

	doc, err := validator.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := validator.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	s.compiled, err = c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}

// Raw returns the schema document.
func (s *Schema) Raw() json.RawMessage {
	return s.raw
}

// ValidateArguments checks a JSON-encoded argument object. Empty arguments
// are treated as {}.
func (s *Schema) ValidateArguments(args string) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	if len(bytes.TrimSpace([]byte(args))) == 0 {
		args = "{}"
	}
	value, err := validator.UnmarshalJSON(bytes.NewReader([]byte(args)))
	if err != nil {
		return fmt.Errorf("%w: arguments are not valid JSON: %v", ErrInvalidParameters, err)
	}
	if err := s.compiled.Validate(value); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return nil
}

// GenerateSchema derives a parameter schema from the json and jsonschema
// struct tags of T.
func GenerateSchema[T any]() (json.RawMessage, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	var zero T
	schema := reflector.Reflect(zero)

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for type %T: %w", zero, err)
	}
	return json.RawMessage(data), nil
}
