package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ContentPart is one block of structured user content.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	// Binary parts reference their payload by one of URL, ID or inline Data.
	MimeType string `json:"mimeType,omitempty"`
	URL      string `json:"url,omitempty"`
	ID       string `json:"id,omitempty"`
	Data     string `json:"data,omitempty"`
	Filename string `json:"filename,omitempty"`
}

const (
	ContentPartText   = "text"
	ContentPartBinary = "binary"
)

// Content is either plain text or a list of content blocks. On the wire it
// is a JSON string or a JSON array respectively.
type Content struct {
	Text  string
	Parts []ContentPart

	set bool
}

// TextContent returns plain text content.
func TextContent(text string) Content {
	return Content{Text: text, set: true}
}

// PartsContent returns structured content.
func PartsContent(parts ...ContentPart) Content {
	if parts == nil {
		parts = []ContentPart{}
	}
	return Content{Parts: parts, set: true}
}

// Present reports whether the content was given at all. An empty string
// is present; a missing or null field is not.
func (c Content) Present() bool {
	return c.set || c.Text != "" || c.Parts != nil
}

// IsStructured reports whether the content is a list of blocks.
func (c Content) IsStructured() bool {
	return c.Parts != nil
}

// String flattens the content to text, joining text blocks.
func (c Content) String() string {
	if !c.IsStructured() {
		return c.Text
	}
	var buf bytes.Buffer
	for _, p := range c.Parts {
		if p.Type == ContentPartText {
			buf.WriteString(p.Text)
		}
	}
	return buf.String()
}

// Validate checks every content block.
func (c Content) Validate() error {
	for i, p := range c.Parts {
		switch p.Type {
		case ContentPartText:
		case ContentPartBinary:
			if p.MimeType == "" {
				return fmt.Errorf("content part %d: binary part requires mimeType", i)
			}
			if p.URL == "" && p.ID == "" && p.Data == "" {
				return fmt.Errorf("content part %d: binary part requires one of url, id or data", i)
			}
		default:
			return fmt.Errorf("content part %d: unknown type %q", i, p.Type)
		}
	}
	return nil
}

func (c Content) clone() Content {
	if c.Parts == nil {
		return c
	}
	return Content{Text: c.Text, Parts: append([]ContentPart{}, c.Parts...), set: c.set}
}

// MarshalJSON implements json.Marshaler
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsStructured() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*c = Content{}
		return nil
	case trimmed[0] == '[':
		parts := []ContentPart{}
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return fmt.Errorf("failed to decode content parts: %w", err)
		}
		*c = Content{Parts: parts, set: true}
		return nil
	default:
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return fmt.Errorf("content must be a string or an array: %w", err)
		}
		*c = Content{Text: text, set: true}
		return nil
	}
}
