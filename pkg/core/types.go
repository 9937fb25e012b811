package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/messages"
)

// Tool describes a capability the caller offers to the agent. Parameters is
// the JSON Schema of the tool's argument object.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Context is a piece of caller-supplied context for the agent.
type Context struct {
	Description string `json:"description"`
	Value       string `json:"value"`
}

// RunRequest is the input of a single run. Once submitted it is never
// modified; producers and middleware receive their own copy.
type RunRequest struct {
	ThreadID       string        `json:"threadId"`
	RunID          string        `json:"runId"`
	ParentRunID    *string       `json:"parentRunId,omitempty"`
	State          any           `json:"state"`
	Messages       messages.List `json:"messages"`
	Tools          []Tool        `json:"tools"`
	Context        []Context     `json:"context"`
	ForwardedProps any           `json:"forwardedProps"`
}

// MarshalJSON implements json.Marshaler. Absent lists are written as [] for
// servers that require them.
func (r RunRequest) MarshalJSON() ([]byte, error) {
	type wire RunRequest
	w := wire(r)
	if w.Tools == nil {
		w.Tools = []Tool{}
	}
	if w.Context == nil {
		w.Context = []Context{}
	}
	return json.Marshal(w)
}

// Validate checks the request shape.
func (r *RunRequest) Validate() error {
	if err := r.Messages.Validate(); err != nil {
		return fmt.Errorf("invalid run request: %w", err)
	}
	seen := make(map[string]bool, len(r.Tools))
	for i, tool := range r.Tools {
		if tool.Name == "" {
			return fmt.Errorf("invalid run request: tool %d has no name", i)
		}
		if seen[tool.Name] {
			return fmt.Errorf("invalid run request: duplicate tool %q", tool.Name)
		}
		seen[tool.Name] = true
		if len(tool.Parameters) > 0 && !json.Valid(tool.Parameters) {
			return fmt.Errorf("invalid run request: tool %q parameters are not valid JSON", tool.Name)
		}
	}
	return nil
}

// Clone returns a deep copy of the request. State and forwarded props are
// copied through their JSON form.
func (r *RunRequest) Clone() *RunRequest {
	if r == nil {
		return nil
	}
	out := *r
	if r.ParentRunID != nil {
		parent := *r.ParentRunID
		out.ParentRunID = &parent
	}
	out.State = CloneJSON(r.State)
	out.ForwardedProps = CloneJSON(r.ForwardedProps)
	out.Messages = r.Messages.Clone()
	if r.Tools != nil {
		out.Tools = make([]Tool, len(r.Tools))
		for i, t := range r.Tools {
			out.Tools[i] = Tool{Name: t.Name, Description: t.Description, Parameters: append(json.RawMessage(nil), t.Parameters...)}
		}
	}
	if r.Context != nil {
		out.Context = append([]Context(nil), r.Context...)
	}
	return &out
}

// FindTool returns the tool with the given name.
func (r *RunRequest) FindTool(name string) (Tool, bool) {
	for _, t := range r.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// CloneJSON deep-copies a JSON tree made of maps, slices and scalars. Other
// values are copied through a JSON round trip.
func CloneJSON(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = CloneJSON(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = CloneJSON(item)
		}
		return out
	case string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return t
	default:
		out, err := NormalizeJSON(t)
		if err != nil {
			return t
		}
		return out
	}
}

// maxExactInt is the largest magnitude up to which float64 holds every
// integer.
const maxExactInt = 1 << 53

// DecodeJSON decodes a single JSON value into a tree of maps, slices and
// scalars. Numbers become float64, except integers beyond float64 precision,
// which stay json.Number so they encode back unchanged.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	return fromNumbers(out), nil
}

// NormalizeJSON converts v to the tree DecodeJSON would produce for its
// encoding, so Go ints and structs compare equal to decoded documents.
func NormalizeJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return DecodeJSON(data)
}

func fromNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = fromNumbers(item)
		}
	case []any:
		for i, item := range t {
			t[i] = fromNumbers(item)
		}
	case json.Number:
		if !strings.ContainsAny(t.String(), ".eE") {
			i, err := t.Int64()
			if err != nil || i > maxExactInt || i < -maxExactInt {
				return t
			}
		}
		f, err := t.Float64()
		if err != nil {
			return t
		}
		return f
	}
	return v
}

// IdentityMode selects who assigns thread and run ids.
type IdentityMode int

const (
	// IdentityEager generates ids before the request is issued.
	IdentityEager IdentityMode = iota
	// IdentityDeferred leaves ids empty and adopts them from RUN_STARTED.
	IdentityDeferred
)

func (m IdentityMode) String() string {
	switch m {
	case IdentityEager:
		return "eager"
	case IdentityDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("IdentityMode(%d)", int(m))
	}
}

// RunIdentity is the thread and run ids of one run.
type RunIdentity struct {
	ThreadID string
	RunID    string
}

// Resolved reports whether both ids are known.
func (id RunIdentity) Resolved() bool {
	return id.ThreadID != "" && id.RunID != ""
}

// EventStream is a pull-based sequence of events. Next blocks until an event
// is available and returns io.EOF once the stream is exhausted.
type EventStream interface {
	Next(ctx context.Context) (events.Event, error)
	Close() error
}

// EventProducer runs an agent for a request and returns its event stream.
// Transports, middleware chains and in-process agents all implement it.
type EventProducer interface {
	Run(ctx context.Context, req *RunRequest) (EventStream, error)
}

// ProducerFunc adapts a function to EventProducer.
type ProducerFunc func(ctx context.Context, req *RunRequest) (EventStream, error)

// Run implements EventProducer.
func (f ProducerFunc) Run(ctx context.Context, req *RunRequest) (EventStream, error) {
	return f(ctx, req)
}
