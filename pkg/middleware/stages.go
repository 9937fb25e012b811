package middleware

import (
	"context"
	"sync"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
)

// Map returns a stateless stage that replaces each event with fn(event).
// A nil result drops the event.
func Map(fn func(events.Event) events.Event) Middleware {
	return Func(func(ctx context.Context, req *core.RunRequest, next core.EventProducer) (core.EventStream, error) {
		upstream, err := next.Run(ctx, req)
		if err != nil {
			return nil, err
		}
		return Transform(upstream, func(_ context.Context, event events.Event) ([]events.Event, error) {
			if out := fn(event); out != nil {
				return []events.Event{out}, nil
			}
			return nil, nil
		}, nil), nil
	})
}

// ToolFilter selects tool calls by name. When Allow is non-empty only the
// listed tools pass; names in Deny never pass.
type ToolFilter struct {
	Allow []string
	Deny  []string
}

func (f ToolFilter) allows(name string) bool {
	for _, denied := range f.Deny {
		if denied == name {
			return false
		}
	}
	if len(f.Allow) == 0 {
		return true
	}
	for _, allowed := range f.Allow {
		if allowed == name {
			return true
		}
	}
	return false
}

// FilterToolCalls drops the start, args, end, chunk and result events of
// tool calls whose name the filter rejects.
func FilterToolCalls(filter ToolFilter) Middleware {
	return Func(func(ctx context.Context, req *core.RunRequest, next core.EventProducer) (core.EventStream, error) {
		upstream, err := next.Run(ctx, req)
		if err != nil {
			return nil, err
		}
		blocked := make(map[string]bool)
		lastChunk := ""
		return Transform(upstream, func(_ context.Context, event events.Event) ([]events.Event, error) {
			switch e := event.(type) {
			case *events.ToolCallStartEvent:
				if !filter.allows(e.ToolCallName) {
					blocked[e.ToolCallID] = true
					return nil, nil
				}
			case *events.ToolCallArgsEvent:
				if blocked[e.ToolCallID] {
					return nil, nil
				}
			case *events.ToolCallEndEvent:
				if blocked[e.ToolCallID] {
					return nil, nil
				}
			case *events.ToolCallResultEvent:
				if blocked[e.ToolCallID] {
					return nil, nil
				}
			case *events.ToolCallChunkEvent:
				id := e.ID()
				if id == "" {
					id = lastChunk
				} else {
					lastChunk = id
				}
				if name := e.Name(); name != "" && !filter.allows(name) {
					blocked[id] = true
				}
				if blocked[id] {
					return nil, nil
				}
			}
			return []events.Event{event}, nil
		}, nil), nil
	})
}

// Tally is a stateful stage counting the events of every run it wraps.
type Tally struct {
	mu     sync.Mutex
	counts map[events.EventType]int
	runs   int
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[events.EventType]int)}
}

// Run implements Middleware.
func (t *Tally) Run(ctx context.Context, req *core.RunRequest, next core.EventProducer) (core.EventStream, error) {
	upstream, err := next.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.runs++
	t.mu.Unlock()
	return Transform(upstream, func(_ context.Context, event events.Event) ([]events.Event, error) {
		t.mu.Lock()
		t.counts[event.Type()]++
		t.mu.Unlock()
		return []events.Event{event}, nil
	}, nil), nil
}

// Count returns how many events of type were seen.
func (t *Tally) Count(eventType events.EventType) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[eventType]
}

// Counts returns a copy of all counts.
func (t *Tally) Counts() map[events.EventType]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[events.EventType]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Total returns the number of events seen.
func (t *Tally) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, v := range t.counts {
		total += v
	}
	return total
}

// Runs returns the number of runs started through the stage.
func (t *Tally) Runs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}
