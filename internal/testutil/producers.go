package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
)

// Collect reads stream until io.EOF and closes it. Events read before an
// error are returned with the error.
func Collect(ctx context.Context, stream core.EventStream) ([]events.Event, error) {
	defer stream.Close()
	var out []events.Event
	for {
		event, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, event)
	}
}

// Types returns the type of each event.
func Types(evts []events.Event) []events.EventType {
	out := make([]events.EventType, len(evts))
	for i, event := range evts {
		out[i] = event.Type()
	}
	return out
}

// ScriptedProducer replays one script per run and records every request it
// receives. Extra runs beyond the scripts fail.
type ScriptedProducer struct {
	mu       sync.Mutex
	scripts  [][]events.Event
	requests []*core.RunRequest
}

// NewScriptedProducer returns a producer that answers the n-th run with
// scripts[n].
func NewScriptedProducer(scripts ...[]events.Event) *ScriptedProducer {
	return &ScriptedProducer{scripts: scripts}
}

// Run implements core.EventProducer.
func (p *ScriptedProducer) Run(ctx context.Context, req *core.RunRequest) (core.EventStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.requests)
	p.requests = append(p.requests, req.Clone())
	if n >= len(p.scripts) {
		return nil, fmt.Errorf("no script for run %d", n+1)
	}
	return core.SliceStream(p.scripts[n]...), nil
}

// Requests returns the requests received so far.
func (p *ScriptedProducer) Requests() []*core.RunRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*core.RunRequest(nil), p.requests...)
}
