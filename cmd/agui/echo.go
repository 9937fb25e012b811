package main

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/messages"
)

// echoAgent answers every run by streaming back the last user message word
// by word and counting turns in the state document.
type echoAgent struct{}

func (echoAgent) Run(_ context.Context, req *core.RunRequest) (core.EventStream, error) {
	text := "nothing to echo"
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if user, ok := req.Messages[i].(*messages.UserMessage); ok {
			text = user.Content.String()
			break
		}
	}

	id := uuid.NewString()
	out := []events.Event{
		events.NewRunStartedEvent(req.ThreadID, req.RunID),
		events.NewTextMessageStartEvent(id, events.WithRole(string(messages.RoleAssistant))),
	}
	words := strings.SplitAfter(text, " ")
	for _, w := range words {
		if w != "" {
			out = append(out, events.NewTextMessageContentEvent(id, w))
		}
	}
	out = append(out, events.NewTextMessageEndEvent(id), turnEvent(req.State))
	out = append(out, events.NewRunFinishedEvent(req.ThreadID, req.RunID))
	return core.SliceStream(out...), nil
}

// turnEvent bumps "turns" with a delta when the state is an object, and
// replaces the state otherwise.
func turnEvent(state any) events.Event {
	doc, ok := state.(map[string]any)
	if !ok {
		return events.NewStateSnapshotEvent(map[string]any{"turns": 1.0})
	}
	turns, _ := doc["turns"].(float64)
	return events.NewStateDeltaEvent([]events.JSONPatchOperation{
		{Op: "add", Path: "/turns", Value: turns + 1},
	})
}
