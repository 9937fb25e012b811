// Package state keeps the canonical state document and message list of a run.
//
// A Synchronizer is seeded from the last known state and messages of a
// thread. STATE_SNAPSHOT replaces the document, STATE_DELTA applies a JSON
// Patch (RFC 6902) atomically and MESSAGES_SNAPSHOT replaces the message list
// while keeping ephemeral messages held by the caller.
//
// Example usage:
//
//	import "github.com/ag-ui/go-engine/pkg/state"
//
//	sync := state.NewSynchronizer(map[string]any{"counter": 42}, nil)
//	err := sync.ApplyDelta([]events.JSONPatchOperation{
//		{Op: "replace", Path: "/counter", Value: 43},
//	})
//
//	// Get current state
//	current := sync.State()
package state
