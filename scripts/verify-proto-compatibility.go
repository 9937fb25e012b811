// Protocol Buffer Compatibility Verification Script
//
// This script verifies that every event type survives the protobuf codec
// unchanged and keeps the camelCase wire keys shared with the other SDKs.
//
// Run with: go run scripts/verify-proto-compatibility.go

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/encoding"
	"github.com/ag-ui/go-engine/pkg/messages"
)

func main() {
	fmt.Println("🔍 Verifying Protocol Buffer Compatibility...")
	fmt.Println(strings.Repeat("=", 50))

	samples := sampleEvents()

	// Test 1: Verify all event types are covered
	fmt.Println("\n1. Testing Event Types...")
	testEventTypes(samples)

	// Test 2: Verify JSON field naming compatibility
	fmt.Println("\n2. Testing JSON Field Naming...")
	testJSONFieldNaming()

	// Test 3: Verify protobuf round trips
	fmt.Println("\n3. Testing Protobuf Serialization...")
	testRoundTrips(samples)

	fmt.Println("\n✅ All compatibility tests passed!")
}

func sampleEvents() []events.Event {
	parent := "run-0"
	started := events.NewRunStartedEvent("thread-1", "run-1")
	started.ParentRunID = &parent
	return []events.Event{
		started,
		events.NewRunFinishedEvent("thread-1", "run-1").WithResult(map[string]any{"ok": true}),
		events.NewRunErrorEvent("boom", events.WithErrorCode("E1")),
		events.NewStepStartedEvent("plan"),
		events.NewStepFinishedEvent("plan"),
		events.NewTextMessageStartEvent("msg-1", events.WithRole("assistant")),
		events.NewTextMessageContentEvent("msg-1", "Hello"),
		events.NewTextMessageEndEvent("msg-1"),
		events.NewTextMessageChunkEvent("msg-2", "chunk"),
		events.NewToolCallStartEvent("tool-1", "search", events.WithParentMessageID("msg-1")),
		events.NewToolCallArgsEvent("tool-1", `{"q":"go"}`),
		events.NewToolCallEndEvent("tool-1"),
		events.NewToolCallResultEvent("msg-3", "tool-1", "found"),
		events.NewToolCallChunkEvent("tool-2", "lookup", `{}`).WithChunkParentMessageID("msg-1"),
		events.NewThinkingStartEvent("plan"),
		events.NewThinkingTextMessageStartEvent(),
		events.NewThinkingTextMessageContentEvent("considering"),
		events.NewThinkingTextMessageEndEvent(),
		events.NewThinkingEndEvent(),
		events.NewStateSnapshotEvent(map[string]any{"counter": 1.0}),
		events.NewStateDeltaEvent([]events.JSONPatchOperation{{Op: "replace", Path: "/counter", Value: 2.0}}),
		events.NewMessagesSnapshotEvent(messages.List{messages.NewUserMessage("hi")}),
		events.NewRawEvent(map[string]any{"vendor": "x"}, events.WithSource("upstream")),
		events.NewCustomEvent("ping", 1.0),
	}
}

func testEventTypes(samples []events.Event) {
	seen := make(map[events.EventType]bool)
	for _, event := range samples {
		seen[event.Type()] = true
	}
	fmt.Printf("   - Checking %d event types...\n", len(seen))
	for _, event := range samples {
		if _, err := events.NewEvent(event.Type()); err != nil {
			log.Fatalf("   ❌ Event type %s is not constructible: %v", event.Type(), err)
		}
	}
	fmt.Printf("   ✅ All %d event types are known\n", len(seen))
}

func testJSONFieldNaming() {
	event := events.NewToolCallStartEvent("tool-123", "test_function", events.WithParentMessageID("msg-456"))
	data, err := event.ToJSON()
	if err != nil {
		log.Fatalf("   ❌ Failed to marshal to JSON: %v", err)
	}

	for _, field := range []string{"type", "toolCallId", "toolCallName", "parentMessageId"} {
		if !gjson.GetBytes(data, field).Exists() {
			log.Fatalf("   ❌ Missing expected field in JSON: %s", field)
		}
	}
	fmt.Println("   ✅ JSON uses camelCase field names")
}

func testRoundTrips(samples []events.Event) {
	codec := encoding.NewProtobuf()
	for _, event := range samples {
		data, err := codec.Encode(event)
		if err != nil {
			log.Fatalf("   ❌ Failed to encode %s: %v", event.Type(), err)
		}
		decoded, err := codec.Decode(data)
		if err != nil {
			log.Fatalf("   ❌ Failed to decode %s: %v", event.Type(), err)
		}

		want, _ := event.ToJSON()
		got, _ := decoded.ToJSON()
		if !jsonEqual(want, got) {
			log.Fatalf("   ❌ %s changed in transit:\n      want %s\n      got  %s", event.Type(), want, got)
		}
	}
	fmt.Printf("   ✅ %d events survive the protobuf codec\n", len(samples))
}

func jsonEqual(a, b []byte) bool {
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return bytes.Equal(a, b)
	}
	xa, _ := json.Marshal(x)
	ya, _ := json.Marshal(y)
	return bytes.Equal(xa, ya)
}
