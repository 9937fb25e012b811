/*
Package messages defines the conversation model shared by events, requests and
the state synchronizer.

# Message Types

A Message is one of five role-specific structs:

  - DeveloperMessage: developer instructions (content)
  - SystemMessage: system instructions (content)
  - UserMessage: user input; content is plain text or content blocks
  - AssistantMessage: agent output; optional content and optional tool calls
  - ToolMessage: a tool result bound to toolCallId, with an optional error

Role-specific required fields are checked by each type's Validate method, so a
tool message without toolCallId or a user message with an unknown content block
is rejected without inspecting the role at runtime.

# Wire Format

Messages serialize with camelCase keys compatible with every AG-UI SDK:

	{"id":"m1","role":"assistant","toolCalls":[{"id":"c1","type":"function",
	  "function":{"name":"search","arguments":"{\"q\":\"go\"}"}}]}

List decodes polymorphically by reading the "role" field of each element:

	var history messages.List
	if err := json.Unmarshal(data, &history); err != nil {
		return err
	}

# Ephemeral Messages

Messages marked with MarkEphemeral are held by the caller only. They are never
serialized into a request and survive MESSAGES_SNAPSHOT replacement in their
relative position (see package state).
*/
package messages
