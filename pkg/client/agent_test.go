package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ag-ui/go-engine/internal/testutil"
	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/messages"
	"github.com/ag-ui/go-engine/pkg/state"
	"github.com/ag-ui/go-engine/pkg/tools"
)

// recorder logs every hook call in order.
type recorder struct {
	BaseSubscriber
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (r *recorder) OnRunInitialized(*RunContext) { r.add("initialized") }
func (r *recorder) OnEvent(_ *RunContext, e events.Event) Mutation {
	r.add("event:%s", e.Type())
	return Mutation{}
}
func (r *recorder) OnNewMessage(_ *RunContext, m messages.Message) { r.add("new:%s", m.GetID()) }
func (r *recorder) OnNewToolCall(_ *RunContext, c messages.ToolCall) {
	r.add("tool:%s", c.ID)
}
func (r *recorder) OnMessagesChanged(*RunContext, messages.List) { r.add("messages") }
func (r *recorder) OnStateChanged(*RunContext, any) { r.add("state") }
func (r *recorder) OnRunFinished(*RunContext, any) { r.add("finished") }
func (r *recorder) OnRunFailed(*RunContext, error) { r.add("failed") }
func (r *recorder) OnRunCancelled(*RunContext) { r.add("cancelled") }
func (r *recorder) OnRunFinalized(*RunContext) { r.add("finalized") }

func newTestAgent(t *testing.T, producer core.EventProducer, config Config, opts ...Option) *Agent {
	t.Helper()
	agent, err := NewAgent(producer, config, opts...)
	require.NoError(t, err)
	return agent
}

func TestNewAgent(t *testing.T) {
	producer := testutil.NewScriptedProducer()

	tests := []struct {
		name     string
		producer core.EventProducer
		config   Config
		opts     []Option
		wantErr  bool
		field    string
	}{
		{
			name:     "valid config",
			producer: producer,
			config:   Config{AgentID: "assistant"},
		},
		{
			name:     "deferred identity",
			producer: producer,
			config:   Config{Identity: "deferred"},
		},
		{
			name:     "nil producer",
			producer: nil,
			wantErr:  true,
			field:    "producer",
		},
		{
			name:     "unknown identity mode",
			producer: producer,
			config:   Config{Identity: "lazy"},
			wantErr:  true,
			field:    "Identity",
		},
		{
			name:     "negative tool rounds",
			producer: producer,
			config:   Config{MaxToolRounds: -1},
			wantErr:  true,
			field:    "MaxToolRounds",
		},
		{
			name:     "invalid seeded message",
			producer: producer,
			opts:     []Option{WithMessages(&messages.UserMessage{})},
			wantErr:  true,
			field:    "messages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, err := NewAgent(tt.producer, tt.config, tt.opts...)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.NotNil(t, agent)
				return
			}
			require.Error(t, err)
			var configErr *core.ConfigError
			require.True(t, errors.As(err, &configErr))
			assert.Equal(t, tt.field, configErr.Field)
		})
	}
}

func TestNewAgentThreadID(t *testing.T) {
	eager := newTestAgent(t, testutil.NewScriptedProducer(), Config{})
	assert.NotEmpty(t, eager.ThreadID())

	fixed := newTestAgent(t, testutil.NewScriptedProducer(), Config{ThreadID: "t"})
	assert.Equal(t, "t", fixed.ThreadID())

	deferred := newTestAgent(t, testutil.NewScriptedProducer(), Config{Identity: "deferred"})
	assert.Empty(t, deferred.ThreadID())
}

func TestRunHookOrder(t *testing.T) {
	producer := testutil.NewScriptedProducer(testutil.Run("t", "r", testutil.TextMessage("m1", "Hel", "lo")...))
	agent := newTestAgent(t, producer, Config{ThreadID: "t"})
	rec := &recorder{}

	result, err := agent.Run(context.Background(), RunParams{RunID: "r"}, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"initialized",
		"event:RUN_STARTED",
		"event:TEXT_MESSAGE_START",
		"new:m1",
		"messages",
		"event:TEXT_MESSAGE_CONTENT",
		"messages",
		"event:TEXT_MESSAGE_CONTENT",
		"messages",
		"event:TEXT_MESSAGE_END",
		"event:RUN_FINISHED",
		"finished",
		"finalized",
	}, rec.Calls())

	assert.Equal(t, StateFinished, result.State)
	assert.Equal(t, core.RunIdentity{ThreadID: "t", RunID: "r"}, result.Identity)

	msgs := agent.Messages()
	require.Len(t, msgs, 1)
	assistant, ok := msgs[0].(*messages.AssistantMessage)
	require.True(t, ok)
	assert.Equal(t, "Hello", assistant.TextContent())

	reqs := producer.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "t", reqs[0].ThreadID)
	assert.Equal(t, "r", reqs[0].RunID)
}

func TestDeferredIdentity(t *testing.T) {
	producer := testutil.NewScriptedProducer(
		testutil.Run("srv-thread", "srv-run-1"),
		testutil.Run("srv-thread", "srv-run-2"),
	)
	agent := newTestAgent(t, producer, Config{Identity: "deferred"})

	result, err := agent.Run(context.Background(), RunParams{})
	require.NoError(t, err)
	assert.Equal(t, core.RunIdentity{ThreadID: "srv-thread", RunID: "srv-run-1"}, result.Identity)
	assert.Equal(t, "srv-thread", agent.ThreadID())

	_, err = agent.Run(context.Background(), RunParams{})
	require.NoError(t, err)

	reqs := producer.Requests()
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[0].ThreadID)
	assert.Empty(t, reqs[0].RunID)
	assert.Equal(t, "srv-thread", reqs[1].ThreadID)
	assert.Empty(t, reqs[1].RunID)
}

func TestIdentityMismatch(t *testing.T) {
	producer := testutil.NewScriptedProducer(testutil.Run("t", "someone-else"))
	agent := newTestAgent(t, producer, Config{ThreadID: "t"})
	rec := &recorder{}

	result, err := agent.Run(context.Background(), RunParams{RunID: "r"}, rec)
	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)

	var seqErr *events.SequenceError
	require.True(t, errors.As(err, &seqErr))
	assert.Equal(t, events.RuleRunIdentity, seqErr.Rule)
	assert.Equal(t, 0, rec.count("event:RUN_STARTED"))
	assert.Equal(t, 1, rec.count("failed"))
}

func TestSequenceViolationFailsRun(t *testing.T) {
	producer := testutil.NewScriptedProducer(testutil.TextMessage("m1", "hi"))
	agent := newTestAgent(t, producer, Config{})

	result, err := agent.Run(context.Background(), RunParams{})
	var seqErr *events.SequenceError
	require.True(t, errors.As(err, &seqErr))
	assert.Equal(t, events.RuleFirstEvent, seqErr.Rule)
	assert.Equal(t, StateFailed, result.State)
	assert.Empty(t, agent.Messages())
}

func TestStreamEndsWithoutTerminal(t *testing.T) {
	script := testutil.Run("t", "r", testutil.TextMessage("m1", "hi")...)
	producer := testutil.NewScriptedProducer(script[:len(script)-1])
	agent := newTestAgent(t, producer, Config{ThreadID: "t"})

	_, err := agent.Run(context.Background(), RunParams{RunID: "r"})
	var seqErr *events.SequenceError
	require.True(t, errors.As(err, &seqErr))
	assert.Equal(t, events.RuleMissingTerminal, seqErr.Rule)
}

func TestRunErrorEvent(t *testing.T) {
	producer := testutil.NewScriptedProducer([]events.Event{
		events.NewRunStartedEvent("t", "r"),
		events.NewTextMessageStartEvent("m1", events.WithRole("assistant")),
		events.NewRunErrorEvent("model overloaded", events.WithErrorCode("OVERLOADED"), events.WithRunID("r")),
	})
	seed := messages.NewUserMessage("hi")
	agent := newTestAgent(t, producer, Config{ThreadID: "t"}, WithMessages(seed))
	rec := &recorder{}

	result, err := agent.Run(context.Background(), RunParams{RunID: "r"}, rec)
	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, "OVERLOADED", runErr.Code)
	assert.Equal(t, "model overloaded", runErr.Message)
	assert.Equal(t, "r", runErr.RunID)
	assert.Equal(t, StateFailed, result.State)

	assert.Equal(t, 1, rec.count("failed"))
	assert.Equal(t, 1, rec.count("finalized"))
	assert.Zero(t, rec.count("finished"))

	// a failed run leaves the conversation untouched
	msgs := agent.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, seed.ID, msgs[0].GetID())
}

func TestPatchErrorFailsRun(t *testing.T) {
	producer := testutil.NewScriptedProducer(testutil.Run("t", "r",
		events.NewStateDeltaEvent([]events.JSONPatchOperation{{Op: "remove", Path: "/missing"}}),
	))
	agent := newTestAgent(t, producer, Config{ThreadID: "t", InitialState: map[string]any{"count": 1.0}})

	result, err := agent.Run(context.Background(), RunParams{RunID: "r"})
	var patchErr *state.PatchError
	require.True(t, errors.As(err, &patchErr))
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, map[string]any{"count": 1.0}, agent.State())
}

func TestStateUpdates(t *testing.T) {
	producer := testutil.NewScriptedProducer(testutil.Run("t", "r",
		events.NewStateDeltaEvent([]events.JSONPatchOperation{{Op: "replace", Path: "/count", Value: 43}}),
	))
	agent := newTestAgent(t, producer, Config{ThreadID: "t", InitialState: map[string]any{"count": 42}})
	rec := &recorder{}

	result, err := agent.Run(context.Background(), RunParams{RunID: "r"}, rec)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 43.0}, result.StateDoc)
	assert.Equal(t, map[string]any{"count": 43.0}, agent.State())
	assert.Equal(t, 1, rec.count("state"))

	reqs := producer.Requests()
	assert.Equal(t, map[string]any{"count": 42.0}, reqs[0].State)
}

func TestStateIsStoredAsJSON(t *testing.T) {
	agent := newTestAgent(t, testutil.NewScriptedProducer(), Config{ThreadID: "t"})

	require.NoError(t, agent.SetState(map[string]any{
		"count": 42,
		"ids":   []int{1, 2},
		"big":   int64(9007199254740993),
	}))
	assert.Equal(t, map[string]any{
		"count": 42.0,
		"ids":   []any{1.0, 2.0},
		"big":   json.Number("9007199254740993"),
	}, agent.State())

	assert.Error(t, agent.SetState(map[string]any{"ch": make(chan int)}))

	_, err := NewAgent(testutil.NewScriptedProducer(), Config{ThreadID: "t", InitialState: func() {}})
	var configErr *core.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "initial_state", configErr.Field)
}

func TestSubscribersShareRunContext(t *testing.T) {
	producer := testutil.NewScriptedProducer(testutil.Run("t", "r", events.NewCustomEvent("ping", 1.0)))
	agent := newTestAgent(t, producer, Config{ThreadID: "t"})

	var first, second []*RunContext
	var seen []any
	a := &SubscriberFuncs{
		Event: func(rc *RunContext, e events.Event) Mutation {
			first = append(first, rc)
			if e.Type() == events.EventTypeCustom {
				return Mutation{State: map[string]any{"by": "a"}}
			}
			return Mutation{}
		},
	}
	b := &SubscriberFuncs{
		Event: func(rc *RunContext, e events.Event) Mutation {
			second = append(second, rc)
			if e.Type() == events.EventTypeCustom {
				seen = append(seen, rc.State)
			}
			return Mutation{}
		},
	}

	_, err := agent.Run(context.Background(), RunParams{RunID: "r"}, a, b)
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.Len(t, second, 3)
	assert.Same(t, first[0], second[0])
	assert.NotSame(t, first[1], second[1], "a mutation refreshes the view")
	assert.Equal(t, []any{map[string]any{"by": "a"}}, seen)
	assert.Same(t, first[2], second[2])
}

func TestStopPropagation(t *testing.T) {
	producer := testutil.NewScriptedProducer(testutil.Run("t", "r",
		events.NewStateSnapshotEvent(map[string]any{"owner": "agent"}),
	))
	agent := newTestAgent(t, producer, Config{ThreadID: "t"})

	var stateChanges []any
	sub := &SubscriberFuncs{
		ByType: map[events.EventType]EventFunc{
			events.EventTypeStateSnapshot: func(*RunContext, events.Event) Mutation {
				return Mutation{State: map[string]any{"owner": "subscriber"}, StopPropagation: true}
			},
		},
		StateChanged: func(_ *RunContext, doc any) { stateChanges = append(stateChanges, doc) },
	}

	_, err := agent.Run(context.Background(), RunParams{RunID: "r"}, sub)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"owner": "subscriber"}, agent.State())
	assert.Equal(t, []any{map[string]any{"owner": "subscriber"}}, stateChanges)
}

func TestMutationAppliedBeforeEvent(t *testing.T) {
	producer := testutil.NewScriptedProducer(testutil.Run("t", "r",
		events.NewStateDeltaEvent([]events.JSONPatchOperation{{Op: "add", Path: "/seen/-", Value: "agent"}}),
	))
	agent := newTestAgent(t, producer, Config{ThreadID: "t", InitialState: map[string]any{}})

	sub := &SubscriberFuncs{
		ByType: map[events.EventType]EventFunc{
			events.EventTypeStateDelta: func(*RunContext, events.Event) Mutation {
				return Mutation{State: map[string]any{"seen": []any{"subscriber"}}}
			},
		},
	}

	_, err := agent.Run(context.Background(), RunParams{RunID: "r"}, sub)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"seen": []any{"subscriber", "agent"}}, agent.State())
}

func TestRunInProgress(t *testing.T) {
	writer, es := core.Pipe()
	producer := core.ProducerFunc(func(context.Context, *core.RunRequest) (core.EventStream, error) {
		return es, nil
	})
	agent := newTestAgent(t, producer, Config{ThreadID: "t"})

	run, err := agent.Start(context.Background(), RunParams{RunID: "r"})
	require.NoError(t, err)
	require.NoError(t, writer.Send(context.Background(), events.NewRunStartedEvent("t", "r")))

	_, err = agent.Start(context.Background(), RunParams{})
	assert.ErrorIs(t, err, core.ErrRunInProgress)
	assert.ErrorIs(t, agent.AddMessages(messages.NewUserMessage("too early")), core.ErrRunInProgress)
	assert.ErrorIs(t, agent.SetState(map[string]any{}), core.ErrRunInProgress)

	require.NoError(t, writer.Send(context.Background(), events.NewRunFinishedEvent("t", "r")))
	result, err := run.Wait()
	require.NoError(t, err)
	assert.Equal(t, StateFinished, result.State)

	assert.NoError(t, agent.AddMessages(messages.NewUserMessage("now")))
}

func TestCancelFromSubscriber(t *testing.T) {
	ready := make(chan struct{})
	script := testutil.Run("t", "r", testutil.TextMessage("m1", "a", "b", "c")...)
	producer := core.ProducerFunc(func(context.Context, *core.RunRequest) (core.EventStream, error) {
		<-ready
		return core.SliceStream(script...), nil
	})
	agent := newTestAgent(t, producer, Config{ThreadID: "t"})

	var run *Run
	rec := &recorder{}
	seen := 0
	cancelAfter := &SubscriberFuncs{
		Event: func(*RunContext, events.Event) Mutation {
			seen++
			if seen == 3 {
				run.Cancel()
			}
			return Mutation{}
		},
	}

	run, err := agent.Start(context.Background(), RunParams{RunID: "r"}, cancelAfter, rec)
	require.NoError(t, err)
	close(ready)

	result, err := run.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCancelled, result.State)
	assert.Equal(t, StateCancelled, run.State())

	assert.Equal(t, 3, seen)
	assert.Equal(t, 1, rec.count("cancelled"))
	assert.Equal(t, 1, rec.count("finalized"))
	assert.Zero(t, rec.count("finished"))
	assert.Zero(t, rec.count("failed"))
	assert.Empty(t, agent.Messages())

	// cancelling again is a no-op
	run.Cancel()
	assert.Equal(t, 1, rec.count("cancelled"))
}

func TestCancelWhileWaiting(t *testing.T) {
	writer, es := core.Pipe()
	producer := core.ProducerFunc(func(context.Context, *core.RunRequest) (core.EventStream, error) {
		return es, nil
	})
	agent := newTestAgent(t, producer, Config{ThreadID: "t"})
	rec := &recorder{}

	run, err := agent.Start(context.Background(), RunParams{RunID: "r"}, rec)
	require.NoError(t, err)
	require.NoError(t, writer.Send(context.Background(), events.NewRunStartedEvent("t", "r")))

	run.Cancel()
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, writer.Send(ctx, events.NewRunFinishedEvent("t", "r")))

	assert.Equal(t, 1, rec.count("event:RUN_STARTED"))
	assert.Zero(t, rec.count("event:RUN_FINISHED"))
	assert.Equal(t, 1, rec.count("cancelled"))
	assert.Equal(t, 1, rec.count("finalized"))
}

func TestEphemeralMessagesSurviveSnapshot(t *testing.T) {
	user := messages.NewUserMessage("question")
	reply := messages.NewAssistantMessage("answer")
	producer := testutil.NewScriptedProducer(testutil.Run("t", "r",
		events.NewMessagesSnapshotEvent(messages.List{user.Clone(), reply}),
	))
	agent := newTestAgent(t, producer, Config{ThreadID: "t"}, WithMessages(user))

	note := messages.MarkEphemeral(messages.NewSystemMessage("local note"))
	require.NoError(t, agent.AddMessages(note))

	_, err := agent.Run(context.Background(), RunParams{RunID: "r"})
	require.NoError(t, err)

	reqs := producer.Requests()
	require.Len(t, reqs[0].Messages, 1)
	assert.Equal(t, user.ID, reqs[0].Messages[0].GetID())

	msgs := agent.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{user.ID, note.GetID(), reply.ID},
		[]string{msgs[0].GetID(), msgs[1].GetID(), msgs[2].GetID()})
	assert.True(t, msgs[1].IsEphemeral())
}

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

func newCalculator(t *testing.T) (*tools.Registry, *tools.Executor) {
	t.Helper()
	add, err := tools.NewTool("add", "Adds two integers", func(_ context.Context, args addArgs) (any, error) {
		return args.A + args.B, nil
	})
	require.NoError(t, err)
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(add))
	return registry, tools.NewExecutor(registry)
}

func TestRunWithTools(t *testing.T) {
	registry, executor := newCalculator(t)
	producer := testutil.NewScriptedProducer(
		testutil.Run("t", "run-1", testutil.ToolCall("call-1", "add", "", `{"a":1,`, `"b":2}`)...),
		testutil.Run("t", "run-2", testutil.TextMessage("m2", "1 + 2 = 3")...),
	)
	agent := newTestAgent(t, producer, Config{ThreadID: "t", Identity: "deferred"},
		WithMessages(messages.NewUserMessage("what is 1 + 2?")))
	rec := &recorder{}

	result, err := agent.RunWithTools(context.Background(), RunParams{Tools: registry.Definitions()}, executor, rec)
	require.NoError(t, err)
	assert.Equal(t, "run-2", result.Identity.RunID)
	assert.Equal(t, 1, rec.count("tool:call-1"))
	assert.Equal(t, 2, rec.count("finished"))

	reqs := producer.Requests()
	require.Len(t, reqs, 2)
	second := reqs[1]
	assert.Equal(t, "t", second.ThreadID)
	require.NotNil(t, second.ParentRunID)
	assert.Equal(t, "run-1", *second.ParentRunID)
	require.Len(t, second.Tools, 1)

	require.Len(t, second.Messages, 3)
	toolMsg, ok := second.Messages[2].(*messages.ToolMessage)
	require.True(t, ok)
	assert.Equal(t, "call-1", toolMsg.ToolCallID)
	assert.Equal(t, "3", toolMsg.Content)
	assert.Nil(t, toolMsg.Error)

	assert.Empty(t, agent.PendingToolCalls())
	assert.Len(t, agent.Messages(), 4)
}

func TestToolCallChunksBecomePending(t *testing.T) {
	producer := testutil.NewScriptedProducer(testutil.Run("t", "r",
		events.NewToolCallChunkEvent("call-1", "add", `{"a":1,`),
		events.NewToolCallChunkEvent("", "", `"b":2}`),
	))
	agent := newTestAgent(t, producer, Config{ThreadID: "t"})
	rec := &recorder{}

	_, err := agent.Run(context.Background(), RunParams{RunID: "r"}, rec)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.count("tool:call-1"))

	pending := agent.PendingToolCalls()
	require.Len(t, pending, 1)
	assert.Equal(t, "add", pending[0].Function.Name)
	assert.JSONEq(t, `{"a":1,"b":2}`, pending[0].Function.Arguments)
}

func TestRunWithToolsMaxRounds(t *testing.T) {
	registry, executor := newCalculator(t)
	producer := testutil.NewScriptedProducer(
		testutil.Run("t", "run-1", testutil.ToolCall("call-1", "add", "", `{"a":1,"b":1}`)...),
		testutil.Run("t", "run-2", testutil.ToolCall("call-2", "add", "", `{"a":2,"b":2}`)...),
	)
	agent := newTestAgent(t, producer, Config{ThreadID: "t", Identity: "deferred", MaxToolRounds: 1})

	_, err := agent.RunWithTools(context.Background(), RunParams{Tools: registry.Definitions()}, executor)
	assert.ErrorIs(t, err, ErrMaxToolRounds)

	pending := agent.PendingToolCalls()
	require.Len(t, pending, 1)
	assert.Equal(t, "call-2", pending[0].ID)
}

func TestRunStateString(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateStarting.Terminal())
}
