package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/messages"
	"github.com/ag-ui/go-engine/pkg/middleware"
)

// Agent drives runs against one event producer and keeps the conversation
// of one thread between runs. At most one run is active at a time.
type Agent struct {
	config   Config
	producer core.EventProducer
	stages   []middleware.Middleware
	mode     core.IdentityMode
	logger   logrus.FieldLogger

	mu       sync.Mutex
	threadID string
	messages messages.List
	state    any
	active   *Run
}

// RunParams are the per-run inputs. Messages and state come from the agent.
type RunParams struct {
	// RunID overrides the generated run id in eager mode
	RunID          string
	ParentRunID    *string
	Tools          []core.Tool
	Context        []core.Context
	ForwardedProps any
}

// ToolExecutor executes pending tool calls between runs.
type ToolExecutor interface {
	ExecuteAll(ctx context.Context, calls []messages.ToolCall) ([]*messages.ToolMessage, error)
}

// NewAgent creates an agent over producer with the specified configuration.
func NewAgent(producer core.EventProducer, config Config, opts ...Option) (*Agent, error) {
	if producer == nil {
		return nil, &core.ConfigError{
			Field: "producer",
			Value: producer,
			Err:   errors.New("producer cannot be nil"),
		}
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	mode, _ := ParseIdentityMode(config.Identity)
	initial, err := core.NormalizeJSON(config.InitialState)
	if err != nil {
		return nil, &core.ConfigError{Field: "initial_state", Err: err}
	}

	a := &Agent{
		config:   config,
		mode:     mode,
		logger:   logrus.StandardLogger(),
		threadID: config.ThreadID,
		state:    initial,
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.messages.Validate(); err != nil {
		return nil, &core.ConfigError{Field: "messages", Value: len(a.messages), Err: err}
	}
	if a.mode == core.IdentityEager && a.threadID == "" {
		a.threadID = uuid.NewString()
	}
	a.producer = middleware.Chain(producer, a.stages...)
	a.logger = a.logger.WithField("agent_id", config.AgentID)
	return a, nil
}

// ThreadID returns the thread id, or "" while a deferred agent has not seen
// one yet.
func (a *Agent) ThreadID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.threadID
}

// Messages returns a copy of the conversation.
func (a *Agent) Messages() messages.List {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messages.Clone()
}

// State returns a copy of the state document.
func (a *Agent) State() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return core.CloneJSON(a.state)
}

// AddMessages appends messages to the conversation. It fails with
// core.ErrRunInProgress while a run is active, so a tool result can never
// be submitted before the run that requested it has ended.
func (a *Agent) AddMessages(msgs ...messages.Message) error {
	for _, msg := range msgs {
		if msg == nil {
			return fmt.Errorf("message cannot be nil")
		}
		if err := msg.Validate(); err != nil {
			return err
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil {
		return core.ErrRunInProgress
	}
	for _, msg := range msgs {
		a.messages = append(a.messages, msg.Clone())
	}
	return nil
}

// SetState replaces the state document sent with the next run. The document
// is stored in its JSON form, so numbers read back as float64.
func (a *Agent) SetState(doc any) error {
	normalized, err := core.NormalizeJSON(doc)
	if err != nil {
		return fmt.Errorf("state is not a JSON document: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil {
		return core.ErrRunInProgress
	}
	a.state = normalized
	return nil
}

// PendingToolCalls returns the assistant tool calls that have no matching
// tool message yet, in conversation order.
func (a *Agent) PendingToolCalls() []messages.ToolCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return pendingToolCalls(a.messages)
}

func pendingToolCalls(list messages.List) []messages.ToolCall {
	answered := make(map[string]bool)
	for _, msg := range list {
		if m, ok := msg.(*messages.ToolMessage); ok {
			answered[m.ToolCallID] = true
		}
	}
	var pending []messages.ToolCall
	for _, msg := range list {
		m, ok := msg.(*messages.AssistantMessage)
		if !ok {
			continue
		}
		for _, call := range m.ToolCalls {
			if !answered[call.ID] {
				pending = append(pending, call)
			}
		}
	}
	return pending
}

// Start begins a run and returns immediately. Subscribers are notified from
// the run's goroutine. It returns core.ErrRunInProgress if a run is active.
func (a *Agent) Start(ctx context.Context, params RunParams, subs ...Subscriber) (*Run, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active != nil {
		return nil, core.ErrRunInProgress
	}

	identity := core.RunIdentity{ThreadID: a.threadID}
	if a.mode == core.IdentityEager {
		identity.RunID = params.RunID
		if identity.RunID == "" {
			identity.RunID = uuid.NewString()
		}
	}

	req := &core.RunRequest{
		ThreadID:       identity.ThreadID,
		RunID:          identity.RunID,
		ParentRunID:    params.ParentRunID,
		State:          core.CloneJSON(a.state),
		Messages:       a.messages.Durable().Clone(),
		Tools:          params.Tools,
		Context:        params.Context,
		ForwardedProps: params.ForwardedProps,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	run := newRun(a, req.Clone(), a.messages, identity, subs)
	a.active = run
	run.start(ctx)
	return run, nil
}

// Run starts a run and waits for its terminal state.
func (a *Agent) Run(ctx context.Context, params RunParams, subs ...Subscriber) (*Result, error) {
	run, err := a.Start(ctx, params, subs...)
	if err != nil {
		return nil, err
	}
	return run.Wait()
}

// RunWithTools runs the agent and, whenever a run finishes with tool calls
// left unanswered, executes them with executor, appends the tool messages
// and starts a follow-up run on the same thread. Tools are only executed
// after the run that requested them has finished.
func (a *Agent) RunWithTools(ctx context.Context, params RunParams, executor ToolExecutor, subs ...Subscriber) (*Result, error) {
	maxRounds := a.config.MaxToolRounds
	if maxRounds == 0 {
		maxRounds = DefaultMaxToolRounds
	}

	for round := 0; ; round++ {
		result, err := a.Run(ctx, params, subs...)
		if err != nil {
			return result, err
		}
		pending := a.PendingToolCalls()
		if len(pending) == 0 {
			return result, nil
		}
		if round >= maxRounds {
			return result, fmt.Errorf("%w: %d", ErrMaxToolRounds, maxRounds)
		}

		a.logger.WithFields(logrus.Fields{
			"thread_id":  result.Identity.ThreadID,
			"run_id":     result.Identity.RunID,
			"tool_calls": len(pending),
			"round":      round + 1,
		}).Debug("executing pending tool calls")

		toolMessages, err := executor.ExecuteAll(ctx, pending)
		if err != nil {
			return result, fmt.Errorf("tool execution: %w", err)
		}
		added := make([]messages.Message, 0, len(toolMessages))
		for _, msg := range toolMessages {
			added = append(added, msg)
		}
		if err := a.AddMessages(added...); err != nil {
			return result, err
		}

		parent := result.Identity.RunID
		params.RunID = ""
		params.ParentRunID = &parent
	}
}

// finish is called by a run once it reaches a terminal state.
func (a *Agent) finish(run *Run, res *Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active == run {
		a.active = nil
	}
	if a.threadID == "" && res.Identity.ThreadID != "" {
		a.threadID = res.Identity.ThreadID
	}
	if res.State == StateFinished {
		a.messages = res.Messages.Clone()
		a.state = core.CloneJSON(res.StateDoc)
	}
}
