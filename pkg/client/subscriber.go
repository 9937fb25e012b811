package client

import (
	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/messages"
	"github.com/ag-ui/go-engine/pkg/state"
)

// Mutation is returned by OnEvent to change the run's messages or state
// before the event itself is applied. Set StopPropagation to keep the event
// from being applied at all.
type Mutation = state.Mutation

// RunContext is a read-only view of a run handed to subscribers. It is a
// copy taken once per hook call and shared by every subscriber of that call;
// changing it has no effect on the run. In OnEvent, a subscriber whose
// Mutation changed the run hands the next subscriber a new copy.
type RunContext struct {
	Identity core.RunIdentity
	Request  *core.RunRequest
	Messages messages.List
	State    any
}

// Subscriber observes a run. Hooks are called from the run's goroutine, one
// at a time, in event order. Embed BaseSubscriber to implement only some of
// them.
type Subscriber interface {
	OnRunInitialized(rc *RunContext)
	// OnEvent is called for every verified event before it is applied.
	OnEvent(rc *RunContext, event events.Event) Mutation
	OnNewMessage(rc *RunContext, msg messages.Message)
	// OnNewToolCall is called once a tool call's arguments are complete.
	OnNewToolCall(rc *RunContext, call messages.ToolCall)
	OnMessagesChanged(rc *RunContext, msgs messages.List)
	OnStateChanged(rc *RunContext, doc any)
	OnRunFinished(rc *RunContext, result any)
	OnRunFailed(rc *RunContext, err error)
	OnRunCancelled(rc *RunContext)
	// OnRunFinalized is called exactly once after the terminal hook.
	OnRunFinalized(rc *RunContext)
}

// BaseSubscriber implements every hook as a no-op.
type BaseSubscriber struct{}

func (BaseSubscriber) OnRunInitialized(*RunContext) {}
func (BaseSubscriber) OnEvent(*RunContext, events.Event) Mutation { return Mutation{} }
func (BaseSubscriber) OnNewMessage(*RunContext, messages.Message) {}
func (BaseSubscriber) OnNewToolCall(*RunContext, messages.ToolCall) {}
func (BaseSubscriber) OnMessagesChanged(*RunContext, messages.List) {}
func (BaseSubscriber) OnStateChanged(*RunContext, any) {}
func (BaseSubscriber) OnRunFinished(*RunContext, any) {}
func (BaseSubscriber) OnRunFailed(*RunContext, error) {}
func (BaseSubscriber) OnRunCancelled(*RunContext) {}
func (BaseSubscriber) OnRunFinalized(*RunContext) {}

// EventFunc handles one event.
type EventFunc func(rc *RunContext, event events.Event) Mutation

// SubscriberFuncs adapts plain functions to Subscriber. Nil fields are
// skipped. For each event Event runs first, then the handler registered for
// the event's type in ByType; their mutations are merged with the later one
// taking precedence.
type SubscriberFuncs struct {
	Initialized     func(rc *RunContext)
	Event           EventFunc
	ByType          map[events.EventType]EventFunc
	NewMessage      func(rc *RunContext, msg messages.Message)
	NewToolCall     func(rc *RunContext, call messages.ToolCall)
	MessagesChanged func(rc *RunContext, msgs messages.List)
	StateChanged    func(rc *RunContext, doc any)
	Finished        func(rc *RunContext, result any)
	Failed          func(rc *RunContext, err error)
	Cancelled       func(rc *RunContext)
	Finalized       func(rc *RunContext)
}

var _ Subscriber = (*SubscriberFuncs)(nil)

func (s *SubscriberFuncs) OnRunInitialized(rc *RunContext) {
	if s.Initialized != nil {
		s.Initialized(rc)
	}
}

func (s *SubscriberFuncs) OnEvent(rc *RunContext, event events.Event) Mutation {
	var m Mutation
	if s.Event != nil {
		m = s.Event(rc, event)
	}
	if fn := s.ByType[event.Type()]; fn != nil {
		m = mergeMutations(m, fn(rc, event))
	}
	return m
}

func (s *SubscriberFuncs) OnNewMessage(rc *RunContext, msg messages.Message) {
	if s.NewMessage != nil {
		s.NewMessage(rc, msg)
	}
}

func (s *SubscriberFuncs) OnNewToolCall(rc *RunContext, call messages.ToolCall) {
	if s.NewToolCall != nil {
		s.NewToolCall(rc, call)
	}
}

func (s *SubscriberFuncs) OnMessagesChanged(rc *RunContext, msgs messages.List) {
	if s.MessagesChanged != nil {
		s.MessagesChanged(rc, msgs)
	}
}

func (s *SubscriberFuncs) OnStateChanged(rc *RunContext, doc any) {
	if s.StateChanged != nil {
		s.StateChanged(rc, doc)
	}
}

func (s *SubscriberFuncs) OnRunFinished(rc *RunContext, result any) {
	if s.Finished != nil {
		s.Finished(rc, result)
	}
}

func (s *SubscriberFuncs) OnRunFailed(rc *RunContext, err error) {
	if s.Failed != nil {
		s.Failed(rc, err)
	}
}

func (s *SubscriberFuncs) OnRunCancelled(rc *RunContext) {
	if s.Cancelled != nil {
		s.Cancelled(rc)
	}
}

func (s *SubscriberFuncs) OnRunFinalized(rc *RunContext) {
	if s.Finalized != nil {
		s.Finalized(rc)
	}
}

func mergeMutations(a, b Mutation) Mutation {
	if b.Messages != nil {
		a.Messages = b.Messages
	}
	if b.State != nil {
		a.State = b.State
	}
	a.StopPropagation = a.StopPropagation || b.StopPropagation
	return a
}
