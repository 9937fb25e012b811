package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/messages"
	"github.com/ag-ui/go-engine/pkg/state"
	"github.com/ag-ui/go-engine/pkg/stream"
)

// RunState is the lifecycle state of a run.
type RunState int

const (
	StateIdle RunState = iota
	StateStarting
	StateStreaming
	StateFinished
	StateFailed
	StateCancelled
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s RunState) Terminal() bool {
	return s == StateFinished || s == StateFailed || s == StateCancelled
}

// Result is the outcome of a run.
type Result struct {
	State    RunState
	Identity core.RunIdentity
	Messages messages.List
	StateDoc any
	// RunResult is the opaque result carried by RUN_FINISHED
	RunResult any
	Err       error
}

// Run is a handle to one in-flight run.
type Run struct {
	agent  *Agent
	req    *core.RunRequest
	subs   []Subscriber
	logger logrus.FieldLogger

	synchronizer *state.Synchronizer
	asm          *stream.Assembler
	verifier     *events.Verifier
	es           core.EventStream
	received     int

	mu       sync.Mutex
	state    RunState
	identity core.RunIdentity

	stopping atomic.Bool
	cancel   context.CancelFunc
	once     sync.Once
	done     chan struct{}
	result   *Result
}

// newRun prepares a run. local is the agent's full conversation, including
// the ephemeral messages left out of req.
func newRun(a *Agent, req *core.RunRequest, local messages.List, identity core.RunIdentity, subs []Subscriber) *Run {
	return &Run{
		agent:        a,
		req:          req,
		subs:         subs,
		logger:       a.logger,
		synchronizer: state.NewSynchronizer(req.State, local),
		asm:          stream.NewAssembler(),
		verifier:     events.NewVerifier(events.WithoutStateTracking()),
		state:        StateIdle,
		identity:     identity,
		done:         make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Identity returns the run's ids. In deferred mode they are empty until
// RUN_STARTED has been received.
func (r *Run) Identity() core.RunIdentity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identity
}

// Done is closed once the run has reached a terminal state and every
// subscriber has been notified.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Cancel stops the run. No event received after Cancel returns is
// dispatched to subscribers. Cancelling a finished run has no effect.
func (r *Run) Cancel() {
	if r.stopping.CompareAndSwap(false, true) {
		r.cancel()
	}
}

// Wait blocks until the run ends. The error is the result's Err.
func (r *Run) Wait() (*Result, error) {
	<-r.done
	return r.result, r.result.Err
}

func (r *Run) setState(s RunState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Run) start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.setState(StateStarting)
	go r.loop(ctx)
}

func (r *Run) stopped(ctx context.Context) bool {
	return r.stopping.Load() || ctx.Err() != nil
}

func (r *Run) loop(ctx context.Context) {
	started := time.Now()
	r.notify(func(s Subscriber, rc *RunContext) { s.OnRunInitialized(rc) })

	if r.stopped(ctx) {
		r.terminate(StateCancelled, nil, context.Canceled)
		return
	}

	es, err := r.agent.producer.Run(ctx, r.req.Clone())
	if err != nil {
		if r.stopped(ctx) {
			r.terminate(StateCancelled, nil, context.Canceled)
			return
		}
		r.terminate(StateFailed, nil, fmt.Errorf("starting run: %w", err))
		return
	}
	r.es = es

	for {
		if r.stopped(ctx) {
			r.terminate(StateCancelled, nil, context.Canceled)
			return
		}
		event, err := es.Next(ctx)
		if r.stopped(ctx) {
			r.terminate(StateCancelled, nil, context.Canceled)
			return
		}
		if errors.Is(err, io.EOF) {
			err = r.verifier.Finish()
			if err == nil {
				err = errors.New("event stream ended unexpectedly")
			}
			r.terminate(StateFailed, nil, err)
			return
		}
		if err != nil {
			r.terminate(StateFailed, nil, err)
			return
		}

		terminal, err := r.handle(event)
		if err != nil {
			r.terminate(StateFailed, nil, err)
			return
		}
		if terminal {
			r.logger.WithFields(logrus.Fields{
				"thread_id": r.Identity().ThreadID,
				"run_id":    r.Identity().RunID,
				"events":    r.received,
				"duration":  time.Since(started),
			}).Debug("run completed")
			return
		}
	}
}

// checkIdentity adopts unknown ids from RUN_STARTED and rejects ids that
// contradict the ones already known.
func (r *Run) checkIdentity(event events.Event) error {
	e, ok := event.(*events.RunStartedEvent)
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if (r.identity.ThreadID != "" && e.ThreadID != r.identity.ThreadID) ||
		(r.identity.RunID != "" && e.RunID != r.identity.RunID) {
		return &events.SequenceError{
			Index:     r.received,
			EventType: e.Type(),
			Rule:      events.RuleRunIdentity,
			Message: fmt.Sprintf("started thread %s run %s, requested thread %s run %s",
				e.ThreadID, e.RunID, r.identity.ThreadID, r.identity.RunID),
		}
	}
	r.identity = core.RunIdentity{ThreadID: e.ThreadID, RunID: e.RunID}
	return nil
}

// handle verifies and applies one event. It reports whether the event ended
// the run, in which case the run has already been terminated.
func (r *Run) handle(event events.Event) (bool, error) {
	if err := r.checkIdentity(event); err != nil {
		return false, err
	}
	if err := r.verifier.Verify(event); err != nil {
		return false, err
	}
	r.received++
	r.setState(StateStreaming)

	var change state.Change
	stop := false
	rc := r.context()
	for _, sub := range r.subs {
		m := sub.OnEvent(rc, event)
		c := r.synchronizer.ApplyMutation(m)
		if c.Messages || c.State {
			rc = r.context()
		}
		mergeChange(&change, c)
		stop = stop || m.StopPropagation
	}

	updates, err := r.asm.Process(event)
	if err != nil {
		return false, err
	}
	if !stop {
		c, err := r.synchronizer.Apply(event, updates)
		if err != nil {
			return false, err
		}
		mergeChange(&change, c)
	}

	var runResult any
	switch e := event.(type) {
	case *events.RunFinishedEvent:
		drained, err := r.asm.Drain()
		if err != nil {
			return false, err
		}
		if !stop {
			for _, u := range drained {
				mergeChange(&change, r.synchronizer.ApplyUpdate(u))
			}
			updates = append(updates, drained...)
		}
		runResult = e.Result
	}

	r.dispatchChange(change, updates, stop)

	switch e := event.(type) {
	case *events.RunFinishedEvent:
		r.terminate(StateFinished, runResult, nil)
		return true, nil
	case *events.RunErrorEvent:
		runErr := &RunError{Message: e.Message, RunID: e.RunID}
		if e.Code != nil {
			runErr.Code = *e.Code
		}
		r.terminate(StateFailed, nil, runErr)
		return true, nil
	}
	return false, nil
}

func mergeChange(dst *state.Change, c state.Change) {
	dst.Messages = dst.Messages || c.Messages
	dst.State = dst.State || c.State
	dst.NewMessages = append(dst.NewMessages, c.NewMessages...)
}

func (r *Run) dispatchChange(change state.Change, updates []stream.Update, stop bool) {
	if len(change.NewMessages) > 0 {
		current := r.synchronizer.Messages()
		for _, id := range change.NewMessages {
			if i := current.IndexOf(id); i >= 0 {
				msg := current[i]
				r.notify(func(s Subscriber, rc *RunContext) { s.OnNewMessage(rc, msg.Clone()) })
			}
		}
	}
	if !stop {
		for _, u := range updates {
			if u.Kind != stream.ToolCallFinished {
				continue
			}
			call := u.ToolCall.ToToolCall()
			r.notify(func(s Subscriber, rc *RunContext) { s.OnNewToolCall(rc, call) })
		}
	}
	if change.Messages {
		r.notify(func(s Subscriber, rc *RunContext) { s.OnMessagesChanged(rc, rc.Messages) })
	}
	if change.State {
		r.notify(func(s Subscriber, rc *RunContext) { s.OnStateChanged(rc, rc.State) })
	}
}

// context returns a fresh view of the run, shared by the subscribers of one
// hook call.
func (r *Run) context() *RunContext {
	return &RunContext{
		Identity: r.Identity(),
		Request:  r.req.Clone(),
		Messages: r.synchronizer.Messages(),
		State:    r.synchronizer.State(),
	}
}

func (r *Run) notify(fn func(Subscriber, *RunContext)) {
	if len(r.subs) == 0 {
		return
	}
	rc := r.context()
	for _, sub := range r.subs {
		fn(sub, rc)
	}
}

// terminate moves the run to a terminal state. Only the first call has an
// effect: the agent is released first, then the terminal hook and
// OnRunFinalized are called, then waiters are woken.
func (r *Run) terminate(final RunState, runResult any, err error) {
	r.once.Do(func() { r.finalize(final, runResult, err) })
}

func (r *Run) finalize(final RunState, runResult any, err error) {
	if r.es != nil {
		r.es.Close()
	}
	r.asm.Reset()
	r.cancel()
	r.setState(final)

	res := &Result{
		State:     final,
		Identity:  r.Identity(),
		Messages:  r.synchronizer.Messages(),
		StateDoc:  r.synchronizer.State(),
		RunResult: runResult,
		Err:       err,
	}
	r.result = res
	r.agent.finish(r, res)

	fields := logrus.Fields{
		"thread_id": res.Identity.ThreadID,
		"run_id":    res.Identity.RunID,
		"state":     final.String(),
	}
	switch final {
	case StateFinished:
		r.notify(func(s Subscriber, rc *RunContext) { s.OnRunFinished(rc, runResult) })
	case StateFailed:
		r.logger.WithFields(fields).WithError(err).Warn("run failed")
		r.notify(func(s Subscriber, rc *RunContext) { s.OnRunFailed(rc, err) })
	case StateCancelled:
		r.logger.WithFields(fields).Debug("run cancelled")
		r.notify(func(s Subscriber, rc *RunContext) { s.OnRunCancelled(rc) })
	}
	r.notify(func(s Subscriber, rc *RunContext) { s.OnRunFinalized(rc) })
	close(r.done)
}
