package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ag-ui/go-engine/pkg/messages"
)

// Executor runs the tool calls an agent left pending at the end of a run and
// turns each outcome into a tool message for the next run. A failed call is
// reported to the agent in the message's error field, not returned as an
// error.
type Executor struct {
	registry *Registry

	maxConcurrent  int
	defaultTimeout time.Duration
	logger         logrus.FieldLogger
}

// ExecutorOption configures the executor.
type ExecutorOption func(*Executor)

// WithMaxConcurrent sets the maximum number of concurrent executions.
func WithMaxConcurrent(max int) ExecutorOption {
	return func(e *Executor) {
		e.maxConcurrent = max
	}
}

// WithDefaultTimeout sets the default execution timeout.
func WithDefaultTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.defaultTimeout = timeout
	}
}

// WithLogger sets the logger used for failed calls.
func WithLogger(logger logrus.FieldLogger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an executor over registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:       registry,
		maxConcurrent:  8,
		defaultTimeout: 30 * time.Second,
		logger:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one tool call. The returned error is non-nil only when ctx
// ends before the call completes.
func (e *Executor) Execute(ctx context.Context, call messages.ToolCall) (*messages.ToolMessage, error) {
	content, err := e.execute(ctx, call)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"tool":         call.Function.Name,
			"tool_call_id": call.ID,
		}).WithError(err).Warn("tool call failed")
		return messages.NewToolErrorMessage(call.ID, err), nil
	}
	return messages.NewToolMessage(content, call.ID), nil
}

// ExecuteAll runs calls with bounded parallelism. Results are in call order.
func (e *Executor) ExecuteAll(ctx context.Context, calls []messages.ToolCall) ([]*messages.ToolMessage, error) {
	results := make([]*messages.ToolMessage, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	if e.maxConcurrent > 0 {
		g.SetLimit(e.maxConcurrent)
	}
	for i, call := range calls {
		g.Go(func() error {
			msg, err := e.Execute(gctx, call)
			if err != nil {
				return err
			}
			results[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Executor) execute(ctx context.Context, call messages.ToolCall) (string, error) {
	reg, err := e.registry.lookup(call.Function.Name)
	if err != nil {
		return "", newToolError(ErrorTypeNotFound, call.Function.Name, call.ID, err)
	}
	if err := reg.schema.ValidateArguments(call.Function.Arguments); err != nil {
		return "", newToolError(ErrorTypeValidation, call.Function.Name, call.ID, err)
	}

	timeout := e.defaultTimeout
	if reg.tool.Timeout > 0 {
		timeout = reg.tool.Timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		content string
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		content, err := executeWithRecovery(execCtx, reg.tool.Handler, json.RawMessage(call.Function.Arguments))
		done <- outcome{content, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			errType := ErrorTypeExecution
			if errors.Is(out.err, context.DeadlineExceeded) {
				errType = ErrorTypeTimeout
				out.err = fmt.Errorf("%w: %v", ErrExecutionTimeout, out.err)
			}
			return "", newToolError(errType, call.Function.Name, call.ID, out.err)
		}
		return out.content, nil
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", newToolError(ErrorTypeTimeout, call.Function.Name, call.ID,
			fmt.Errorf("%w after %s", ErrExecutionTimeout, timeout))
	}
}

// executeWithRecovery executes a tool handler with panic recovery.
func executeWithRecovery(ctx context.Context, handler Handler, args json.RawMessage) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrToolPanicked, r)
		}
	}()
	return handler(ctx, args)
}
