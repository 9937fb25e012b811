package middleware

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
)

// Middleware is one stage between the caller and the event producer. It
// receives the request and the next stage, and returns the stream the
// caller will see. A stage may rewrite the request, the events or both.
type Middleware interface {
	Run(ctx context.Context, req *core.RunRequest, next core.EventProducer) (core.EventStream, error)
}

// Func adapts a function to Middleware.
type Func func(ctx context.Context, req *core.RunRequest, next core.EventProducer) (core.EventStream, error)

// Run implements Middleware.
func (f Func) Run(ctx context.Context, req *core.RunRequest, next core.EventProducer) (core.EventStream, error) {
	return f(ctx, req, next)
}

// Chain composes stages in front of producer. stages[0] is the outermost
// stage: it sees the request first and the events last.
func Chain(producer core.EventProducer, stages ...Middleware) core.EventProducer {
	p := producer
	for i := len(stages) - 1; i >= 0; i-- {
		p = bind(stages[i], p)
	}
	return p
}

func bind(stage Middleware, next core.EventProducer) core.EventProducer {
	return core.ProducerFunc(func(ctx context.Context, req *core.RunRequest) (core.EventStream, error) {
		return stage.Run(ctx, req, next)
	})
}

// TransformFunc maps one upstream event to zero or more downstream events.
// Returning io.EOF ends the stream after the returned events.
type TransformFunc func(ctx context.Context, event events.Event) ([]events.Event, error)

// Transform wraps upstream so that every event passes through fn. onEnd, if
// set, runs exactly once with the error that ended the stream (io.EOF for a
// normal end, nil when the consumer closed early).
func Transform(upstream core.EventStream, fn TransformFunc, onEnd func(err error)) core.EventStream {
	return &transformStream{upstream: upstream, fn: fn, onEnd: onEnd}
}

type transformStream struct {
	upstream core.EventStream
	fn       TransformFunc
	onEnd    func(err error)

	pending []events.Event
	err     error
	once    sync.Once
}

func (s *transformStream) Next(ctx context.Context) (events.Event, error) {
	for {
		if len(s.pending) > 0 {
			event := s.pending[0]
			s.pending = s.pending[1:]
			return event, nil
		}
		if s.err != nil {
			return nil, s.err
		}

		event, err := s.upstream.Next(ctx)
		if err != nil {
			s.end(err)
			return nil, err
		}
		out, err := s.fn(ctx, event)
		s.pending = append(s.pending, out...)
		if err != nil {
			s.end(err)
			if errors.Is(err, io.EOF) {
				_ = s.upstream.Close()
			}
		}
	}
}

func (s *transformStream) end(err error) {
	s.err = err
	s.once.Do(func() {
		if s.onEnd != nil {
			s.onEnd(err)
		}
	})
}

func (s *transformStream) Close() error {
	s.once.Do(func() {
		if s.onEnd != nil {
			s.onEnd(nil)
		}
	})
	return s.upstream.Close()
}
