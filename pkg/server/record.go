package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/middleware"
	"github.com/ag-ui/go-engine/pkg/session"
	"github.com/ag-ui/go-engine/pkg/state"
	"github.com/ag-ui/go-engine/pkg/stream"
)

// RecordSessions returns a stage that keeps each thread's session in reg
// current with what the agent streams back.
//
// The stage holds the thread for the whole run, so runs on one thread are
// served one after another. Missing thread and run ids are assigned before
// the request reaches the agent. Every outgoing event is verified and
// folded into the thread's messages and state; a violation ends the stream
// with the error. The folded result is stored when the run finishes.
func RecordSessions(reg *session.Registry, logger logrus.FieldLogger) middleware.Middleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return middleware.Func(func(ctx context.Context, req *core.RunRequest, next core.EventProducer) (core.EventStream, error) {
		req = req.Clone()
		if req.ThreadID == "" {
			req.ThreadID = uuid.NewString()
		}
		if req.RunID == "" {
			req.RunID = uuid.NewString()
		}

		lease, err := reg.Acquire(ctx, req.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("acquire thread %s: %w", req.ThreadID, err)
		}
		upstream, err := next.Run(ctx, req)
		if err != nil {
			lease.Release()
			return nil, err
		}

		f := &fold{
			lease:        lease,
			runID:        req.RunID,
			verifier:     events.NewVerifier(events.WithoutStateTracking()),
			asm:          stream.NewAssembler(),
			synchronizer: state.NewSynchronizer(req.State, req.Messages),
			logger: logger.WithFields(logrus.Fields{
				"thread_id": req.ThreadID,
				"run_id":    req.RunID,
			}),
		}
		return middleware.Transform(upstream, f.apply, func(err error) {
			f.end(context.WithoutCancel(ctx), err)
		}), nil
	})
}

type fold struct {
	lease        *session.Lease
	runID        string
	verifier     *events.Verifier
	asm          *stream.Assembler
	synchronizer *state.Synchronizer
	finished     bool
	logger       logrus.FieldLogger
}

func (f *fold) apply(_ context.Context, event events.Event) ([]events.Event, error) {
	if err := f.verifier.Verify(event); err != nil {
		return nil, err
	}
	updates, err := f.asm.Process(event)
	if err != nil {
		return nil, err
	}
	if _, err := f.synchronizer.Apply(event, updates); err != nil {
		return nil, err
	}

	switch e := event.(type) {
	case *events.RunStartedEvent:
		f.runID = e.RunID
	case *events.RunFinishedEvent:
		drained, err := f.asm.Drain()
		if err != nil {
			return nil, err
		}
		for _, u := range drained {
			f.synchronizer.ApplyUpdate(u)
		}
		f.finished = true
	}
	return []events.Event{event}, nil
}

func (f *fold) end(ctx context.Context, err error) {
	defer f.lease.Release()

	if errors.Is(err, io.EOF) {
		if ferr := f.verifier.Finish(); ferr != nil {
			f.logger.WithError(ferr).Warn("agent stream ended early")
		}
	} else if err != nil {
		f.logger.WithError(err).Warn("run not recorded")
	}

	sess := f.lease.Session()
	sess.Runs++
	sess.LastRunID = f.runID
	if f.finished {
		sess.Messages = f.synchronizer.Messages()
		sess.State = f.synchronizer.State()
	}
	if err := f.lease.Save(ctx); err != nil {
		f.logger.WithError(err).Warn("failed to save session")
	}
}
