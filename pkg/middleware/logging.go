package middleware

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
)

// Logging logs the start and end of every run at info level and each event
// at debug level. A nil logger uses the logrus standard logger.
func Logging(logger logrus.FieldLogger) Middleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return Func(func(ctx context.Context, req *core.RunRequest, next core.EventProducer) (core.EventStream, error) {
		log := logger.WithFields(logrus.Fields{
			"thread_id": req.ThreadID,
			"run_id":    req.RunID,
		})
		start := time.Now()
		log.WithField("messages", len(req.Messages)).Info("run started")

		upstream, err := next.Run(ctx, req)
		if err != nil {
			log.WithError(err).Warn("run failed to start")
			return nil, err
		}

		count := 0
		return Transform(upstream, func(_ context.Context, event events.Event) ([]events.Event, error) {
			count++
			entry := log.WithField("event_type", event.Type())
			switch e := event.(type) {
			case *events.RunStartedEvent:
				log = log.WithFields(logrus.Fields{"thread_id": e.ThreadID, "run_id": e.RunID})
				entry = log.WithField("event_type", event.Type())
			case *events.RunErrorEvent:
				entry.WithField("error", e.Message).Warn("agent reported run error")
				return []events.Event{event}, nil
			}
			entry.Debug("event")
			return []events.Event{event}, nil
		}, func(err error) {
			fields := logrus.Fields{"events": count, "duration": time.Since(start)}
			switch {
			case err == nil:
				log.WithFields(fields).Info("run closed by consumer")
			case errors.Is(err, io.EOF):
				log.WithFields(fields).Info("run ended")
			default:
				log.WithFields(fields).WithError(err).Warn("run stream failed")
			}
		}), nil
	})
}
