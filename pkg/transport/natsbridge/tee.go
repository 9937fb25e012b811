package natsbridge

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/middleware"
)

// Publisher is the part of *nats.Conn used by Tee.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Connect opens a NATS connection. An empty url falls back to the NATS_URL
// environment variable and then to nats.DefaultURL.
func Connect(url, name string, opts ...nats.Option) (*nats.Conn, error) {
	if url == "" {
		url = os.Getenv("NATS_URL")
	}
	if url == "" {
		url = nats.DefaultURL
	}
	if name != "" {
		opts = append([]nats.Option{nats.Name(name)}, opts...)
	}
	return nats.Connect(url, opts...)
}

// Subject returns the subject events of a run are published on.
func Subject(prefix, threadID, runID string) string {
	return prefix + "." + token(threadID) + "." + token(runID)
}

// token makes an id usable as a single subject token.
func token(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, id)
}

// Tee returns a middleware stage that publishes the JSON form of every
// event to Subject(prefix, threadId, runId) and passes the event on
// unchanged. Ids missing from the request are taken from RUN_STARTED.
// Publish failures are logged and never affect the run.
func Tee(pub Publisher, prefix string, logger logrus.FieldLogger) middleware.Middleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return middleware.Func(func(ctx context.Context, req *core.RunRequest, next core.EventProducer) (core.EventStream, error) {
		threadID, runID := req.ThreadID, req.RunID
		upstream, err := next.Run(ctx, req)
		if err != nil {
			return nil, err
		}

		return middleware.Transform(upstream, func(_ context.Context, event events.Event) ([]events.Event, error) {
			if e, ok := event.(*events.RunStartedEvent); ok {
				threadID, runID = e.ThreadID, e.RunID
			}
			subject := Subject(prefix, threadID, runID)
			if err := publish(pub, subject, event); err != nil {
				logger.WithError(err).WithFields(logrus.Fields{
					"subject":    subject,
					"event_type": event.Type(),
				}).Warn("failed to publish event")
			}
			return []events.Event{event}, nil
		}, nil), nil
	})
}

func publish(pub Publisher, subject string, event events.Event) error {
	data, err := event.ToJSON()
	if err != nil {
		return err
	}
	return pub.Publish(subject, data)
}

// Subscribe delivers the events published on subject to fn. Wildcards are
// allowed, so prefix+".>" follows every run. Messages that are not valid
// events are dropped.
func Subscribe(conn *nats.Conn, subject string, fn func(subject string, event events.Event)) (*nats.Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("handler is required")
	}
	return conn.Subscribe(subject, func(msg *nats.Msg) {
		event, err := events.EventFromJSON(msg.Data)
		if err != nil {
			logrus.WithError(err).WithField("subject", msg.Subject).Warn("dropping invalid event")
			return
		}
		fn(msg.Subject, event)
	})
}
