package httpsse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/encoding/sse"
	"github.com/ag-ui/go-engine/pkg/transport"
)

// maxErrorBody bounds how much of a non-200 response is kept for the error.
const maxErrorBody = 4 << 10

// Producer runs agents behind an HTTP endpoint that answers a POSTed run
// request with a text/event-stream body.
type Producer struct {
	endpoint string
	client   *http.Client
	header   http.Header
	logger   logrus.FieldLogger
}

// Option configures a Producer.
type Option func(*Producer)

// WithHTTPClient sets the HTTP client. The default is http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Producer) {
		p.client = c
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(p *Producer) {
		p.header.Add(key, value)
	}
}

// WithLogger sets the logger used to report skipped frames.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Producer) {
		p.logger = logger
	}
}

// NewProducer creates a producer for endpoint, which must be an http or
// https URL.
func NewProducer(endpoint string, opts ...Option) (*Producer, error) {
	u, err := transport.ParseEndpoint("endpoint", endpoint, "http", "https")
	if err != nil {
		return nil, err
	}
	p := &Producer{
		endpoint: u.String(),
		client:   http.DefaultClient,
		header:   make(http.Header),
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run implements core.EventProducer. Cancelling ctx aborts the request and
// unblocks a pending Next.
func (p *Producer) Run(ctx context.Context, req *core.RunRequest) (core.EventStream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &core.EncodingError{Format: "json", EventType: "RunRequest", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &core.TransportError{Operation: "build request", Err: err}
	}
	for key, values := range p.header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", sse.ContentType)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &core.TransportError{Operation: "connect", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &core.TransportError{
			Operation:  "run",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", bytes.TrimSpace(msg)),
		}
	}

	return &eventStream{
		body:   resp.Body,
		reader: sse.NewReader(resp.Body),
		logger: p.logger.WithFields(logrus.Fields{
			"endpoint":  p.endpoint,
			"thread_id": req.ThreadID,
			"run_id":    req.RunID,
		}),
	}, nil
}

type eventStream struct {
	body   io.ReadCloser
	reader *sse.Reader
	logger logrus.FieldLogger
	once   sync.Once
}

// Next returns the next event. Frames whose data is not a valid event are
// logged and skipped.
func (s *eventStream) Next(ctx context.Context) (events.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := s.reader.Next()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &core.TransportError{Operation: "read", Err: err}
		}
		if frame.Data == "" {
			continue
		}

		event, err := events.EventFromJSON([]byte(frame.Data))
		if err != nil {
			s.logger.WithError(err).WithField("frame_id", frame.ID).Warn("skipping unparsable frame")
			continue
		}
		return event, nil
	}
}

func (s *eventStream) Close() error {
	var err error
	s.once.Do(func() { err = s.body.Close() })
	return err
}
