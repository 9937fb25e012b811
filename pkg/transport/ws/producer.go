package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/transport"
)

const closeTimeout = time.Second

// Producer runs agents behind a WebSocket endpoint. Each run opens its own
// connection: the request is sent as the first text message and every
// following text message is one event.
type Producer struct {
	endpoint string
	dialer   *websocket.Dialer
	header   http.Header
	logger   logrus.FieldLogger
}

// Option configures a Producer.
type Option func(*Producer)

// WithDialer sets the dialer. The default is websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(p *Producer) {
		p.dialer = d
	}
}

// WithHeader adds a header to the handshake request.
func WithHeader(key, value string) Option {
	return func(p *Producer) {
		p.header.Add(key, value)
	}
}

// WithLogger sets the logger used to report skipped messages.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Producer) {
		p.logger = logger
	}
}

// NewProducer creates a producer for a ws or wss endpoint.
func NewProducer(endpoint string, opts ...Option) (*Producer, error) {
	u, err := transport.ParseEndpoint("endpoint", endpoint, "ws", "wss")
	if err != nil {
		return nil, err
	}
	p := &Producer{
		endpoint: u.String(),
		dialer:   websocket.DefaultDialer,
		header:   make(http.Header),
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run implements core.EventProducer.
func (p *Producer) Run(ctx context.Context, req *core.RunRequest) (core.EventStream, error) {
	conn, resp, err := p.dialer.DialContext(ctx, p.endpoint, p.header)
	if err != nil {
		te := &core.TransportError{Operation: "dial", Err: err}
		if resp != nil {
			te.StatusCode = resp.StatusCode
		}
		return nil, te
	}

	data, err := json.Marshal(req)
	if err != nil {
		conn.Close()
		return nil, &core.EncodingError{Format: "json", EventType: "RunRequest", Err: err}
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		return nil, &core.TransportError{Operation: "send request", Err: err}
	}

	s := &eventStream{
		conn: conn,
		logger: p.logger.WithFields(logrus.Fields{
			"endpoint":  p.endpoint,
			"thread_id": req.ThreadID,
			"run_id":    req.RunID,
		}),
	}
	// a blocked read only returns once the connection is closed
	s.stop = context.AfterFunc(ctx, func() { conn.Close() })
	return s, nil
}

type eventStream struct {
	conn   *websocket.Conn
	logger logrus.FieldLogger
	stop   func() bool
	once   sync.Once
}

func (s *eventStream) Next(ctx context.Context) (events.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Text != "" {
				return nil, &core.TransportError{Operation: "read", Err: errors.New(closeErr.Text)}
			}
			return nil, &core.TransportError{Operation: "read", Err: err}
		}
		if kind != websocket.TextMessage {
			continue
		}

		event, err := events.EventFromJSON(data)
		if err != nil {
			s.logger.WithError(err).Warn("skipping unparsable message")
			continue
		}
		return event, nil
	}
}

func (s *eventStream) Close() error {
	var err error
	s.once.Do(func() {
		s.stop()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
		err = s.conn.Close()
	})
	return err
}
