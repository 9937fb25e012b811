package ws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/transport"
)

// maxCloseReason is the longest close reason a control frame can carry.
const maxCloseReason = 123

// Handler serves a producer over WebSocket.
type Handler struct {
	producer core.EventProducer
	upgrader websocket.Upgrader
	logger   logrus.FieldLogger
}

// NewHandler returns a handler serving producer. A nil logger uses the
// logrus standard logger.
func NewHandler(producer core.EventProducer, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		producer: producer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, req, err := Accept(w, r, &h.upgrader)
	if err != nil {
		h.logger.WithError(err).Debug("websocket handshake failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go watchClose(conn, cancel)

	stream, err := h.producer.Run(ctx, req)
	if err != nil {
		h.logger.WithError(err).WithField("thread_id", req.ThreadID).Warn("run failed to start")
		CloseWithError(conn, err)
		return
	}
	if err := WriteStream(ctx, conn, stream); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"thread_id": req.ThreadID,
			"run_id":    req.RunID,
		}).Warn("event stream ended with error")
		CloseWithError(conn, err)
	}
}

// Accept upgrades the connection and reads the run request from the first
// message. On a bad request the connection is closed with a policy error.
func Accept(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader) (*websocket.Conn, *core.RunRequest, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, nil, err
	}
	conn.SetReadLimit(transport.MaxRequestSize)

	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, nil, &core.TransportError{Operation: "read request", Err: err}
	}
	req, err := transport.DecodeRequest(bytes.NewReader(data))
	if err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, err.Error())
		conn.Close()
		return nil, nil, err
	}
	return conn, req, nil
}

// WriteStream sends every event of stream as a text message and ends with
// a normal close frame. It closes stream.
func WriteStream(ctx context.Context, conn *websocket.Conn, stream core.EventStream) error {
	defer stream.Close()
	for {
		event, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			closeWith(conn, websocket.CloseNormalClosure, "")
			return nil
		}
		if err != nil {
			return err
		}
		data, err := event.ToJSON()
		if err != nil {
			return &core.EncodingError{Format: "json", EventType: string(event.Type()), Err: err}
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return &core.TransportError{Operation: "write", Err: err}
		}
	}
}

// CloseWithError ends the connection with an internal error close frame
// carrying err's text.
func CloseWithError(conn *websocket.Conn, err error) {
	closeWith(conn, websocket.CloseInternalServerErr, err.Error())
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, truncateReason(reason))
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
}

// truncateReason cuts reason to maxCloseReason bytes without splitting a
// UTF-8 sequence.
func truncateReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	n := maxCloseReason
	for n > 0 && !utf8.RuneStart(reason[n]) {
		n--
	}
	return reason[:n]
}

// watchClose reads until the peer goes away so that close frames are
// processed, then cancels the run.
func watchClose(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
