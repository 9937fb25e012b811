package httpsse

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/encoding/sse"
	"github.com/ag-ui/go-engine/pkg/transport"
)

// Handler serves a producer over HTTP. Each POST carries a run request and
// is answered with the run's events as text/event-stream.
type Handler struct {
	producer core.EventProducer
	logger   logrus.FieldLogger
}

// NewHandler returns a handler serving producer. A nil logger uses the
// logrus standard logger.
func NewHandler(producer core.EventProducer, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{producer: producer, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := transport.DecodeRequest(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stream, err := h.producer.Run(r.Context(), req)
	if err != nil {
		h.logger.WithError(err).WithField("thread_id", req.ThreadID).Warn("run failed to start")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := WriteStream(r.Context(), w, stream); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"thread_id": req.ThreadID,
			"run_id":    req.RunID,
		}).Warn("event stream ended with error")
	}
}

// WriteStream writes the SSE response headers and then every event of
// stream as a "data: <json>" frame until the stream ends. It closes stream.
func WriteStream(ctx context.Context, w http.ResponseWriter, stream core.EventStream) error {
	defer stream.Close()

	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	enc := sse.NewEncoder(w)
	if err := enc.Flush(); err != nil {
		return &core.TransportError{Operation: "write", Err: err}
	}
	for {
		event, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := enc.WriteEvent(event); err != nil {
			return &core.TransportError{Operation: "write", Err: err}
		}
	}
}
