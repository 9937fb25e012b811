package httpsse

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ag-ui/go-engine/internal/testutil"
	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/messages"
)

func TestNewProducer(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{"http", "http://localhost:8080/agents/a", false},
		{"https", "https://api.example.com/run", false},
		{"empty", "", true},
		{"wrong scheme", "ws://localhost:8080", true},
		{"relative", "/agents/a", true},
		{"malformed", "http://[::1:80", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProducer(tt.endpoint)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var configErr *core.ConfigError
			assert.True(t, errors.As(err, &configErr))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	script := testutil.Run("t", "r", testutil.TextMessage("m1", "line one\nline two")...)
	agent := testutil.NewScriptedProducer(script)
	srv := httptest.NewServer(NewHandler(agent, nil))
	defer srv.Close()

	producer, err := NewProducer(srv.URL, WithHeader("Authorization", "Bearer token"))
	require.NoError(t, err)

	req := &core.RunRequest{
		ThreadID: "t",
		RunID:    "r",
		State:    map[string]any{"n": 1.0},
		Messages: messages.List{messages.NewUserMessage("hi")},
	}
	stream, err := producer.Run(context.Background(), req)
	require.NoError(t, err)
	out, err := testutil.Collect(context.Background(), stream)
	require.NoError(t, err)

	assert.Equal(t, testutil.Types(script), testutil.Types(out))
	assert.Equal(t, "line one\nline two", out[2].(*events.TextMessageContentEvent).Delta)

	received := agent.Requests()
	require.Len(t, received, 1)
	assert.Equal(t, "t", received[0].ThreadID)
	assert.Equal(t, map[string]any{"n": 1.0}, received[0].State)
	require.Len(t, received[0].Messages, 1)
	assert.Equal(t, req.Messages[0].GetID(), received[0].Messages[0].GetID())
}

func TestUnparsableFramesSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, ": keep-alive\n\n")
		io.WriteString(w, `data: {"type":"RUN_STARTED","threadId":"t","runId":"r"}`+"\n\n")
		io.WriteString(w, "data: not json\n\n")
		io.WriteString(w, `data: {"type":"NOT_AN_EVENT"}`+"\n\n")
		io.WriteString(w, `data: {"type":"RUN_FINISHED","threadId":"t","runId":"r"}`+"\n\n")
	}))
	defer srv.Close()

	logger, hook := logtest.NewNullLogger()
	producer, err := NewProducer(srv.URL, WithLogger(logger))
	require.NoError(t, err)

	stream, err := producer.Run(context.Background(), &core.RunRequest{ThreadID: "t", RunID: "r"})
	require.NoError(t, err)
	out, err := testutil.Collect(context.Background(), stream)
	require.NoError(t, err)

	assert.Equal(t, []events.EventType{events.EventTypeRunStarted, events.EventTypeRunFinished}, testutil.Types(out))
	assert.Len(t, hook.AllEntries(), 2)
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	producer, err := NewProducer(srv.URL)
	require.NoError(t, err)

	_, err = producer.Run(context.Background(), &core.RunRequest{})
	var transportErr *core.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusServiceUnavailable, transportErr.StatusCode)
	assert.Contains(t, transportErr.Error(), "agent unavailable")
}

func TestBrokenStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"type":"RUN_STARTED","threadId":"t","runId":"r"}`+"\n\n")
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer srv.Close()

	producer, err := NewProducer(srv.URL)
	require.NoError(t, err)
	stream, err := producer.Run(context.Background(), &core.RunRequest{})
	require.NoError(t, err)

	out, err := testutil.Collect(context.Background(), stream)
	require.Len(t, out, 1)
	var transportErr *core.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "read", transportErr.Operation)
}

func TestCancelUnblocksNext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"type":"RUN_STARTED","threadId":"t","runId":"r"}`+"\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	producer, err := NewProducer(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := producer.Run(ctx, &core.RunRequest{})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next(ctx)
	require.NoError(t, err)
	cancel()
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandlerRejects(t *testing.T) {
	handler := NewHandler(testutil.NewScriptedProducer(), nil)

	t.Run("method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("producer error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"threadId":"t","runId":"r"}`)))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestWriteStreamFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteStream(context.Background(), rec, core.SliceStream(events.NewRunStartedEvent("t", "r")))
	require.NoError(t, err)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: {"))
	assert.True(t, strings.HasSuffix(body, "}\n\n"))
	assert.Contains(t, body, `"type":"RUN_STARTED"`)
}
