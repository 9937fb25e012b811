package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ag-ui/go-engine/internal/testutil"
	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/messages"
	"github.com/ag-ui/go-engine/pkg/session"
	grpctransport "github.com/ag-ui/go-engine/pkg/transport/grpc"
	"github.com/ag-ui/go-engine/pkg/transport/httpsse"
	"github.com/ag-ui/go-engine/pkg/transport/ws"
)

func quietLogger() logrus.FieldLogger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

func newServer(t *testing.T, config Config, opts ...Option) *Server {
	t.Helper()
	s, err := New(config, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return s
}

func serveHTTP(t *testing.T, s *Server) string {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func newRegistry(t *testing.T) *session.Registry {
	t.Helper()
	reg, err := session.NewRegistry(session.NewMemoryStore(), session.WithLogger(quietLogger()))
	require.NoError(t, err)
	return reg
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		field  string
	}{
		{name: "zero config", config: Config{}},
		{name: "rate limit", config: Config{RateLimit: 5, RateBurst: 10}},
		{name: "negative rate", config: Config{RateLimit: -1}, field: "rate_limit"},
		{name: "negative burst", config: Config{RateBurst: -1}, field: "rate_burst"},
		{name: "negative shutdown timeout", config: Config{ShutdownTimeout: -time.Second}, field: "shutdown_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.config)
			if tt.field == "" {
				require.NoError(t, err)
				assert.Equal(t, ":8080", s.config.Address)
				return
			}
			var configErr *core.ConfigError
			require.True(t, errors.As(err, &configErr))
			assert.Equal(t, tt.field, configErr.Field)
		})
	}
}

func TestRegisterAgent(t *testing.T) {
	s := newServer(t, Config{})

	var configErr *core.ConfigError
	assert.True(t, errors.As(s.RegisterAgent("", testutil.NewScriptedProducer()), &configErr))
	assert.True(t, errors.As(s.RegisterAgent("a", nil), &configErr))

	require.NoError(t, s.RegisterAgent("beta", testutil.NewScriptedProducer()))
	require.NoError(t, s.RegisterAgent("alpha", testutil.NewScriptedProducer()))
	assert.Equal(t, []string{"alpha", "beta"}, s.Agents())

	s.UnregisterAgent("beta")
	_, ok := s.Agent("beta")
	assert.False(t, ok)
}

func TestServeSSE(t *testing.T) {
	script := testutil.Run("t", "r", testutil.TextMessage("m1", "Hel", "lo")...)
	s := newServer(t, Config{})
	require.NoError(t, s.RegisterAgent("echo", testutil.NewScriptedProducer(script)))
	base := serveHTTP(t, s)

	producer, err := httpsse.NewProducer(base + "/agents/echo")
	require.NoError(t, err)
	stream, err := producer.Run(context.Background(), &core.RunRequest{ThreadID: "t", RunID: "r"})
	require.NoError(t, err)
	out, err := testutil.Collect(context.Background(), stream)
	require.NoError(t, err)
	assert.Equal(t, testutil.Types(script), testutil.Types(out))

	resp, err := http.Get(base + "/agents")
	require.NoError(t, err)
	defer resp.Body.Close()
	var listing struct {
		Agents []string `json:"agents"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.Equal(t, []string{"echo"}, listing.Agents)
}

func TestUnknownAgent(t *testing.T) {
	s := newServer(t, Config{})
	producer, err := httpsse.NewProducer(serveHTTP(t, s) + "/agents/missing")
	require.NoError(t, err)

	_, err = producer.Run(context.Background(), &core.RunRequest{})
	var transportErr *core.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusNotFound, transportErr.StatusCode)
}

func TestServeWebSocket(t *testing.T) {
	script := testutil.Run("t", "r", testutil.ToolCall("c1", "search", "", `{"q":1}`)...)
	s := newServer(t, Config{})
	require.NoError(t, s.RegisterAgent("echo", testutil.NewScriptedProducer(script)))
	base := serveHTTP(t, s)

	producer, err := ws.NewProducer("ws" + strings.TrimPrefix(base, "http") + "/agents/echo/ws")
	require.NoError(t, err)
	stream, err := producer.Run(context.Background(), &core.RunRequest{ThreadID: "t", RunID: "r"})
	require.NoError(t, err)
	out, err := testutil.Collect(context.Background(), stream)
	require.NoError(t, err)
	assert.Equal(t, testutil.Types(script), testutil.Types(out))
}

func TestRateLimit(t *testing.T) {
	s := newServer(t, Config{RateLimit: 0.5, RateBurst: 1})
	agent := testutil.NewScriptedProducer(testutil.Run("t", "r"), testutil.Run("t", "r2"))
	require.NoError(t, s.RegisterAgent("echo", agent))
	base := serveHTTP(t, s)

	post := func() int {
		resp, err := http.Post(base+"/agents/echo", "application/json", strings.NewReader(`{"threadId":"t","runId":"r"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusOK, post())
	assert.Equal(t, http.StatusTooManyRequests, post())
	assert.Len(t, agent.Requests(), 1)

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "only runs are limited")
}

func TestH2C(t *testing.T) {
	s := newServer(t, Config{H2C: true})
	base := serveHTTP(t, s)

	client := &http.Client{Transport: &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}}
	resp, err := client.Get(base + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 2, resp.ProtoMajor)
}

func TestSessionsRecorded(t *testing.T) {
	reg := newRegistry(t)
	script := testutil.Run("t1", "r1", testutil.Concat(
		testutil.TextMessage("m1", "hi ", "there"),
		[]events.Event{events.NewStateSnapshotEvent(map[string]any{"turns": 1.0})},
	)...)
	s := newServer(t, Config{}, WithSessions(reg))
	require.NoError(t, s.RegisterAgent("echo", testutil.NewScriptedProducer(script)))
	base := serveHTTP(t, s)

	producer, err := httpsse.NewProducer(base + "/agents/echo")
	require.NoError(t, err)
	user := messages.NewUserMessage("hello")
	stream, err := producer.Run(context.Background(), &core.RunRequest{
		ThreadID: "t1",
		RunID:    "r1",
		Messages: messages.List{user},
	})
	require.NoError(t, err)
	_, err = testutil.Collect(context.Background(), stream)
	require.NoError(t, err)

	sess, err := reg.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Runs)
	assert.Equal(t, "r1", sess.LastRunID)
	assert.Equal(t, map[string]any{"turns": 1.0}, sess.State)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, user.GetID(), sess.Messages[0].GetID())
	assistant, ok := sess.Messages[1].(*messages.AssistantMessage)
	require.True(t, ok)
	assert.Equal(t, "hi there", assistant.TextContent())

	resp, err := http.Get(base + "/threads/t1")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "t1", body["threadId"])
	assert.Equal(t, 1.0, body["runs"])

	req, err := http.NewRequest(http.MethodDelete, base+"/threads/t1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(base + "/threads/t1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeGRPC(t *testing.T) {
	script := testutil.Run("t", "r", testutil.TextMessage("m1", "hi")...)
	s := newServer(t, Config{DefaultAgent: "echo"})
	require.NoError(t, s.RegisterAgent("echo", testutil.NewScriptedProducer(script)))

	lis, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	grpcLis, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- s.Serve(ctx, lis, grpcLis)
	}()

	conn, err := grpc.NewClient(grpcLis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	stream, err := grpctransport.NewProducer(conn, quietLogger()).Run(context.Background(), &core.RunRequest{ThreadID: "t", RunID: "r"})
	require.NoError(t, err)
	out, err := testutil.Collect(context.Background(), stream)
	require.NoError(t, err)
	assert.Equal(t, testutil.Types(script), testutil.Types(out))

	resp, err := http.Get("http://" + lis.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
