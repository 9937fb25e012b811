package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/middleware"
	"github.com/ag-ui/go-engine/pkg/session"
	grpctransport "github.com/ag-ui/go-engine/pkg/transport/grpc"
	"github.com/ag-ui/go-engine/pkg/transport/httpsse"
	"github.com/ag-ui/go-engine/pkg/transport/natsbridge"
	"github.com/ag-ui/go-engine/pkg/transport/ws"
)

// AgentMetadataKey is the gRPC metadata key naming the agent to run.
const AgentMetadataKey = "agui-agent"

// Server hosts agents over HTTP (SSE and WebSocket) and, optionally, gRPC.
type Server struct {
	config   Config
	logger   logrus.FieldLogger
	registry *session.Registry
	stages   []middleware.Middleware
	limiter  *rate.Limiter

	tee       natsbridge.Publisher
	teePrefix string

	mu     sync.RWMutex
	agents map[string]core.EventProducer

	httpServer *http.Server
	grpcServer *grpc.Server
}

// Config contains configuration options for the server.
type Config struct {
	// Address is the HTTP listen address (e.g., ":8080").
	Address string `yaml:"address"`

	// GRPCAddress enables the gRPC agent service when set.
	GRPCAddress string `yaml:"grpc_address"`

	// DefaultAgent answers gRPC calls that do not name an agent.
	DefaultAgent string `yaml:"default_agent"`

	// RateLimit is the number of run requests accepted per second across
	// the server. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	// H2C serves HTTP/2 without TLS.
	H2C bool `yaml:"h2c"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig returns the configuration used for zero fields.
func DefaultConfig() Config {
	return Config{
		Address:           ":8080",
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}

func (c *Config) validate() error {
	defaults := DefaultConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if c.RateLimit < 0 {
		return &core.ConfigError{Field: "rate_limit", Value: c.RateLimit, Err: core.ErrInvalidConfig}
	}
	if c.RateBurst < 0 {
		return &core.ConfigError{Field: "rate_burst", Value: c.RateBurst, Err: core.ErrInvalidConfig}
	}
	if c.ReadHeaderTimeout < 0 {
		return &core.ConfigError{Field: "read_header_timeout", Value: c.ReadHeaderTimeout, Err: core.ErrInvalidConfig}
	}
	if c.ShutdownTimeout < 0 {
		return &core.ConfigError{Field: "shutdown_timeout", Value: c.ShutdownTimeout, Err: core.ErrInvalidConfig}
	}
	return nil
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSessions records every run in reg and serializes runs per thread.
func WithSessions(reg *session.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithMiddleware adds stages in front of every registered agent.
func WithMiddleware(stages ...middleware.Middleware) Option {
	return func(s *Server) {
		s.stages = append(s.stages, stages...)
	}
}

// WithEventTee publishes every served event to NATS under prefix.
func WithEventTee(pub natsbridge.Publisher, prefix string) Option {
	return func(s *Server) {
		s.tee, s.teePrefix = pub, prefix
	}
}

// New creates a new server with the specified configuration.
func New(config Config, opts ...Option) (*Server, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	s := &Server{
		config: config,
		logger: logrus.StandardLogger(),
		agents: make(map[string]core.EventProducer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst == 0 {
			burst = max(1, int(config.RateLimit))
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	return s, nil
}

// RegisterAgent serves producer under name, replacing any agent previously
// registered with that name.
func (s *Server) RegisterAgent(name string, producer core.EventProducer) error {
	if name == "" {
		return &core.ConfigError{Field: "name", Value: name, Err: core.ErrInvalidConfig}
	}
	if producer == nil {
		return &core.ConfigError{Field: "producer", Err: core.ErrInvalidConfig}
	}

	stages := make([]middleware.Middleware, 0, len(s.stages)+3)
	if s.registry != nil {
		stages = append(stages, RecordSessions(s.registry, s.logger))
	}
	if s.tee != nil {
		stages = append(stages, natsbridge.Tee(s.tee, s.teePrefix, s.logger))
	}
	stages = append(stages, middleware.Logging(s.logger.WithField("agent", name)))
	stages = append(stages, s.stages...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[name] = middleware.Chain(producer, stages...)
	return nil
}

// UnregisterAgent removes an agent from the server.
func (s *Server) UnregisterAgent(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, name)
}

// Agent returns the served producer registered under name.
func (s *Server) Agent(name string) (core.EventProducer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, exists := s.agents[name]
	return agent, exists
}

// Agents returns the registered names in order.
func (s *Server) Agents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.agents))
	for name := range s.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handler returns the HTTP handler of the server:
//
//	GET    /healthz
//	GET    /agents
//	POST   /agents/{name}      run over SSE
//	GET    /agents/{name}/ws   run over WebSocket
//	GET    /threads/{id}       stored session (with sessions enabled)
//	DELETE /threads/{id}
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /agents", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"agents": s.Agents()})
	})
	mux.Handle("POST /agents/{name}", s.limit(s.routeAgent(func(p core.EventProducer) http.Handler {
		return httpsse.NewHandler(p, s.logger)
	})))
	mux.Handle("GET /agents/{name}/ws", s.limit(s.routeAgent(func(p core.EventProducer) http.Handler {
		return ws.NewHandler(p, s.logger)
	})))
	if s.registry != nil {
		mux.HandleFunc("GET /threads/{id}", s.getThread)
		mux.HandleFunc("DELETE /threads/{id}", s.deleteThread)
	}

	var h http.Handler = mux
	if s.config.H2C {
		h = h2c.NewHandler(h, &http2.Server{})
	}
	return h
}

func (s *Server) routeAgent(serve func(core.EventProducer) http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		agent, ok := s.Agent(name)
		if !ok {
			http.Error(w, fmt.Sprintf("%v: %s", core.ErrAgentNotFound, name), http.StatusNotFound)
			return
		}
		serve(agent).ServeHTTP(w, r)
	})
}

func (s *Server) limit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, core.ErrRateLimited.Error(), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, session.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) deleteThread(w http.ResponseWriter, r *http.Request) {
	err := s.registry.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, session.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// grpcProducer routes gRPC runs to the agent named in the call metadata,
// or to the default agent.
func (s *Server) grpcProducer() core.EventProducer {
	return core.ProducerFunc(func(ctx context.Context, req *core.RunRequest) (core.EventStream, error) {
		name := s.config.DefaultAgent
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(AgentMetadataKey); len(v) > 0 {
				name = v[0]
			}
		}
		agent, ok := s.Agent(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", core.ErrAgentNotFound, name)
		}
		return agent.Run(ctx, req)
	})
}

// ListenAndServe listens on the configured addresses and serves until ctx
// is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Address, err)
	}
	var grpcLis net.Listener
	if s.config.GRPCAddress != "" {
		grpcLis, err = net.Listen("tcp", s.config.GRPCAddress)
		if err != nil {
			lis.Close()
			return fmt.Errorf("listen %s: %w", s.config.GRPCAddress, err)
		}
	}
	return s.Serve(ctx, lis, grpcLis)
}

// Serve serves HTTP on lis and, when grpcLis is not nil, the gRPC agent
// service on grpcLis. It returns after ctx is done and both servers have
// stopped, or as soon as one of them fails.
func (s *Server) Serve(ctx context.Context, lis, grpcLis net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}
	httpServer := s.httpServer
	var grpcServer *grpc.Server
	if grpcLis != nil {
		grpcServer = grpc.NewServer()
		grpctransport.Register(grpcServer, s.grpcProducer(), s.logger)
		s.grpcServer = grpcServer
	}
	s.mu.Unlock()

	g.Go(func() error {
		s.logger.WithField("address", lis.Addr().String()).Info("HTTP server listening")
		if err := httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if grpcServer != nil {
		g.Go(func() error {
			s.logger.WithField("address", grpcLis.Addr().String()).Info("gRPC server listening")
			return grpcServer.Serve(grpcLis)
		})
	}
	if s.registry != nil {
		g.Go(func() error {
			<-s.registry.StartCleanup(ctx)
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	httpServer, grpcServer := s.httpServer, s.grpcServer
	s.mu.RUnlock()

	if grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			grpcServer.Stop()
		}
	}
	if httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
