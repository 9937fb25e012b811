package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ag-ui/go-engine/pkg/server"
	"github.com/ag-ui/go-engine/pkg/session"
	"github.com/ag-ui/go-engine/pkg/transport/natsbridge"
)

type serveFlags struct {
	address    string
	grpcAddr   string
	rateLimit  float64
	h2c        bool
	redisAddr  string
	nats       bool
	natsURL    string
	natsPrefix string
}

// serveCmd: agui serve [--address X] [--grpc X] [--redis X] [--nats]
func newServeCmd(g *globalFlags) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the echo agent",
		Long: `Serve hosts a development server with the built-in "echo" agent at
POST /agents/echo (SSE) and GET /agents/echo/ws (WebSocket). Sessions are kept
in memory unless --redis is given, and runs can be mirrored to NATS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return f.serve(ctx, cmd, g)
		},
	}
	cmd.Flags().StringVar(&f.address, "address", "", "HTTP listen address (default: :8080)")
	cmd.Flags().StringVar(&f.grpcAddr, "grpc", "", "gRPC listen address (default: disabled)")
	cmd.Flags().Float64Var(&f.rateLimit, "rate-limit", 0, "run requests per second (default: unlimited)")
	cmd.Flags().BoolVar(&f.h2c, "h2c", false, "serve HTTP/2 without TLS")
	cmd.Flags().StringVar(&f.redisAddr, "redis", "", "Redis address for shared sessions")
	cmd.Flags().BoolVar(&f.nats, "nats", false, "publish every event to NATS")
	cmd.Flags().StringVar(&f.natsURL, "nats-url", "", "NATS server URL (default: $NATS_URL)")
	cmd.Flags().StringVar(&f.natsPrefix, "nats-prefix", "", "NATS subject prefix (default: agui)")
	return cmd
}

func (f *serveFlags) serve(ctx context.Context, cmd *cobra.Command, g *globalFlags) error {
	cfg := g.config
	config := cfg.Server
	if cmd.Flags().Changed("address") {
		config.Address = f.address
	}
	if cmd.Flags().Changed("grpc") {
		config.GRPCAddress = f.grpcAddr
	}
	if cmd.Flags().Changed("rate-limit") {
		config.RateLimit = f.rateLimit
	}
	if cmd.Flags().Changed("h2c") {
		config.H2C = f.h2c
	}
	if config.DefaultAgent == "" {
		config.DefaultAgent = "echo"
	}

	var store session.Store = session.NewMemoryStore()
	redisAddr := cfg.Sessions.RedisAddr
	if f.redisAddr != "" {
		redisAddr = f.redisAddr
	}
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		store = session.NewRedisStore(rdb)
	}
	regOpts := []session.Option{session.WithLogger(g.logger)}
	if cfg.Sessions.IdleTimeout > 0 {
		regOpts = append(regOpts, session.WithIdleTimeout(cfg.Sessions.IdleTimeout))
	}
	reg, err := session.NewRegistry(store, regOpts...)
	if err != nil {
		return err
	}

	opts := []server.Option{server.WithLogger(g.logger), server.WithSessions(reg)}
	natsURL := cfg.NATS.URL
	if f.natsURL != "" {
		natsURL = f.natsURL
	}
	if f.nats || natsURL != "" {
		conn, err := natsbridge.Connect(natsURL, "agui-serve")
		if err != nil {
			return err
		}
		defer conn.Close()
		prefix := cfg.NATS.Prefix
		if f.natsPrefix != "" {
			prefix = f.natsPrefix
		}
		if prefix == "" {
			prefix = "agui"
		}
		opts = append(opts, server.WithEventTee(conn, prefix))
	}

	s, err := server.New(config, opts...)
	if err != nil {
		return err
	}
	if err := s.RegisterAgent("echo", echoAgent{}); err != nil {
		return err
	}
	return s.ListenAndServe(ctx)
}
