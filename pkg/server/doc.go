// Package server hosts AG-UI agents.
//
// Each registered agent is an EventProducer reachable over SSE at
// POST /agents/{name} and over WebSocket at GET /agents/{name}/ws. When
// Config.GRPCAddress is set the same agents are served by the gRPC agent
// service; calls pick an agent with the "agui-agent" metadata key.
//
// With WithSessions, every run is verified and folded into its thread's
// session, and runs on the same thread are served one at a time.
//
// Example usage:
//
//	reg, err := session.NewRegistry(session.NewMemoryStore())
//	if err != nil {
//		log.Fatal(err)
//	}
//	s, err := server.New(server.Config{Address: ":8080"}, server.WithSessions(reg))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := s.RegisterAgent("my-agent", myAgent); err != nil {
//		log.Fatal(err)
//	}
//	if err := s.ListenAndServe(ctx); err != nil {
//		log.Fatal(err)
//	}
package server
