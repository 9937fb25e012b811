// Package transport holds what the wire transports share: endpoint parsing
// and run request decoding.
//
// Each transport lives in its own subpackage and offers both halves of a
// connection. The client half is a core.EventProducer, so it plugs directly
// into client.NewAgent or a middleware chain. The server half serves any
// core.EventProducer.
//
//   - httpsse: POST the request, receive events as text/event-stream
//   - ws: WebSocket, one JSON text message per event
//   - grpc: server-streaming agui.v1.AgentService/Run over structpb messages
//   - natsbridge: a middleware stage publishing every event to NATS
//
// Example usage:
//
//	producer, err := httpsse.NewProducer("http://localhost:8080/agents/assistant")
//	if err != nil {
//		log.Fatal(err)
//	}
//	agent, err := client.NewAgent(producer, client.Config{})
package transport
