// Package core provides the foundational types shared by every layer of the
// engine: the run request, run identity, the event stream abstractions and
// the error taxonomy.
//
// Everything that can produce events for a run implements EventProducer: an
// HTTP or WebSocket transport, a gRPC client, a middleware chain, or an agent
// running in the same process. The consumer pulls events with
// EventStream.Next, so a slow consumer applies backpressure to the producer.
//
// Example usage:
//
//	import "github.com/ag-ui/go-engine/pkg/core"
//
//	echo := core.ProducerFunc(func(ctx context.Context, req *core.RunRequest) (core.EventStream, error) {
//		w, stream := core.Pipe()
//		go func() {
//			defer w.Close(nil)
//			_ = w.Send(ctx, events.NewRunStartedEvent(req.ThreadID, req.RunID))
//			_ = w.Send(ctx, events.NewRunFinishedEvent(req.ThreadID, req.RunID))
//		}()
//		return stream, nil
//	})
package core
