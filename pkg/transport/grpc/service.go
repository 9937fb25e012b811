package grpc

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/encoding"
)

// Names of the agent service.
const (
	ServiceName = "agui.v1.AgentService"
	MethodRun   = "/" + ServiceName + "/Run"
)

// AgentServiceServer is the server API of the agent service. The request
// and every streamed event are google.protobuf.Struct messages holding the
// JSON form of the run request and the events.
type AgentServiceServer interface {
	Run(req *structpb.Struct, stream grpc.ServerStream) error
}

var runStreamDesc = grpc.StreamDesc{
	StreamName:    "Run",
	Handler:       runHandler,
	ServerStreams: true,
}

// ServiceDesc describes the agent service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AgentServiceServer)(nil),
	Streams:     []grpc.StreamDesc{runStreamDesc},
	Metadata:    "agui/v1/agent.proto",
}

func runHandler(srv any, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(AgentServiceServer).Run(req, stream)
}

// Register serves producer as the agent service on s.
func Register(s grpc.ServiceRegistrar, producer core.EventProducer, logger logrus.FieldLogger) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s.RegisterService(&ServiceDesc, &server{producer: producer, logger: logger})
}

type server struct {
	producer core.EventProducer
	logger   logrus.FieldLogger
}

func (s *server) Run(in *structpb.Struct, stream grpc.ServerStream) error {
	var req core.RunRequest
	if err := encoding.FromStruct(in, &req); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode run request: %v", err)
	}
	if err := req.Validate(); err != nil {
		return status.Errorf(codes.InvalidArgument, "%v", err)
	}

	ctx := stream.Context()
	es, err := s.producer.Run(ctx, &req)
	if err != nil {
		return status.Errorf(codes.Internal, "start run: %v", err)
	}
	defer es.Close()

	for {
		event, err := es.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return status.FromContextError(ctxErr).Err()
			}
			s.logger.WithError(err).WithField("thread_id", req.ThreadID).Warn("event stream ended with error")
			return status.Errorf(codes.Internal, "event stream: %v", err)
		}
		msg, err := encoding.EventToStruct(event)
		if err != nil {
			return status.Errorf(codes.Internal, "encode event: %v", err)
		}
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
	}
}

// Producer runs agents through the agent service on a client connection.
type Producer struct {
	conn   grpc.ClientConnInterface
	logger logrus.FieldLogger
}

// NewProducer returns a producer calling the agent service over conn.
func NewProducer(conn grpc.ClientConnInterface, logger logrus.FieldLogger) *Producer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Producer{conn: conn, logger: logger}
}

// Run implements core.EventProducer.
func (p *Producer) Run(ctx context.Context, req *core.RunRequest) (core.EventStream, error) {
	in, err := encoding.ToStruct(req)
	if err != nil {
		return nil, &core.EncodingError{Format: "protobuf", EventType: "RunRequest", Err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	cs, err := p.conn.NewStream(ctx, &runStreamDesc, MethodRun)
	if err != nil {
		cancel()
		return nil, &core.TransportError{Operation: "open stream", Err: err}
	}
	if err := cs.SendMsg(in); err != nil {
		cancel()
		return nil, &core.TransportError{Operation: "send request", Err: err}
	}
	if err := cs.CloseSend(); err != nil {
		cancel()
		return nil, &core.TransportError{Operation: "send request", Err: err}
	}

	return &eventStream{
		cs:     cs,
		cancel: cancel,
		logger: p.logger.WithFields(logrus.Fields{"thread_id": req.ThreadID, "run_id": req.RunID}),
	}, nil
}

type eventStream struct {
	cs     grpc.ClientStream
	cancel context.CancelFunc
	logger logrus.FieldLogger
}

func (s *eventStream) Next(ctx context.Context) (events.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := new(structpb.Struct)
		if err := s.cs.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &core.TransportError{Operation: "receive", Err: err}
		}
		event, err := encoding.EventFromStruct(out)
		if err != nil {
			s.logger.WithError(err).Warn("skipping undecodable event")
			continue
		}
		return event, nil
	}
}

func (s *eventStream) Close() error {
	s.cancel()
	return nil
}
