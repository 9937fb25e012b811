// Package grpc carries runs over a server-streaming gRPC method,
// agui.v1.AgentService/Run.
//
// The service is described by hand rather than generated: both the request
// and the streamed events travel as google.protobuf.Struct values holding
// their JSON form, converted with the pkg/encoding helpers.
//
//	srv := grpc.NewServer()
//	aguigrpc.Register(srv, agent, logger)
//
//	conn, _ := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
//	producer := aguigrpc.NewProducer(conn, logger)
package grpc
