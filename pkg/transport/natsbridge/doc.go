// Package natsbridge mirrors agent event streams onto NATS subjects.
//
// Tee is a middleware stage: every event a producer emits is published as
// JSON on <prefix>.<threadId>.<runId> before it continues downstream, so
// other processes can follow runs without joining the HTTP connection.
//
//	conn, err := natsbridge.Connect("", "agui-server")
//	if err != nil {
//		return err
//	}
//	producer := middleware.Chain(agent, natsbridge.Tee(conn, "agui", logger))
package natsbridge
