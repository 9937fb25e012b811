// Package ws carries runs over WebSocket using gorilla/websocket.
//
// The client opens one connection per run and sends the run request as its
// first text message. The server answers with one JSON text message per
// event and a normal close frame when the run ends. A close frame with any
// other code ends the client's stream with a *core.TransportError.
package ws
