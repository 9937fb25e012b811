// Package httpsse carries runs over HTTP with Server-Sent Events.
//
// The client POSTs the JSON run request with "Accept: text/event-stream" and
// reads one event per frame. Frames that do not hold a valid event are
// skipped with a warning; a broken connection ends the stream with a
// *core.TransportError.
package httpsse
