// Package encoding converts AG-UI events to and from wire formats.
//
// Supported formats:
//   - JSON: the canonical camelCase form shared by every AG-UI SDK
//   - Protocol Buffers: a google.protobuf.Struct with the same fields, used by
//     the gRPC transport
//
// Streaming framing for HTTP lives in the sse subpackage.
//
// Example usage:
//
//	import "github.com/ag-ui/go-engine/pkg/encoding"
//
//	codec, err := encoding.ForContentType("application/x-protobuf")
//	if err != nil {
//		return err
//	}
//	data, err := codec.Encode(event)
//	if err != nil {
//		return err
//	}
//	decoded, err := codec.Decode(data)
package encoding
