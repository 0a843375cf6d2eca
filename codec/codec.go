// Package codec defines the pluggable serialization strategy used to convert
// typed request and response values to and from raw payload bytes.
//
// The RPC engine itself never interprets payload contents: every method is
// configured with a Codec, and the client and server call through this
// interface on the two payload boundaries (encode outbound, decode inbound).
// Encoding writes into a caller-supplied buffer — normally the payload region
// of a channel frame — so the strategy shares the engine's buffer ownership
// discipline instead of allocating its own.
package codec

// Codec serializes one payload type. Implementations must be goroutine-safe;
// all implementations in this package are stateless.
type Codec interface {
	// Encode serializes v into buf and returns the number of bytes written.
	// If buf cannot hold the encoded value, Encode returns ResourceExhausted
	// and writes nothing meaningful.
	Encode(v any, buf []byte) (int, error)

	// Decode deserializes data into v, which must be a pointer of the type
	// the codec expects. Undecodable input is reported as DataLoss.
	Decode(data []byte, v any) error

	// Name identifies the strategy for logging and debugging.
	Name() string
}
