package codec

import (
	"github.com/golang/snappy"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Snappy wraps another codec and snappy-compresses its output. Worth it on
// slow links carrying repetitive payloads (logs, telemetry); skip it for
// small binary messages, where the framing overhead dominates.
type Snappy struct {
	Inner Codec
}

func (c Snappy) Encode(v any, buf []byte) (int, error) {
	scratch := make([]byte, len(buf))
	n, err := c.Inner.Encode(v, scratch)
	if err != nil {
		return 0, err
	}
	compressed := snappy.Encode(nil, scratch[:n])
	if len(compressed) > len(buf) {
		return 0, status.Errorf(codes.ResourceExhausted,
			"codec: compressed size %d exceeds buffer size %d", len(compressed), len(buf))
	}
	return copy(buf, compressed), nil
}

func (c Snappy) Decode(data []byte, v any) error {
	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return status.Errorf(codes.DataLoss, "codec: snappy decode failed: %v", err)
	}
	return c.Inner.Decode(decompressed, v)
}

func (c Snappy) Name() string { return "snappy+" + c.Inner.Name() }
