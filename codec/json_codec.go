package codec

import (
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// JSON serializes values with encoding/json. Useful for development and for
// peers without protobuf tooling; payloads are larger and slower than proto.
type JSON struct{}

func (JSON) Encode(v any, buf []byte) (int, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "codec: json marshal failed: %v", err)
	}
	if len(out) > len(buf) {
		return 0, status.Errorf(codes.ResourceExhausted,
			"codec: message size %d exceeds buffer size %d", len(out), len(buf))
	}
	return copy(buf, out), nil
}

func (JSON) Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return status.Errorf(codes.DataLoss, "codec: json unmarshal failed: %v", err)
	}
	return nil
}

func (JSON) Name() string { return "json" }
