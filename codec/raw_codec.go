package codec

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Raw passes payload bytes through untouched. Requests are []byte, responses
// are decoded into *[]byte. This is the strategy for methods whose handlers
// want to do their own serialization directly in the frame buffer.
type Raw struct{}

func (Raw) Encode(v any, buf []byte) (int, error) {
	b, ok := v.([]byte)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "codec: %T is not a []byte", v)
	}
	if len(b) > len(buf) {
		return 0, status.Errorf(codes.ResourceExhausted,
			"codec: payload size %d exceeds buffer size %d", len(b), len(buf))
	}
	return copy(buf, b), nil
}

func (Raw) Decode(data []byte, v any) error {
	p, ok := v.(*[]byte)
	if !ok {
		return status.Errorf(codes.InvalidArgument, "codec: %T is not a *[]byte", v)
	}
	// Copy out: the input aliases a frame buffer that is reused after this
	// call returns.
	*p = append((*p)[:0], data...)
	return nil
}

func (Raw) Name() string { return "raw" }
