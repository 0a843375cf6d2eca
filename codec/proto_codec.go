package codec

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// Proto serializes protobuf messages. This is the default strategy for
// generated services: ids are hashed from the proto names and payloads are
// the proto wire format, so any protobuf peer can interoperate.
type Proto struct{}

func (Proto) Encode(v any, buf []byte) (int, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "codec: %T is not a proto.Message", v)
	}
	opts := proto.MarshalOptions{}
	if size := opts.Size(m); size > len(buf) {
		return 0, status.Errorf(codes.ResourceExhausted,
			"codec: message size %d exceeds buffer size %d", size, len(buf))
	}
	// MarshalAppend stays within buf's capacity, so this cannot reallocate.
	out, err := opts.MarshalAppend(buf[:0], m)
	if err != nil {
		return 0, status.Errorf(codes.Unknown, "codec: marshal failed: %v", err)
	}
	return len(out), nil
}

func (Proto) Decode(data []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return status.Errorf(codes.InvalidArgument, "codec: %T is not a proto.Message", v)
	}
	if err := proto.Unmarshal(data, m); err != nil {
		return status.Errorf(codes.DataLoss, "codec: unmarshal failed: %v", err)
	}
	return nil
}

func (Proto) Name() string { return "proto" }
