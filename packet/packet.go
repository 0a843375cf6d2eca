// Package packet implements the binary envelope exchanged between RPC clients
// and servers.
//
// The envelope is a protobuf-compatible tag-length-value structure with fixed
// field numbers:
//
//	field       number  wire kind
//	payload     5       length-delimited
//	type        1       varint
//	channel_id  2       varint
//	service_id  3       fixed32
//	method_id   4       fixed32
//	status      6       varint
//
// Fields are encoded in the order listed above: the payload comes first so
// that payload bytes written near the start of a shared frame buffer can be
// wrapped in place without moving them to the end. The channel package
// partitions each frame buffer accordingly (see channel.PayloadBuffer).
//
// A Packet never owns its payload. On decode the Payload field aliases the
// input buffer; on encode it may alias the destination buffer. Callers must
// not hold the slice beyond the surrounding encode/decode call.
package packet

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protowire"
)

// Type identifies the kind of a packet. Client-originated types are even,
// server-originated types are odd. The parity is an aid for debugging packet
// dumps, not a protocol invariant.
type Type uint8

const (
	TypeRequest         Type = 0 // client → server: start an RPC
	TypeResponse        Type = 1 // server → client: unary response or stream message
	TypeClientStream    Type = 2 // client → server: stream message (reserved)
	TypeServerStreamEnd Type = 3 // server → client: stream terminated with status
	TypeClientError     Type = 4 // client → server: abort, no response expected
	TypeServerError     Type = 5 // server → client: RPC failed with status
	TypeCancel          Type = 6 // client → server: cancel the RPC

	// TypeClientStreamEnd deliberately skips 7 to keep the even/odd origin
	// convention intact.
	TypeClientStreamEnd Type = 8 // client → server: client stream done (reserved)
)

// Valid reports whether t is a known packet type.
func (t Type) Valid() bool {
	return t <= TypeCancel || t == TypeClientStreamEnd
}

// ServerBound reports whether packets of this type travel client → server.
func (t Type) ServerBound() bool {
	return t%2 == 0
}

func (t Type) String() string {
	switch t {
	case TypeRequest:
		return "REQUEST"
	case TypeResponse:
		return "RESPONSE"
	case TypeClientStream:
		return "CLIENT_STREAM"
	case TypeServerStreamEnd:
		return "SERVER_STREAM_END"
	case TypeClientError:
		return "CLIENT_ERROR"
	case TypeServerError:
		return "SERVER_ERROR"
	case TypeCancel:
		return "CANCEL"
	case TypeClientStreamEnd:
		return "CLIENT_STREAM_END"
	}
	return "UNKNOWN"
}

// Envelope field numbers. Fixed forever: both sides must agree without a
// handshake.
const (
	fieldType      = 1
	fieldChannelID = 2
	fieldServiceID = 3
	fieldMethodID  = 4
	fieldPayload   = 5
	fieldStatus    = 6
)

// Packet is one wire message. ServiceID and MethodID are stable hashes of the
// service and method names (see the ids package), so client and server agree
// on them without exchanging names.
type Packet struct {
	Type      Type
	ChannelID uint32
	ServiceID uint32
	MethodID  uint32
	Payload   []byte     // borrowed view, valid only during the enclosing call
	Status    codes.Code // meaningful on RESPONSE, SERVER_ERROR, SERVER_STREAM_END
}

// New builds a packet addressed to the given call identity.
func New(t Type, channelID, serviceID, methodID uint32, payload []byte) Packet {
	return Packet{
		Type:      t,
		ChannelID: channelID,
		ServiceID: serviceID,
		MethodID:  methodID,
		Payload:   payload,
	}
}

// Reply builds an empty server-originated packet echoing the identity of req.
func Reply(t Type, req Packet, code codes.Code) Packet {
	return Packet{
		Type:      t,
		ChannelID: req.ChannelID,
		ServiceID: req.ServiceID,
		MethodID:  req.MethodID,
		Status:    code,
	}
}

const maxVarint32 = 5 // worst-case varint encoding of a uint32

// MinEncodedSizeBytes returns the worst-case envelope overhead of a packet,
// excluding payload bytes. Callers that share one buffer between envelope and
// payload reserve this many bytes up front and write the payload into the
// remainder.
func MinEncodedSizeBytes() int {
	const tag = 1 // every envelope field number fits in a single tag byte
	return tag + maxVarint32 + // payload length prefix
		tag + 1 + // type (values 0–8)
		tag + maxVarint32 + // channel id
		tag + 4 + // service id (fixed32)
		tag + 4 + // method id (fixed32)
		tag + maxVarint32 // status
}

// carriesStatus reports whether the status field is meaningful for this type.
// A zero status on other types (e.g. a plain request) is omitted on the wire.
func (p Packet) carriesStatus() bool {
	switch p.Type {
	case TypeResponse, TypeServerStreamEnd, TypeClientError, TypeServerError:
		return true
	}
	return p.Status != codes.OK
}

// EncodedSize returns the exact number of bytes Encode will produce.
func (p Packet) EncodedSize() int {
	n := 0
	if len(p.Payload) > 0 {
		n += 1 + protowire.SizeVarint(uint64(len(p.Payload))) + len(p.Payload)
	}
	n += 1 + protowire.SizeVarint(uint64(p.Type))
	n += 1 + protowire.SizeVarint(uint64(p.ChannelID))
	n += 1 + 4 // service id
	n += 1 + 4 // method id
	if p.carriesStatus() {
		n += 1 + protowire.SizeVarint(uint64(p.Status))
	}
	return n
}

// Encode writes the packet into buf and returns the number of bytes written.
// The write is all-or-nothing: if buf is too small, Encode returns
// ResourceExhausted and buf is left untouched beyond its original contents.
//
// p.Payload may alias buf (the usual case when the payload was written into a
// channel frame buffer): the payload is only ever moved toward the start of
// buf, which append handles as an overlapping forward copy.
func (p Packet) Encode(buf []byte) (int, error) {
	need := p.EncodedSize()
	if need > len(buf) {
		return 0, status.Errorf(codes.ResourceExhausted,
			"packet: encoded size %d exceeds buffer size %d", need, len(buf))
	}

	b := buf[:0]
	if len(p.Payload) > 0 {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(len(p.Payload)))
		b = append(b, p.Payload...)
	}
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Type))
	b = protowire.AppendTag(b, fieldChannelID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.ChannelID))
	b = protowire.AppendTag(b, fieldServiceID, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, p.ServiceID)
	b = protowire.AppendTag(b, fieldMethodID, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, p.MethodID)
	if p.carriesStatus() {
		b = protowire.AppendTag(b, fieldStatus, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.Status))
	}
	return len(b), nil
}

// Decode parses an envelope from data. The returned packet's Payload aliases
// data. Malformed input of any kind (truncated tag, unknown field, wire-type
// mismatch, bad varint) yields DataLoss; Decode never panics, so a corrupt
// packet can always be dropped without touching any call state.
func Decode(data []byte) (Packet, error) {
	var p Packet
	for len(data) > 0 {
		num, wtyp, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Packet{}, dataLoss("truncated or invalid tag")
		}
		data = data[n:]

		switch num {
		case fieldType:
			v, n := consumeVarint(data, wtyp)
			if n < 0 {
				return Packet{}, dataLoss("bad type field")
			}
			if !Type(v).Valid() || uint64(Type(v)) != v {
				return Packet{}, dataLoss("unknown packet type")
			}
			p.Type = Type(v)
			data = data[n:]
		case fieldChannelID:
			v, n := consumeVarint(data, wtyp)
			if n < 0 || v > 0xFFFFFFFF {
				return Packet{}, dataLoss("bad channel id field")
			}
			p.ChannelID = uint32(v)
			data = data[n:]
		case fieldServiceID:
			if wtyp != protowire.Fixed32Type {
				return Packet{}, dataLoss("bad service id field")
			}
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return Packet{}, dataLoss("bad service id field")
			}
			p.ServiceID = v
			data = data[n:]
		case fieldMethodID:
			if wtyp != protowire.Fixed32Type {
				return Packet{}, dataLoss("bad method id field")
			}
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return Packet{}, dataLoss("bad method id field")
			}
			p.MethodID = v
			data = data[n:]
		case fieldPayload:
			if wtyp != protowire.BytesType {
				return Packet{}, dataLoss("bad payload field")
			}
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return Packet{}, dataLoss("bad payload field")
			}
			p.Payload = v
			data = data[n:]
		case fieldStatus:
			v, n := consumeVarint(data, wtyp)
			if n < 0 {
				return Packet{}, dataLoss("bad status field")
			}
			p.Status = codes.Code(v)
			data = data[n:]
		default:
			return Packet{}, dataLoss("unknown field number")
		}
	}
	return p, nil
}

func consumeVarint(data []byte, wtyp protowire.Type) (uint64, int) {
	if wtyp != protowire.VarintType {
		return 0, -1
	}
	return protowire.ConsumeVarint(data)
}

func dataLoss(msg string) error {
	return status.Errorf(codes.DataLoss, "packet: malformed envelope: %s", msg)
}
