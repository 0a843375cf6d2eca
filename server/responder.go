package server

import (
	"embedrpc/channel"
	"embedrpc/packet"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Responder represents one in-progress server-side invocation. It starts
// Open, registered with its server, and transitions to Closed exactly once:
// through SendResponse (unary), Finish (streaming), Abandon, or a CANCEL
// packet from the client. Operations on a Closed responder return
// FailedPrecondition and change nothing.
//
// A responder holds at most one outbound frame buffer at a time, acquired
// lazily and returned to the channel when the payload is sent, the responder
// finishes, or the invocation is abandoned.
type Responder struct {
	server  *Server
	channel *channel.Channel
	service *Service
	method  *Method
	open    bool
	frame   []byte // held outbound buffer; nil when no write is in progress
}

// Open reports whether the invocation is still in progress.
func (r *Responder) Open() bool { return r.open }

// Channel returns the id of the channel the invocation arrived on.
func (r *Responder) Channel() uint32 { return r.channel.ID() }

// Method returns the invoked method's descriptor.
func (r *Responder) Method() *Method { return r.method }

// AcquirePayloadBuffer returns the region of the outbound frame available
// for payload bytes. Acquiring is idempotent: if a buffer is already held,
// the same region is returned.
func (r *Responder) AcquirePayloadBuffer() ([]byte, error) {
	if !r.open {
		return nil, closedErr()
	}
	if r.frame == nil {
		r.frame = r.channel.AcquireBuffer()
	}
	return channel.PayloadBuffer(r.frame), nil
}

// ReleasePayloadBuffer sends a RESPONSE packet carrying payload, which the
// caller normally wrote into the buffer from AcquirePayloadBuffer. The frame
// buffer returns to the channel whether or not the send succeeds.
func (r *Responder) ReleasePayloadBuffer(payload []byte) error {
	if !r.open {
		return closedErr()
	}
	frame := r.frame
	r.frame = nil
	if frame == nil {
		frame = r.channel.AcquireBuffer()
	}
	return r.channel.Send(frame, r.packet(packet.TypeResponse, payload, codes.OK))
}

// Write encodes v with the method's codec and sends it as one stream
// message. The responder stays Open; end the stream with Finish.
func (r *Responder) Write(v any) error {
	buf, err := r.AcquirePayloadBuffer()
	if err != nil {
		return err
	}
	n, err := r.method.Codec.Encode(v, buf)
	if err != nil {
		r.releaseHeldBuffer()
		return err
	}
	return r.ReleasePayloadBuffer(buf[:n])
}

// SendResponse completes a unary invocation: it sends a single RESPONSE
// packet carrying the encoded response and the given status, then closes the
// responder. No SERVER_STREAM_END follows; a unary client treats the
// response itself as terminal.
func (r *Responder) SendResponse(v any, code codes.Code) error {
	if !r.open {
		return closedErr()
	}
	buf, err := r.AcquirePayloadBuffer()
	if err != nil {
		return err
	}
	n, err := r.method.Codec.Encode(v, buf)
	if err != nil {
		r.releaseHeldBuffer()
		r.close()
		return err
	}
	frame := r.frame
	r.frame = nil
	r.close()
	return r.channel.Send(frame, r.packet(packet.TypeResponse, buf[:n], code))
}

// Finish ends a streaming invocation: any held unsent buffer is returned to
// the channel, one SERVER_STREAM_END carrying code is sent, and the
// responder closes. A second Finish is a FailedPrecondition no-op that sends
// nothing.
func (r *Responder) Finish(code codes.Code) error {
	if !r.open {
		return closedErr()
	}
	r.releaseHeldBuffer()
	r.close()
	frame := r.channel.AcquireBuffer()
	return r.channel.Send(frame, r.packet(packet.TypeServerStreamEnd, nil, code))
}

// Abandon closes the responder without sending anything. For owners that go
// away mid-call and must leave no registry entry behind.
func (r *Responder) Abandon() {
	if !r.open {
		return
	}
	r.releaseHeldBuffer()
	r.close()
}

func (r *Responder) releaseHeldBuffer() {
	if r.frame != nil {
		r.channel.Release(r.frame)
		r.frame = nil
	}
}

func (r *Responder) close() {
	if !r.open {
		return
	}
	r.open = false
	r.releaseHeldBuffer()
	r.server.removeResponder(r)
}

func (r *Responder) packet(t packet.Type, payload []byte, code codes.Code) packet.Packet {
	p := packet.New(t, r.channel.ID(), r.service.ID, r.method.ID, payload)
	p.Status = code
	return p
}

func closedErr() error {
	return status.Error(codes.FailedPrecondition, "server: responder is closed")
}
