// Package channel models one logical transport endpoint: a small integer id
// plus an Output sink that can produce a writable frame buffer and transmit
// its contents.
//
// Buffer discipline: at most one frame buffer is outstanding per channel at a
// time. A buffer obtained from AcquireBuffer must be handed back through
// exactly one of Send or Release before the next acquire. Ownership returns
// to the output after Send regardless of the transport outcome.
package channel

import (
	"embedrpc/packet"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Output is the transport sink behind a channel, supplied by the integrator.
// Implementations are not required to be goroutine-safe; wrap concurrent
// outputs with transport.SerializedOutput.
type Output interface {
	// AcquireBuffer returns a buffer sized to the transport's maximum frame.
	AcquireBuffer() []byte

	// Send transmits frame, which is always a prefix of the buffer returned
	// by the preceding AcquireBuffer. The buffer is reusable afterwards.
	Send(frame []byte) error

	// Release returns an acquired buffer without transmitting anything.
	Release(frame []byte)
}

// Channel pairs an id with an output sink. The zero value is unusable.
type Channel struct {
	id     uint32
	output Output
}

// New creates a channel with the given id. Ids must be unique within one
// client/server instance.
func New(id uint32, output Output) Channel {
	return Channel{id: id, output: output}
}

// ID returns the channel id carried in every packet sent on this channel.
func (c *Channel) ID() uint32 { return c.id }

// AcquireBuffer obtains the channel's frame buffer from the output sink.
// Use PayloadBuffer to carve out the region available for payload bytes.
func (c *Channel) AcquireBuffer() []byte {
	return c.output.AcquireBuffer()
}

// Release hands an unsent buffer back to the output sink.
func (c *Channel) Release(frame []byte) {
	c.output.Release(frame)
}

// Send encodes p into frame and transmits the encoded bytes. The packet's
// payload may alias the payload region of frame. On encode failure nothing is
// transmitted, the buffer is released, and the error is returned to the
// caller; the channel does not retry.
func (c *Channel) Send(frame []byte, p packet.Packet) error {
	n, err := p.Encode(frame)
	if err != nil {
		c.output.Release(frame)
		return err
	}
	return c.output.Send(frame[:n])
}

// PayloadBuffer returns the region of a frame buffer that a caller may fill
// with payload bytes. The leading packet.MinEncodedSizeBytes bytes are
// reserved for the envelope. Returns nil if the frame cannot hold any
// payload.
func PayloadBuffer(frame []byte) []byte {
	reserved := packet.MinEncodedSizeBytes()
	if len(frame) <= reserved {
		return nil
	}
	return frame[reserved:]
}

// Lookup finds the channel with the given id in a fixed, pre-configured set.
// An unknown id is reported as Unavailable so it can flow through a call's
// error path rather than crash anything.
func Lookup(channels []Channel, id uint32) (*Channel, error) {
	for i := range channels {
		if channels[i].id == id {
			return &channels[i], nil
		}
	}
	return nil, status.Errorf(codes.Unavailable, "channel: no channel with id %d", id)
}
