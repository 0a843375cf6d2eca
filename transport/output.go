// Package transport supplies channel.Output implementations: an in-memory
// buffer output, a length-prefix framed stream output for TCP-like byte
// streams, and a websocket output. It also provides SerializedOutput, the
// lock wrapper integrators put around an output shared by multiple
// goroutines.
package transport

import (
	"sync"

	"embedrpc/channel"
	"embedrpc/packet"
)

// BufferOutput is an in-memory channel.Output with a single fixed-size frame
// buffer. It records a copy of every frame it sends, which makes it both a
// loopback integration surface and the standard test double for the engine.
type BufferOutput struct {
	buf     []byte
	sent    [][]byte
	SendErr error // when non-nil, Send fails with this error
}

// NewBufferOutput creates an output whose frames hold frameSize bytes.
func NewBufferOutput(frameSize int) *BufferOutput {
	return &BufferOutput{buf: make([]byte, frameSize)}
}

func (o *BufferOutput) AcquireBuffer() []byte { return o.buf }

func (o *BufferOutput) Send(frame []byte) error {
	if o.SendErr != nil {
		return o.SendErr
	}
	o.sent = append(o.sent, append([]byte(nil), frame...))
	return nil
}

func (o *BufferOutput) Release(frame []byte) {}

// Sent returns copies of the frames sent so far, oldest first.
func (o *BufferOutput) Sent() [][]byte { return o.sent }

// LastPacket decodes the most recently sent frame. ok is false if nothing
// was sent or the frame does not decode.
func (o *BufferOutput) LastPacket() (packet.Packet, bool) {
	if len(o.sent) == 0 {
		return packet.Packet{}, false
	}
	p, err := packet.Decode(o.sent[len(o.sent)-1])
	if err != nil {
		return packet.Packet{}, false
	}
	return p, true
}

// Reset discards the recorded frames.
func (o *BufferOutput) Reset() { o.sent = nil }

// SerializedOutput wraps another output so that the acquire → send/release
// bracket of each frame is exclusive. The lock is taken in AcquireBuffer and
// held until the matching Send or Release, which both serializes writes and
// preserves the one-outstanding-buffer invariant across goroutines.
type SerializedOutput struct {
	mu    sync.Mutex
	inner channel.Output
}

// NewSerializedOutput wraps inner with a per-frame lock.
func NewSerializedOutput(inner channel.Output) *SerializedOutput {
	return &SerializedOutput{inner: inner}
}

func (o *SerializedOutput) AcquireBuffer() []byte {
	o.mu.Lock()
	return o.inner.AcquireBuffer()
}

func (o *SerializedOutput) Send(frame []byte) error {
	defer o.mu.Unlock()
	return o.inner.Send(frame)
}

func (o *SerializedOutput) Release(frame []byte) {
	defer o.mu.Unlock()
	o.inner.Release(frame)
}
