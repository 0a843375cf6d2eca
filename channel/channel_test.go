package channel

import (
	"bytes"
	"errors"
	"testing"

	"embedrpc/packet"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// testOutput is a minimal Output double local to this package; the transport
// package provides the full-featured one.
type testOutput struct {
	buf      []byte
	sent     [][]byte
	released int
	sendErr  error
}

func newTestOutput(size int) *testOutput { return &testOutput{buf: make([]byte, size)} }

func (o *testOutput) AcquireBuffer() []byte { return o.buf }

func (o *testOutput) Send(frame []byte) error {
	if o.sendErr != nil {
		return o.sendErr
	}
	o.sent = append(o.sent, append([]byte(nil), frame...))
	return nil
}

func (o *testOutput) Release(frame []byte) { o.released++ }

func TestLookup(t *testing.T) {
	out := newTestOutput(128)
	channels := []Channel{New(1, out), New(7, out)}

	ch, err := Lookup(channels, 7)
	if err != nil {
		t.Fatalf("Lookup(7) failed: %v", err)
	}
	if ch.ID() != 7 {
		t.Errorf("Lookup(7) returned channel %d", ch.ID())
	}

	if _, err := Lookup(channels, 99); status.Code(err) != codes.Unavailable {
		t.Errorf("Lookup(99): expected Unavailable, got %v", err)
	}
}

func TestSendEncodesIntoAcquiredFrame(t *testing.T) {
	out := newTestOutput(128)
	ch := New(3, out)

	frame := ch.AcquireBuffer()
	payload := PayloadBuffer(frame)
	n := copy(payload, []byte{0x7B})

	p := packet.New(packet.TypeRequest, ch.ID(), 16, 111, payload[:n])
	if err := ch.Send(frame, p); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(out.sent) != 1 {
		t.Fatalf("expected 1 sent frame, got %d", len(out.sent))
	}
	decoded, err := packet.Decode(out.sent[0])
	if err != nil {
		t.Fatalf("sent frame does not decode: %v", err)
	}
	if decoded.ChannelID != 3 || decoded.ServiceID != 16 || decoded.MethodID != 111 {
		t.Errorf("wrong identity on the wire: %+v", decoded)
	}
	if !bytes.Equal(decoded.Payload, []byte{0x7B}) {
		t.Errorf("payload mismatch: got %x", decoded.Payload)
	}
}

func TestSendReleasesBufferOnEncodeFailure(t *testing.T) {
	out := newTestOutput(4) // too small for any envelope
	ch := New(1, out)

	frame := ch.AcquireBuffer()
	err := ch.Send(frame, packet.New(packet.TypeRequest, 1, 2, 3, nil))
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("expected ResourceExhausted, got %v", err)
	}
	if len(out.sent) != 0 {
		t.Errorf("partial write reached the transport: %d frames", len(out.sent))
	}
	if out.released != 1 {
		t.Errorf("buffer not returned to the output: released=%d", out.released)
	}
}

func TestSendTransportFailure(t *testing.T) {
	out := newTestOutput(128)
	out.sendErr = errors.New("link down")
	ch := New(1, out)

	frame := ch.AcquireBuffer()
	if err := ch.Send(frame, packet.New(packet.TypeRequest, 1, 2, 3, nil)); err == nil {
		t.Error("expected transport error to propagate")
	}
}

func TestPayloadBuffer(t *testing.T) {
	frame := make([]byte, 128)
	payload := PayloadBuffer(frame)
	if len(payload) != 128-packet.MinEncodedSizeBytes() {
		t.Errorf("payload region is %d bytes, want %d", len(payload), 128-packet.MinEncodedSizeBytes())
	}

	if got := PayloadBuffer(make([]byte, 4)); got != nil {
		t.Errorf("expected nil payload region for undersized frame, got %d bytes", len(got))
	}
}
