package server

import (
	"context"
	"testing"

	"embedrpc/channel"
	"embedrpc/codec"
	"embedrpc/ids"
	"embedrpc/packet"
	"embedrpc/transport"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// dispatch invokes a streaming method that hands its responder out to the
// test, leaving it open.
func openResponder(t *testing.T) (*Responder, *Server, *transport.BufferOutput) {
	t.Helper()
	out := transport.NewBufferOutput(256)
	s := New([]channel.Channel{channel.New(testChannelID, out)})

	var captured *Responder
	svc := NewService("embedrpc.test.ResponderService",
		ServerStreaming("Hold", codec.Raw{}, func() any { return new([]byte) },
			func(ctx context.Context, req any, r *Responder) { captured = r }))
	if err := s.RegisterService(svc); err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}

	req := packet.New(packet.TypeRequest, testChannelID, svc.ID, ids.Calculate("Hold"), nil)
	if err := s.ProcessPacket(encodePacket(t, req)); err != nil {
		t.Fatalf("ProcessPacket failed: %v", err)
	}
	if captured == nil || !captured.Open() {
		t.Fatal("handler did not receive an open responder")
	}
	out.Reset()
	return captured, s, out
}

func TestFinishSendsStreamEndOnce(t *testing.T) {
	r, s, out := openResponder(t)

	if err := r.Finish(codes.OK); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if r.Open() {
		t.Error("responder still open after Finish")
	}
	if s.OpenResponders() != 0 {
		t.Error("responder still registered after Finish")
	}

	if err := r.Finish(codes.OK); status.Code(err) != codes.FailedPrecondition {
		t.Errorf("second Finish: expected FailedPrecondition, got %v", err)
	}

	ends := 0
	for _, frame := range out.Sent() {
		p, err := packet.Decode(frame)
		if err != nil {
			t.Fatalf("sent frame does not decode: %v", err)
		}
		if p.Type == packet.TypeServerStreamEnd {
			ends++
		}
	}
	if ends != 1 {
		t.Errorf("%d SERVER_STREAM_END packets sent, want exactly 1", ends)
	}
}

func TestAcquirePayloadBufferIsIdempotent(t *testing.T) {
	r, _, _ := openResponder(t)

	first, err := r.AcquirePayloadBuffer()
	if err != nil {
		t.Fatalf("AcquirePayloadBuffer failed: %v", err)
	}
	second, err := r.AcquirePayloadBuffer()
	if err != nil {
		t.Fatalf("second AcquirePayloadBuffer failed: %v", err)
	}
	if &first[0] != &second[0] {
		t.Error("re-acquire returned a different buffer while one was held")
	}
}

func TestReleasePayloadBufferSendsResponse(t *testing.T) {
	r, _, out := openResponder(t)

	buf, err := r.AcquirePayloadBuffer()
	if err != nil {
		t.Fatalf("AcquirePayloadBuffer failed: %v", err)
	}
	n := copy(buf, []byte{0x2A})
	if err := r.ReleasePayloadBuffer(buf[:n]); err != nil {
		t.Fatalf("ReleasePayloadBuffer failed: %v", err)
	}

	sent, ok := out.LastPacket()
	if !ok || sent.Type != packet.TypeResponse {
		t.Fatalf("expected RESPONSE, got %+v ok=%v", sent, ok)
	}
	if len(sent.Payload) != 1 || sent.Payload[0] != 0x2A {
		t.Errorf("payload mismatch: %x", sent.Payload)
	}
	if !r.Open() {
		t.Error("stream closed by a plain payload release")
	}
}

func TestFinishReleasesHeldBuffer(t *testing.T) {
	r, _, out := openResponder(t)

	if _, err := r.AcquirePayloadBuffer(); err != nil {
		t.Fatalf("AcquirePayloadBuffer failed: %v", err)
	}
	// The buffer was acquired but never sent; Finish must not leak it and
	// must send only the stream end.
	if err := r.Finish(codes.Aborted); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	sent := out.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected only SERVER_STREAM_END, got %d packets", len(sent))
	}
	p, _ := packet.Decode(sent[0])
	if p.Type != packet.TypeServerStreamEnd || p.Status != codes.Aborted {
		t.Errorf("expected SERVER_STREAM_END Aborted, got %v %v", p.Type, p.Status)
	}
}

func TestOperationsAfterClose(t *testing.T) {
	r, _, out := openResponder(t)
	r.Abandon()

	if len(out.Sent()) != 0 {
		t.Error("Abandon sent a packet")
	}
	if _, err := r.AcquirePayloadBuffer(); status.Code(err) != codes.FailedPrecondition {
		t.Errorf("AcquirePayloadBuffer: expected FailedPrecondition, got %v", err)
	}
	if err := r.ReleasePayloadBuffer(nil); status.Code(err) != codes.FailedPrecondition {
		t.Errorf("ReleasePayloadBuffer: expected FailedPrecondition, got %v", err)
	}
	if err := r.Write([]byte{0x01}); status.Code(err) != codes.FailedPrecondition {
		t.Errorf("Write: expected FailedPrecondition, got %v", err)
	}
	if err := r.SendResponse([]byte{0x01}, codes.OK); status.Code(err) != codes.FailedPrecondition {
		t.Errorf("SendResponse: expected FailedPrecondition, got %v", err)
	}
	r.Abandon() // second Abandon is a no-op
}

func TestSendResponseCloses(t *testing.T) {
	r, s, out := openResponder(t)

	if err := r.SendResponse([]byte{0x2A}, codes.OK); err != nil {
		t.Fatalf("SendResponse failed: %v", err)
	}
	if r.Open() {
		t.Error("responder open after SendResponse")
	}
	if s.OpenResponders() != 0 {
		t.Error("responder still registered after SendResponse")
	}
	sent, _ := out.LastPacket()
	if sent.Type != packet.TypeResponse || sent.Status != codes.OK {
		t.Errorf("expected terminal RESPONSE, got %v %v", sent.Type, sent.Status)
	}
}
