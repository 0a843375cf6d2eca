package client

import (
	"embedrpc/channel"
	"embedrpc/packet"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryCallbacks compose the application's view of a unary call. Response is
// a factory for the value the response payload is decoded into. Callbacks may
// be nil, in which case the corresponding event is dropped.
type UnaryCallbacks struct {
	// Response allocates a fresh response value for the codec to decode into.
	Response func() any

	// ReceivedResponse is invoked at most once, with the decoded response and
	// the status carried by the terminating packet.
	ReceivedResponse func(response any, code codes.Code)

	// RpcError is invoked when the call fails internally: a SERVER_ERROR
	// packet, or a response payload that does not decode (DataLoss).
	RpcError func(code codes.Code)
}

// ServerStreamingCallbacks compose the application's view of a
// server-streaming call.
type ServerStreamingCallbacks struct {
	// Response allocates a fresh response value for each stream message.
	Response func() any

	// ReceivedResponse is invoked once per stream message.
	ReceivedResponse func(response any)

	// Complete is invoked once when the server ends the stream, with the
	// overall RPC status.
	Complete func(code codes.Code)

	// RpcError is invoked on a SERVER_ERROR packet or an undecodable stream
	// message.
	RpcError func(code codes.Code)
}

// Call is a handle to one outstanding RPC registered with a Client. The zero
// value is inactive. Handles are cheap values; copying one does not duplicate
// the underlying call. Once the call completes, errors out, is cancelled, or
// is abandoned, every handle to it becomes permanently inactive.
type Call struct {
	client     *Client
	index      int
	generation uint32
}

// Active reports whether the call still occupies a registry slot.
func (c Call) Active() bool {
	return c.client != nil && c.client.slotOf(c) != nil
}

// SendRequest serializes request into a channel frame and sends a REQUEST
// packet. On any failure — unknown channel, encode error, transport error —
// the call is deactivated and the error is returned; no callbacks fire.
func (c Call) SendRequest(request any) error {
	s := c.slot()
	if s == nil {
		return status.Error(codes.FailedPrecondition, "client: call is not active")
	}
	ch, err := channel.Lookup(c.client.channels, s.channelID)
	if err != nil {
		c.client.deactivate(c.index)
		return err
	}

	frame := ch.AcquireBuffer()
	payload := channel.PayloadBuffer(frame)
	n, err := s.codec.Encode(request, payload)
	if err != nil {
		ch.Release(frame)
		c.client.deactivate(c.index)
		return err
	}

	p := packet.New(packet.TypeRequest, ch.ID(), s.serviceID, s.methodID, payload[:n])
	if err := ch.Send(frame, p); err != nil {
		c.client.deactivate(c.index)
		return err
	}
	return nil
}

// Cancel sends a CANCEL packet for an active call and deactivates it locally.
// The server may still emit late responses for this identity; they are
// ignored because the registry slot is already free. Cancelling an inactive
// call is a no-op.
func (c Call) Cancel() error {
	s := c.slot()
	if s == nil {
		return nil
	}
	ch, err := channel.Lookup(c.client.channels, s.channelID)
	c.client.deactivate(c.index)
	if err != nil {
		return err
	}
	frame := ch.AcquireBuffer()
	return ch.Send(frame, packet.New(packet.TypeCancel, ch.ID(), s.serviceID, s.methodID, nil))
}

// Abandon deactivates the call without notifying the server. Use it when the
// owner of the handle goes away and no further callbacks must fire.
func (c Call) Abandon() {
	if c.slot() != nil {
		c.client.deactivate(c.index)
	}
}

func (c Call) slot() *callSlot {
	if c.client == nil {
		return nil
	}
	return c.client.slotOf(c)
}
