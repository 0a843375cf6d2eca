// Package client implements the client half of the RPC engine: it issues
// calls and demultiplexes inbound packets to them.
//
// Outstanding calls live in an arena of slots owned by the Client.
// Applications hold Call values, which are generation-checked handles into
// the arena; a stale handle (its call completed and the slot was reused) is
// simply inactive, never a dangling reference. Inbound packets are matched to
// a slot by (channel id, service id, method id).
//
// One logical thread of control is assumed to drive packet ingress and call
// creation per Client. Wrap access with external synchronization if multiple
// goroutines share one instance.
package client

import (
	"embedrpc/channel"
	"embedrpc/codec"
	"embedrpc/packet"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client tracks outstanding client-initiated calls across a fixed set of
// channels.
type Client struct {
	channels []channel.Channel
	slots    []callSlot
	free     []int
}

type callSlot struct {
	active     bool
	generation uint32
	channelID  uint32
	serviceID  uint32
	methodID   uint32
	codec      codec.Codec
	handle     func(c *Client, index int, p packet.Packet)
}

// New creates a client over a fixed, pre-configured channel set.
func New(channels []channel.Channel) *Client {
	return &Client{channels: channels}
}

// NewUnaryCall registers a unary call addressed to (serviceID, methodID) on
// the given channel. The call is created active but sends nothing; follow
// with Call.SendRequest. The ids come from hashing the service and method
// names (see the ids package).
func (c *Client) NewUnaryCall(channelID, serviceID, methodID uint32, cdc codec.Codec, cb UnaryCallbacks) Call {
	return c.register(channelID, serviceID, methodID, cdc, unaryHandler(cb))
}

// NewServerStreamingCall registers a server-streaming call. Stream messages
// arrive through cb.ReceivedResponse until a SERVER_STREAM_END packet fires
// cb.Complete and deactivates the call.
func (c *Client) NewServerStreamingCall(channelID, serviceID, methodID uint32, cdc codec.Codec, cb ServerStreamingCallbacks) Call {
	return c.register(channelID, serviceID, methodID, cdc, streamHandler(cb))
}

// ProcessPacket feeds one inbound packet to the client. Malformed data is
// reported as DataLoss and dropped without touching any call state. Packets
// that match no outstanding call — including late responses to completed
// calls — are reported as NotFound and otherwise ignored.
func (c *Client) ProcessPacket(data []byte) error {
	p, err := packet.Decode(data)
	if err != nil {
		return err
	}
	return c.Process(p)
}

// Process routes an already-decoded packet. Exposed for composition with a
// server sharing the same byte stream.
func (c *Client) Process(p packet.Packet) error {
	if p.Type.ServerBound() {
		return status.Errorf(codes.InvalidArgument,
			"client: %v packets are not client-bound", p.Type)
	}
	index := c.find(p.ChannelID, p.ServiceID, p.MethodID)
	if index < 0 {
		return status.Errorf(codes.NotFound,
			"client: no outstanding call for channel %d service %08x method %08x",
			p.ChannelID, p.ServiceID, p.MethodID)
	}
	c.slots[index].handle(c, index, p)
	return nil
}

// register places a call into a free arena slot, reusing slots of completed
// calls before growing.
func (c *Client) register(channelID, serviceID, methodID uint32, cdc codec.Codec,
	handle func(*Client, int, packet.Packet)) Call {
	var index int
	if n := len(c.free); n > 0 {
		index = c.free[n-1]
		c.free = c.free[:n-1]
	} else {
		c.slots = append(c.slots, callSlot{})
		index = len(c.slots) - 1
	}
	s := &c.slots[index]
	s.active = true
	s.channelID = channelID
	s.serviceID = serviceID
	s.methodID = methodID
	s.codec = cdc
	s.handle = handle
	return Call{client: c, index: index, generation: s.generation}
}

// deactivate frees a slot and bumps its generation so outstanding handles go
// permanently inactive. Safe to call from within a packet handler.
func (c *Client) deactivate(index int) {
	s := &c.slots[index]
	if !s.active {
		return
	}
	s.active = false
	s.generation++
	s.codec = nil
	s.handle = nil
	c.free = append(c.free, index)
}

func (c *Client) slotOf(call Call) *callSlot {
	if call.index >= len(c.slots) {
		return nil
	}
	s := &c.slots[call.index]
	if !s.active || s.generation != call.generation {
		return nil
	}
	return s
}

func (c *Client) find(channelID, serviceID, methodID uint32) int {
	for i := range c.slots {
		s := &c.slots[i]
		if s.active && s.channelID == channelID && s.serviceID == serviceID && s.methodID == methodID {
			return i
		}
	}
	return -1
}

// unaryHandler drives a unary call. The first RESPONSE or SERVER_STREAM_END
// terminates the call; the slot is freed before the callback runs, so a
// duplicate response for the same identity can never fire the callback twice.
func unaryHandler(cb UnaryCallbacks) func(c *Client, index int, p packet.Packet) {
	return func(c *Client, index int, p packet.Packet) {
		switch p.Type {
		case packet.TypeServerError:
			c.deactivate(index)
			if cb.RpcError != nil {
				cb.RpcError(p.Status)
			}
		case packet.TypeResponse, packet.TypeServerStreamEnd:
			response := newResponse(cb.Response)
			if response != nil {
				if err := c.slots[index].codec.Decode(p.Payload, response); err != nil {
					c.deactivate(index)
					if cb.RpcError != nil {
						cb.RpcError(codes.DataLoss)
					}
					return
				}
			}
			c.deactivate(index)
			if cb.ReceivedResponse != nil {
				cb.ReceivedResponse(response, p.Status)
			}
		}
	}
}

// streamHandler drives a server-streaming call. Stream messages do not
// deactivate the slot; an undecodable message is reported through RpcError
// and the stream stays live for later messages.
func streamHandler(cb ServerStreamingCallbacks) func(c *Client, index int, p packet.Packet) {
	return func(c *Client, index int, p packet.Packet) {
		switch p.Type {
		case packet.TypeServerError:
			c.deactivate(index)
			if cb.RpcError != nil {
				cb.RpcError(p.Status)
			}
		case packet.TypeServerStreamEnd:
			c.deactivate(index)
			if cb.Complete != nil {
				cb.Complete(p.Status)
			}
		case packet.TypeResponse:
			response := newResponse(cb.Response)
			if response != nil {
				if err := c.slots[index].codec.Decode(p.Payload, response); err != nil {
					if cb.RpcError != nil {
						cb.RpcError(codes.DataLoss)
					}
					return
				}
			}
			if cb.ReceivedResponse != nil {
				cb.ReceivedResponse(response)
			}
		}
	}
}

func newResponse(factory func() any) any {
	if factory == nil {
		return nil
	}
	return factory()
}
