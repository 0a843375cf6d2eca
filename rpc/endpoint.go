// Package rpc composes a Client and a Server over one shared channel set, so
// a single peer can both expose and invoke methods on the same transport.
package rpc

import (
	"embedrpc/channel"
	"embedrpc/client"
	"embedrpc/packet"
	"embedrpc/server"
)

// Endpoint routes inbound packets to its client registry or server dispatch
// by packet type: server-bound types (REQUEST, CLIENT_STREAM, CLIENT_ERROR,
// CANCEL, CLIENT_STREAM_END) go to the server, the rest to the client.
type Endpoint struct {
	client *client.Client
	server *server.Server
}

// NewEndpoint creates an endpoint whose client and server share channels.
func NewEndpoint(channels []channel.Channel) *Endpoint {
	return &Endpoint{
		client: client.New(channels),
		server: server.New(channels),
	}
}

// Client returns the client half, for issuing calls.
func (e *Endpoint) Client() *client.Client { return e.client }

// Server returns the server half, for registering services.
func (e *Endpoint) Server() *server.Server { return e.server }

// ProcessPacket decodes one inbound packet and routes it. Malformed data is
// reported as DataLoss and dropped; no error here is fatal to the endpoint.
func (e *Endpoint) ProcessPacket(data []byte) error {
	p, err := packet.Decode(data)
	if err != nil {
		return err
	}
	if p.Type.ServerBound() {
		return e.server.Process(p)
	}
	return e.client.Process(p)
}
