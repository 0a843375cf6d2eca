// Package server implements the server half of the RPC engine: a hashed
// method table, request dispatch, and the Responder state machine that
// represents one in-progress invocation.
//
// Inbound flow:
//
//	ProcessPacket → packet.Decode → lookup (service id, method id)
//	  → decode request via the method's codec → middleware chain → Handler
//	    → Responder.{Write,SendResponse,Finish} → packet encode → channel send
//
// A request for an unknown method is answered with exactly one SERVER_ERROR
// carrying NotFound and no Responder is created. Malformed packets are
// dropped at the decode boundary. No inbound bytes can corrupt the state of
// another call; the worst case for any error is that one RPC is abandoned
// while the server keeps serving.
package server

import (
	"context"

	"embedrpc/channel"
	"embedrpc/middleware"
	"embedrpc/packet"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server dispatches requests to a registered method table over a fixed set
// of channels. One logical thread of control is assumed per instance; supply
// external synchronization to share it across goroutines.
type Server struct {
	channels    []channel.Channel
	services    []*Service
	methods     map[uint64]*boundMethod
	responders  []*Responder
	middlewares []middleware.Middleware
	chain       middleware.Middleware
}

type boundMethod struct {
	service *Service
	method  *Method
}

// New creates a server over a fixed, pre-configured channel set.
func New(channels []channel.Channel) *Server {
	return &Server{
		channels: channels,
		methods:  make(map[uint64]*boundMethod),
	}
}

// Use appends an interceptor to the chain wrapped around every method
// invocation. Must be called before the first ProcessPacket.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
	s.chain = nil
}

// RegisterService adds services to the method table. Overlapping id pairs —
// two registrations hashing to the same (service id, method id) — are
// rejected, which makes hash collisions a registration-time failure rather
// than a runtime misroute.
func (s *Server) RegisterService(services ...*Service) error {
	for _, svc := range services {
		for _, m := range svc.Methods {
			key := methodKey(svc.ID, m.ID)
			if existing, ok := s.methods[key]; ok {
				return status.Errorf(codes.AlreadyExists,
					"server: method id collision: %s.%s and %s.%s share (%08x, %08x)",
					existing.service.Name, existing.method.Name, svc.Name, m.Name, svc.ID, m.ID)
			}
			s.methods[key] = &boundMethod{service: svc, method: m}
		}
		s.services = append(s.services, svc)
	}
	return nil
}

// Services returns the registered services, for announcement and tooling.
func (s *Server) Services() []*Service {
	return s.services
}

// OpenResponders reports how many invocations are currently in flight.
func (s *Server) OpenResponders() int {
	return len(s.responders)
}

// ProcessPacket feeds inbound bytes to the server. Malformed packets are
// reported as DataLoss and dropped; nothing is sent in reply to garbage.
func (s *Server) ProcessPacket(data []byte) error {
	p, err := packet.Decode(data)
	if err != nil {
		return err
	}
	return s.Process(p)
}

// Process routes an already-decoded packet. Exposed for composition with a
// client sharing the same byte stream.
func (s *Server) Process(p packet.Packet) error {
	if !p.Type.ServerBound() {
		return status.Errorf(codes.InvalidArgument,
			"server: %v packets are not server-bound", p.Type)
	}
	ch, err := channel.Lookup(s.channels, p.ChannelID)
	if err != nil {
		return err
	}

	switch p.Type {
	case packet.TypeRequest:
		return s.handleRequest(ch, p)
	case packet.TypeCancel, packet.TypeClientError:
		// The client has walked away; close the matching invocation
		// without sending anything back.
		if r := s.findResponder(p); r != nil {
			r.close()
		}
		return nil
	case packet.TypeClientStream, packet.TypeClientStreamEnd:
		return s.sendError(ch, p, codes.Unimplemented)
	}
	return status.Errorf(codes.Unimplemented, "server: unhandled packet type %v", p.Type)
}

func (s *Server) handleRequest(ch *channel.Channel, p packet.Packet) error {
	bound, ok := s.methods[methodKey(p.ServiceID, p.MethodID)]
	if !ok {
		return s.sendError(ch, p, codes.NotFound)
	}
	m := bound.method

	switch m.Kind {
	case KindUnary, KindServerStreaming:
	default:
		return s.sendError(ch, p, codes.Unimplemented)
	}

	req := m.Request()
	if err := m.Codec.Decode(p.Payload, req); err != nil {
		return s.sendError(ch, p, codes.DataLoss)
	}

	r := s.newResponder(ch, bound)
	info := middleware.Info{
		ChannelID: ch.ID(),
		ServiceID: p.ServiceID,
		MethodID:  p.MethodID,
		Service:   bound.service.Name,
		Method:    m.Name,
	}
	err := s.invoker()(func(ctx context.Context, _ middleware.Info, req any) error {
		m.Handler(ctx, req, r)
		return nil
	})(context.Background(), info, req)
	if err != nil {
		// An interceptor rejected the call before the handler ran.
		if r.Open() {
			r.close()
			return s.sendError(ch, p, status.Code(err))
		}
		return err
	}
	return nil
}

// invoker returns the composed interceptor chain, building it on first use.
func (s *Server) invoker() middleware.Middleware {
	if s.chain == nil {
		s.chain = middleware.Chain(s.middlewares...)
	}
	return s.chain
}

// sendError emits exactly one SERVER_ERROR packet echoing the identity of
// the offending request.
func (s *Server) sendError(ch *channel.Channel, req packet.Packet, code codes.Code) error {
	frame := ch.AcquireBuffer()
	return ch.Send(frame, packet.Reply(packet.TypeServerError, req, code))
}

func (s *Server) newResponder(ch *channel.Channel, bound *boundMethod) *Responder {
	r := &Responder{
		server:  s,
		channel: ch,
		service: bound.service,
		method:  bound.method,
		open:    true,
	}
	s.responders = append(s.responders, r)
	return r
}

func (s *Server) removeResponder(r *Responder) {
	for i, candidate := range s.responders {
		if candidate == r {
			s.responders = append(s.responders[:i], s.responders[i+1:]...)
			return
		}
	}
}

func (s *Server) findResponder(p packet.Packet) *Responder {
	for _, r := range s.responders {
		if r.channel.ID() == p.ChannelID && r.service.ID == p.ServiceID && r.method.ID == p.MethodID {
			return r
		}
	}
	return nil
}

func methodKey(serviceID, methodID uint32) uint64 {
	return uint64(serviceID)<<32 | uint64(methodID)
}
