package server

import (
	"context"

	"embedrpc/codec"
	"embedrpc/ids"
)

// Kind is a method's invocation shape. Unary and server-streaming methods
// are invocable; the client- and bidirectional-streaming kinds may be
// declared in a method table for id stability but requests addressed to them
// are answered with Unimplemented.
type Kind uint8

const (
	KindUnary Kind = iota
	KindServerStreaming
	KindClientStreaming
	KindBidirectional
)

// Handler is the application entry point for one method. The request value
// comes from the method's Request factory with the inbound payload decoded
// into it. The responder is Open on entry; the handler (or whoever it hands
// the responder to) is responsible for finishing it.
type Handler func(ctx context.Context, req any, r *Responder)

// Method describes one invocable RPC method. ID is the stable hash of Name.
type Method struct {
	Name    string
	ID      uint32
	Kind    Kind
	Codec   codec.Codec
	Request func() any // allocates the value the request payload decodes into
	Handler Handler
}

// Service groups methods under a fully-qualified service name. ID is the
// stable hash of Name.
type Service struct {
	Name    string
	ID      uint32
	Methods []*Method
}

// NewService builds a service, hashing the service name and any method names
// whose IDs were left zero.
func NewService(name string, methods ...*Method) *Service {
	for _, m := range methods {
		if m.ID == 0 {
			m.ID = ids.Calculate(m.Name)
		}
	}
	return &Service{
		Name:    name,
		ID:      ids.Calculate(name),
		Methods: methods,
	}
}

// Unary declares a unary method.
func Unary(name string, cdc codec.Codec, request func() any, handler Handler) *Method {
	return &Method{
		Name:    name,
		ID:      ids.Calculate(name),
		Kind:    KindUnary,
		Codec:   cdc,
		Request: request,
		Handler: handler,
	}
}

// ServerStreaming declares a server-streaming method.
func ServerStreaming(name string, cdc codec.Codec, request func() any, handler Handler) *Method {
	return &Method{
		Name:    name,
		ID:      ids.Calculate(name),
		Kind:    KindServerStreaming,
		Codec:   cdc,
		Request: request,
		Handler: handler,
	}
}
