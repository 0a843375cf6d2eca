// Package middleware provides a server-side interceptor chain wrapped around
// method invocation. Interceptors run after the request payload is decoded
// and before the method handler; returning an error suppresses the handler
// and is reported to the client as a SERVER_ERROR carrying the error's
// status code.
package middleware

import "context"

// Info identifies the call being intercepted.
type Info struct {
	ChannelID uint32
	ServiceID uint32
	MethodID  uint32
	Service   string // registered service name
	Method    string // registered method name
}

// HandlerFunc is the invocation being wrapped: at the end of the chain it is
// the method handler itself.
type HandlerFunc func(ctx context.Context, info Info, req any) error

// Middleware wraps a HandlerFunc with cross-cutting behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one. Chain(A, B, C)(handler) executes as
// A(B(C(handler))): A sees the call first and the handler's result last.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
