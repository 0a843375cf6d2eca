package middleware

import (
	"context"

	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RateLimit rejects invocations beyond r calls per second (token bucket with
// the given burst). Rejected calls never reach the handler; the client sees
// SERVER_ERROR with ResourceExhausted.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, info Info, req any) error {
			if !limiter.Allow() {
				return status.Errorf(codes.ResourceExhausted,
					"rate limit exceeded for %s.%s", info.Service, info.Method)
			}
			return next(ctx, info, req)
		}
	}
}
