package middleware

import (
	"context"
	"log"
	"time"
)

// Logging logs each invocation with its duration and outcome.
func Logging() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, info Info, req any) error {
			start := time.Now()
			err := next(ctx, info, req)
			duration := time.Since(start)
			if err != nil {
				log.Printf("rpc %s.%s channel=%d duration=%s error=%v",
					info.Service, info.Method, info.ChannelID, duration, err)
			} else {
				log.Printf("rpc %s.%s channel=%d duration=%s",
					info.Service, info.Method, info.ChannelID, duration)
			}
			return err
		}
	}
}
