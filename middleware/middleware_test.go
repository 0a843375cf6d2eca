package middleware

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func tag(name string, order *[]string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, info Info, req any) error {
			*order = append(*order, name+":before")
			err := next(ctx, info, req)
			*order = append(*order, name+":after")
			return err
		}
	}
}

func TestChainOnionOrder(t *testing.T) {
	var order []string
	handler := func(ctx context.Context, info Info, req any) error {
		order = append(order, "handler")
		return nil
	}

	if err := Chain(tag("A", &order), tag("B", &order))(handler)(context.Background(), Info{}, nil); err != nil {
		t.Fatalf("chain returned %v", err)
	}

	want := []string{"A:before", "B:before", "handler", "B:after", "A:after"}
	if len(order) != len(want) {
		t.Fatalf("got order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got order %v, want %v", order, want)
		}
	}
}

func TestChainEmpty(t *testing.T) {
	called := false
	handler := func(ctx context.Context, info Info, req any) error {
		called = true
		return nil
	}
	if err := Chain()(handler)(context.Background(), Info{}, nil); err != nil {
		t.Fatalf("empty chain returned %v", err)
	}
	if !called {
		t.Error("empty chain did not invoke the handler")
	}
}

func TestChainPropagatesError(t *testing.T) {
	want := errors.New("boom")
	var order []string
	handler := func(ctx context.Context, info Info, req any) error { return want }

	err := Chain(tag("A", &order))(handler)(context.Background(), Info{}, nil)
	if !errors.Is(err, want) {
		t.Errorf("got %v, want %v", err, want)
	}
}

func TestRateLimit(t *testing.T) {
	invoked := 0
	handler := func(ctx context.Context, info Info, req any) error {
		invoked++
		return nil
	}
	limited := RateLimit(0, 2)(handler) // two tokens, never refilled

	for i := 0; i < 2; i++ {
		if err := limited(context.Background(), Info{}, nil); err != nil {
			t.Fatalf("call %d rejected: %v", i, err)
		}
	}
	err := limited(context.Background(), Info{}, nil)
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("expected ResourceExhausted, got %v", err)
	}
	if invoked != 2 {
		t.Errorf("handler invoked %d times, want 2", invoked)
	}
}
