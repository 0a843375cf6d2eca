package registry

import (
	"context"
	"testing"

	"embedrpc/channel"
	"embedrpc/codec"
	"embedrpc/ids"
	"embedrpc/server"
	"embedrpc/transport"
)

// fakeRegistry records announcements in memory, standing in for etcd.
type fakeRegistry struct {
	entries map[string][]ServiceInstance
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{entries: make(map[string][]ServiceInstance)}
}

func (r *fakeRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	r.entries[serviceName] = append(r.entries[serviceName], instance)
	return nil
}

func (r *fakeRegistry) Deregister(serviceName string, addr string) error {
	kept := r.entries[serviceName][:0]
	for _, instance := range r.entries[serviceName] {
		if instance.Addr != addr {
			kept = append(kept, instance)
		}
	}
	r.entries[serviceName] = kept
	return nil
}

func (r *fakeRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	return r.entries[serviceName], nil
}

func (r *fakeRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance)
	close(ch)
	return ch
}

func testServer(t *testing.T) *server.Server {
	t.Helper()
	out := transport.NewBufferOutput(128)
	srv := server.New([]channel.Channel{channel.New(1, out)})
	err := srv.RegisterService(
		server.NewService("embedrpc.test.LogService",
			server.Unary("Fetch", codec.Raw{}, func() any { return new([]byte) },
				func(ctx context.Context, req any, r *server.Responder) {})),
		server.NewService("embedrpc.test.StatService",
			server.Unary("Sample", codec.Raw{}, func() any { return new([]byte) },
				func(ctx context.Context, req any, r *server.Responder) {})),
	)
	if err != nil {
		t.Fatalf("RegisterService failed: %v", err)
	}
	return srv
}

func TestAnnouncePublishesAllServices(t *testing.T) {
	reg := newFakeRegistry()
	srv := testServer(t)

	if err := Announce(reg, srv, "10.0.0.7:9000", 10); err != nil {
		t.Fatalf("Announce failed: %v", err)
	}

	for _, name := range []string{"embedrpc.test.LogService", "embedrpc.test.StatService"} {
		instances, err := reg.Discover(name)
		if err != nil {
			t.Fatalf("Discover(%s) failed: %v", name, err)
		}
		if len(instances) != 1 {
			t.Fatalf("Discover(%s): got %d instances, want 1", name, len(instances))
		}
		got := instances[0]
		if got.Addr != "10.0.0.7:9000" {
			t.Errorf("addr %q", got.Addr)
		}
		if got.Service != name {
			t.Errorf("service name %q, want %q", got.Service, name)
		}
		if got.ServiceID != ids.Calculate(name) {
			t.Errorf("service id %08x, want %08x", got.ServiceID, ids.Calculate(name))
		}
	}
}

func TestWithdrawRemovesAnnouncements(t *testing.T) {
	reg := newFakeRegistry()
	srv := testServer(t)

	if err := Announce(reg, srv, "10.0.0.7:9000", 10); err != nil {
		t.Fatalf("Announce failed: %v", err)
	}
	if err := Announce(reg, srv, "10.0.0.8:9000", 10); err != nil {
		t.Fatalf("second Announce failed: %v", err)
	}
	if err := Withdraw(reg, srv, "10.0.0.7:9000"); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}

	instances, err := reg.Discover("embedrpc.test.LogService")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(instances) != 1 || instances[0].Addr != "10.0.0.8:9000" {
		t.Errorf("unexpected instances after withdraw: %+v", instances)
	}
}
