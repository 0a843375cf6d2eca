// Package registry announces which RPC services a device exposes, so
// off-device tooling can find them. Nothing in the engine depends on it: ids
// are hashes, not discovered names. What a registry adds is the reverse
// mapping — name and hashed id to a reachable address.
package registry

import "embedrpc/server"

// ServiceInstance is one announced service endpoint.
type ServiceInstance struct {
	Addr      string // where the device's transport listens
	Service   string // fully-qualified service name
	ServiceID uint32 // hash of Service, as sent on the wire
	Version   string
}

// Registry stores and watches service announcements.
type Registry interface {
	Register(serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(serviceName string, addr string) error
	Discover(serviceName string) ([]ServiceInstance, error)
	Watch(serviceName string) <-chan []ServiceInstance
}

// Announce registers every service in srv's method table at the given
// address. Call again before the TTL lapses, or use a registry with
// keep-alive leases (EtcdRegistry renews automatically).
func Announce(reg Registry, srv *server.Server, addr string, ttl int64) error {
	for _, svc := range srv.Services() {
		instance := ServiceInstance{
			Addr:      addr,
			Service:   svc.Name,
			ServiceID: svc.ID,
		}
		if err := reg.Register(svc.Name, instance, ttl); err != nil {
			return err
		}
	}
	return nil
}

// Withdraw removes srv's announcements at the given address.
func Withdraw(reg Registry, srv *server.Server, addr string) error {
	for _, svc := range srv.Services() {
		if err := reg.Deregister(svc.Name, addr); err != nil {
			return err
		}
	}
	return nil
}
