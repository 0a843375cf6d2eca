package registry

// etcd-backed Registry. Announcements live under
//
//	/embedrpc/services/{ServiceName}/{Addr} → JSON ServiceInstance
//
// with a TTL lease kept alive in the background, so a device that drops off
// the network disappears from the registry when its lease lapses.

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/embedrpc/services/"

// EtcdRegistry implements Registry on etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

// Register announces one instance under a TTL lease and starts background
// lease renewal. The lease id stays local so one EtcdRegistry can be shared
// by several announcing servers.
func (r *EtcdRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	ctx := context.TODO()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, keyPrefix+serviceName+"/"+instance.Addr, string(val),
		clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}
	// Drain keep-alive responses so the channel never backs up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister withdraws one announcement immediately.
func (r *EtcdRegistry) Deregister(serviceName string, addr string) error {
	_, err := r.client.Delete(context.TODO(), keyPrefix+serviceName+"/"+addr)
	return err
}

// Discover returns the currently announced instances of a service.
func (r *EtcdRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(context.TODO(), keyPrefix+serviceName+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // skip malformed entries
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Watch emits the full instance list whenever announcements for the service
// change (registration, withdrawal, lease expiry).
func (r *EtcdRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)
	go func() {
		watchChan := r.client.Watch(context.TODO(), keyPrefix+serviceName+"/", clientv3.WithPrefix())
		for range watchChan {
			instances, _ := r.Discover(serviceName)
			ch <- instances
		}
	}()
	return ch
}

// Close releases the etcd client connection.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
