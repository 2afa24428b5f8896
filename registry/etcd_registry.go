// Package registry provides the etcd-based implementation of the
// Registry interface.
//
// etcd is a distributed key-value store that provides strong
// consistency (Raft protocol). We use it as a "distributed phonebook"
// for function namespaces:
//
//	Key:   /ipcrpc/{namespace}/{network}://{path}
//	Value: JSON-encoded ServiceInstance
//
// Registration uses TTL-based leases: if the server crashes, the
// lease expires and the entry is automatically removed, preventing
// "ghost" addresses from lingering in Discover results.
package registry

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"

	"ipcrpc/internal/ilog"
	"ipcrpc/transport"
)

var registryLog = ilog.WithContext("registry.etcd")

// EtcdRegistry implements the Registry interface using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client
}

// NewEtcdRegistry creates a new registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

func key(namespace string, addr transport.Address) string {
	return "/ipcrpc/" + namespace + "/" + addr.String()
}

// Register adds instance to etcd under a TTL lease.
//
// Flow:
//  1. Create a lease with the given TTL (e.g., 10 seconds)
//  2. Put the key-value pair with the lease attached
//  3. Start KeepAlive to automatically renew the lease
//
// leaseID is a local variable, not stored on the struct, so that
// multiple goroutines sharing one EtcdRegistry never race on it.
func (r *EtcdRegistry) Register(namespace string, instance ServiceInstance, ttl int64) error {
	ctx := context.TODO()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	if _, err := r.client.Put(ctx, key(namespace, instance.Addr), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	go func() {
		for range ch {
		}
		registryLog.WithField("namespace", namespace).Debug("lease keepalive stopped")
	}()
	return nil
}

// Deregister removes instance's key for namespace from etcd. Called
// during graceful shutdown, before closing the listener it describes.
func (r *EtcdRegistry) Deregister(namespace string, addr transport.Address) error {
	_, err := r.client.Delete(context.TODO(), key(namespace, addr))
	return err
}

// Watch monitors a namespace's key prefix and emits the updated
// instance list whenever it changes (new registrations,
// deregistrations, or lease expirations).
func (r *EtcdRegistry) Watch(namespace string) <-chan []ServiceInstance {
	ctx := context.TODO()
	ch := make(chan []ServiceInstance, 1)
	prefix := "/ipcrpc/" + namespace + "/"

	go func() {
		watchChan := r.client.Watch(ctx, prefix, clientv3.WithPrefix())
		for range watchChan {
			instances, err := r.Discover(namespace)
			if err != nil {
				registryLog.WithField("namespace", namespace).Errorf("re-discover after watch event: %s", err)
				continue
			}
			ch <- instances
		}
	}()

	return ch
}

// Discover returns all addresses currently registered for namespace.
func (r *EtcdRegistry) Discover(namespace string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(context.TODO(), "/ipcrpc/"+namespace+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			registryLog.Warnf("skipping malformed registry entry %s: %s", kv.Key, err)
			continue
		}
		instances = append(instances, instance)
	}

	return instances, nil
}
