// Package registry maps a function namespace to the set of listener
// addresses currently willing to serve it — a distributed phonebook
// sitting above the core call-by-address path, never required by it.
package registry

import "ipcrpc/transport"

// ServiceInstance is one address registered under a namespace, with
// metadata load balancers use to pick among several.
type ServiceInstance struct {
	Addr    transport.Address
	Weight  int
	Version string
}

// Registry registers and discovers addresses under a function
// namespace, a caller-chosen name passed to rpc.NamedInvoker.CallByName.
type Registry interface {
	// Register advertises instance under namespace for ttl seconds,
	// renewed automatically until Deregister or process exit.
	Register(namespace string, instance ServiceInstance, ttl int64) error
	Deregister(namespace string, addr transport.Address) error
	Discover(namespace string) ([]ServiceInstance, error)
	// Watch emits an updated instance list on every change under
	// namespace. The channel is never closed by the registry.
	Watch(namespace string) <-chan []ServiceInstance
}
