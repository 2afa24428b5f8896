// Package loadbalance provides strategies for picking one listener
// address out of several registered under the same function
// namespace.
//
// Three strategies are implemented:
//   - RoundRobin:      stateless servers, equal-capacity instances
//   - WeightedRandom:  heterogeneous instances (different CPU/memory)
//   - ConsistentHash:  stateful servers requiring caller affinity
package loadbalance

import "ipcrpc/registry"

// Balancer picks one instance from the available list. rpc.NamedInvoker.CallByName
// calls Pick before every call — implementations must be goroutine-safe.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}
