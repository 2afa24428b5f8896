package rpc

import (
	"context"

	"ipcrpc/ipcerr"
	"ipcrpc/loadbalance"
	"ipcrpc/registry"
)

// NamedInvoker resolves a function namespace to a concrete address via
// a Registry and Balancer before delegating to CallByLink. This is
// pure enrichment on top of the address-based core: CallByLink and
// CallByChannel remain the primitive, unconditioned entry points and
// work without any Registry configured.
type NamedInvoker struct {
	Invoker  *ServiceInvoker
	Registry registry.Registry
	Balancer loadbalance.Balancer
}

// NewNamedInvoker builds a NamedInvoker over reg, picking among
// registered instances with bal.
func NewNamedInvoker(invoker *ServiceInvoker, reg registry.Registry, bal loadbalance.Balancer) *NamedInvoker {
	return &NamedInvoker{Invoker: invoker, Registry: reg, Balancer: bal}
}

// CallByName discovers the instances registered under namespace,
// picks one with the configured Balancer, and calls functionID on it
// via CallByLink.
func (n *NamedInvoker) CallByName(
	ctx context.Context,
	namespace string,
	dispatch ClientCallbackDispatcher,
	predicate func() bool,
	functionID uint32,
	args Appender,
	decodeReturn ResultDecoder,
) (interface{}, error) {
	instances, err := n.Registry.Discover(namespace)
	if err != nil {
		return nil, ipcerr.New(ipcerr.NameResolution, "call-by-name: discover "+namespace, err)
	}
	if len(instances) == 0 {
		return nil, ipcerr.New(ipcerr.NameResolution, "call-by-name: no instances for "+namespace, nil)
	}

	instance, err := n.Balancer.Pick(instances)
	if err != nil {
		return nil, ipcerr.New(ipcerr.NameResolution, "call-by-name: pick instance for "+namespace, err)
	}

	return n.Invoker.CallByLink(ctx, instance.Addr, dispatch, predicate, functionID, args, decodeReturn)
}
