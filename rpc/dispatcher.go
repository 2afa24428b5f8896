package rpc

import (
	"ipcrpc/message"
	"ipcrpc/transport"
)

// Dispatcher is the server-side routing object handed to Server.Serve.
// Invoke is called once per accepted connection's top-level request,
// with id already consumed from in and in positioned at the start of
// the argument fields; conn is available so a service implementation
// can issue reverse callbacks (via ServiceInvoker.CallByChannel) before
// writing its reply into out. ReportError receives any non-user-stop
// error surfaced by a connection; Ready is called once, after the
// listen socket is ready, before the accept loop begins.
type Dispatcher interface {
	Invoke(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error
	ReportError(err error)
	Ready()
}

// ClientCallbackDispatcher serves one step of a reverse callback
// initiated by the remote side during an outstanding ServiceInvoker
// call. id and in (positioned past id) identify and carry the
// callback's arguments; the dispatcher packs its reply into out. A
// false first return means "id not recognized", which ServiceInvoker
// surfaces as a protocol error.
type ClientCallbackDispatcher func(id uint32, in *message.InMessage, out *message.OutMessage) (bool, error)

// FuncDispatcher adapts a plain map of FunctionInvokers into a
// Dispatcher, for servers that don't need the reflection-based
// convenience layer in service.go.
type FuncDispatcher struct {
	Funcs     map[uint32]*FunctionInvoker
	OnError   func(error)
	OnReady   func()
}

// NewFuncDispatcher returns a FuncDispatcher with an empty routing
// table.
func NewFuncDispatcher() *FuncDispatcher {
	return &FuncDispatcher{Funcs: make(map[uint32]*FunctionInvoker)}
}

// Register associates id with invoker. invoker.IsService should be
// true: FuncDispatcher always serves top-level requests.
func (d *FuncDispatcher) Register(id uint32, invoker *FunctionInvoker) {
	d.Funcs[id] = invoker
}

func (d *FuncDispatcher) Invoke(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error {
	invoker, ok := d.Funcs[id]
	if !ok {
		return unknownFunctionError(id)
	}
	return invoker.Invoke(in, out)
}

func (d *FuncDispatcher) ReportError(err error) {
	if d.OnError != nil {
		d.OnError(err)
	}
}

func (d *FuncDispatcher) Ready() {
	if d.OnReady != nil {
		d.OnReady()
	}
}
