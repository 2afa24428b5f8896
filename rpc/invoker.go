// Package rpc dispatches numeric function identifiers to handlers over
// a transport.Connection, supporting bidirectional callbacks on a
// single connection during one outstanding call.
package rpc

import (
	"ipcrpc/codec"
	"ipcrpc/ipcerr"
	"ipcrpc/message"
)

// DoneTag is the well-known 32-bit sentinel that marks a reply as
// terminal rather than a callback request. It must be disjoint from
// every user-assigned function/callback id.
const DoneTag uint32 = 0xFFFFFFFF

// Appender serializes a set of call arguments onto an outgoing message.
type Appender func(out *message.OutMessage) error

// ResultDecoder deserializes a return value from an incoming message.
type ResultDecoder func(in *message.InMessage) (interface{}, error)

// FunctionInvoker lifts a typed Go callable into a wire-driven dispatch
// step: extract arguments, call, pack the result. IsService controls
// whether Invoke prepends DoneTag — true when serving the terminal
// reply to a top-level request, false when serving one step of a
// reverse callback.
type FunctionInvoker struct {
	Extract   func(in *message.InMessage) (interface{}, error)
	Call      func(args interface{}) (interface{}, error)
	Pack      func(out *message.OutMessage, result interface{}) error
	IsService bool
}

// Invoke extracts arguments from in, calls the user function, resets
// out, and packs the result — prepending DoneTag first when IsService.
// A void-returning function must still write DoneTag (service mode)
// with no payload, which falls out naturally when Pack is nil.
func (f *FunctionInvoker) Invoke(in *message.InMessage, out *message.OutMessage) error {
	var args interface{}
	if f.Extract != nil {
		a, err := f.Extract(in)
		if err != nil {
			return err
		}
		args = a
	}

	result, err := f.Call(args)
	if err != nil {
		return err
	}

	pack := func(o *message.OutMessage) error {
		if f.Pack == nil {
			return nil
		}
		return f.Pack(o, result)
	}

	var encodeErr error
	if f.IsService {
		encodeErr = codec.EncodeDoneReply(out, DoneTag, pack)
	} else {
		out.Clear()
		encodeErr = pack(out)
	}
	if encodeErr != nil {
		return ipcerr.New(ipcerr.BadMessage, "invoke: pack result", encodeErr)
	}
	return nil
}
