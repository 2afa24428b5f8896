package rpc

import (
	"context"

	"ipcrpc/codec"
	"ipcrpc/ipcerr"
	"ipcrpc/message"
	"ipcrpc/transport"
)

// ServiceInvoker originates remote calls, optionally interleaving
// reverse callbacks on the same connection during a single outstanding
// call.
type ServiceInvoker struct {
	Cfg    message.Config
	Active *transport.ActiveSocket
}

// NewServiceInvoker returns a ServiceInvoker using cfg's wire framing
// and the default connect-retry policy for call-by-link.
func NewServiceInvoker(cfg message.Config) *ServiceInvoker {
	return &ServiceInvoker{Cfg: cfg, Active: transport.NewActiveSocket(cfg)}
}

// CallByLink connects a fresh client socket to addr, then delegates to
// CallByChannel over that connection, closing it before returning.
func (s *ServiceInvoker) CallByLink(
	ctx context.Context,
	addr transport.Address,
	dispatch ClientCallbackDispatcher,
	predicate func() bool,
	functionID uint32,
	args Appender,
	decodeReturn ResultDecoder,
) (interface{}, error) {
	conn, err := s.Active.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return s.CallByChannel(conn, message.NewInMessage(s.Cfg, nil), message.NewOutMessage(s.Cfg), dispatch, predicate, functionID, args, decodeReturn)
}

// CallByChannel reuses an existing connection, used when a service
// implementation needs to fetch arguments via reverse callbacks while
// serving a request it is itself handling. inScratch/outScratch are
// caller-owned scratch buffers, reset on each use.
//
// Protocol: send functionID followed by serialized args; then loop
// reading replies. A reply whose leading u32 equals DoneTag is the
// terminal return value. Any other leading u32 is a callback id:
// dispatch serves it and the reply is written back on the same
// connection before looping again. A dispatch that reports "unknown
// id" (false, nil) raises a protocol error.
func (s *ServiceInvoker) CallByChannel(
	conn *transport.Connection,
	inScratch *message.InMessage,
	outScratch *message.OutMessage,
	dispatch ClientCallbackDispatcher,
	predicate func() bool,
	functionID uint32,
	args Appender,
	decodeReturn ResultDecoder,
) (interface{}, error) {
	if err := codec.EncodeRequest(outScratch, functionID, args); err != nil {
		return nil, err
	}

	ok, err := conn.WriteMessage(outScratch, predicate)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ipcerr.New(ipcerr.UserStop, "call: send request", nil)
	}

	for {
		ok, err := conn.ReadMessage(inScratch, predicate)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ipcerr.New(ipcerr.UserStop, "call: receive reply", nil)
		}

		id, err := codec.ReadLeadingID(inScratch)
		if err != nil {
			return nil, err
		}

		if id == DoneTag {
			if decodeReturn == nil {
				return nil, nil
			}
			return decodeReturn(inScratch)
		}

		handled, err := dispatch(id, inScratch, outScratch)
		if err != nil {
			return nil, err
		}
		if !handled {
			return nil, unknownFunctionError(id)
		}

		ok, err = conn.WriteMessage(outScratch, predicate)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ipcerr.New(ipcerr.UserStop, "call: send callback reply", nil)
		}
	}
}
