// Package codec provides the small framing helpers shared by the rpc
// package's function invoker, service invoker and server loop: every
// wire frame this engine exchanges is "one u32 identifier followed by
// serialized fields", whether that identifier is a function id, the
// done-tag sentinel, or a callback id. Centralizing that shape here
// keeps the three call sites from drifting apart.
package codec

import "ipcrpc/message"

// EncodeRequest resets out and writes functionID followed by whatever
// args appends. args may be nil for a zero-argument call.
func EncodeRequest(out *message.OutMessage, functionID uint32, args func(*message.OutMessage) error) error {
	out.Clear()
	if err := out.AppendU32(functionID); err != nil {
		return err
	}
	if args == nil {
		return nil
	}
	return args(out)
}

// EncodeCallbackRequest has the identical wire shape as EncodeRequest;
// it is named separately because it is written by the serving side
// mid-request rather than by the originating caller.
func EncodeCallbackRequest(out *message.OutMessage, callbackID uint32, args func(*message.OutMessage) error) error {
	return EncodeRequest(out, callbackID, args)
}

// EncodeDoneReply resets out and writes doneTag followed by whatever
// pack appends. pack may be nil for a void return.
func EncodeDoneReply(out *message.OutMessage, doneTag uint32, pack func(*message.OutMessage) error) error {
	out.Clear()
	if err := out.AppendU32(doneTag); err != nil {
		return err
	}
	if pack == nil {
		return nil
	}
	return pack(out)
}

// ReadLeadingID consumes and returns the leading u32 of in: a
// request's function id, or a reply's done-tag/callback id.
func ReadLeadingID(in *message.InMessage) (uint32, error) {
	return in.ExtractU32()
}
