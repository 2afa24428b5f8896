package rpc

import (
	"fmt"
	"hash/fnv"
	"reflect"

	"ipcrpc/codec"
	"ipcrpc/ipcerr"
	"ipcrpc/message"
	"ipcrpc/transport"
)

// WireDecodable is implemented by argument types that know how to read
// themselves off an InMessage. User code composes the primitive
// Extract* calls, the same pattern shown in message/example_test.go.
type WireDecodable interface {
	DecodeMessage(in *message.InMessage) error
}

// WireEncodable is implemented by reply types that know how to write
// themselves onto an OutMessage.
type WireEncodable interface {
	EncodeMessage(out *message.OutMessage) error
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type registeredMethod struct {
	name      string
	method    reflect.Method
	argType   reflect.Type
	replyType reflect.Type
}

// ReflectDispatcher is an optional convenience layer over the core's
// plain numeric-id Dispatcher: it scans a receiver's exported methods
// of the shape `func(*Args, *Reply) error` — where *Args implements
// WireDecodable and *Reply implements WireEncodable — and assigns each
// a stable numeric id derived from its name, so callers don't have to
// hand-maintain an id table alongside the method set.
type ReflectDispatcher struct {
	rcvr    reflect.Value
	typ     reflect.Type
	byID    map[uint32]*registeredMethod
	OnError func(error)
	OnReady func()
}

// NewReflectDispatcher scans rcvr (which must be a pointer to a
// struct) and registers every method matching the required signature.
func NewReflectDispatcher(rcvr interface{}) (*ReflectDispatcher, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("rpc: rcvr must be a pointer to a struct, got %v", typ)
	}

	d := &ReflectDispatcher{
		rcvr: reflect.ValueOf(rcvr),
		typ:  typ,
		byID: make(map[uint32]*registeredMethod),
	}

	for i := 0; i < typ.NumMethod(); i++ {
		m := typ.Method(i)
		if m.Type.NumIn() != 3 || m.Type.NumOut() != 1 || m.Type.Out(0) != errorType {
			continue
		}
		argType, replyType := m.Type.In(1), m.Type.In(2)
		if argType.Kind() != reflect.Ptr || replyType.Kind() != reflect.Ptr {
			continue
		}
		if !argType.Implements(reflect.TypeOf((*WireDecodable)(nil)).Elem()) {
			continue
		}
		if !replyType.Implements(reflect.TypeOf((*WireEncodable)(nil)).Elem()) {
			continue
		}

		id := FunctionID(m.Name)
		d.byID[id] = &registeredMethod{
			name:      m.Name,
			method:    m,
			argType:   argType.Elem(),
			replyType: replyType.Elem(),
		}
	}

	return d, nil
}

// FunctionID derives the stable numeric function id for a method name.
// Clients calling a ReflectDispatcher-backed server via ServiceInvoker
// compute the same id from the method name rather than sharing a
// hand-written constant.
func FunctionID(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	id := h.Sum32()
	if id == DoneTag {
		id++
	}
	return id
}

func (d *ReflectDispatcher) Invoke(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error {
	rm, ok := d.byID[id]
	if !ok {
		return unknownFunctionError(id)
	}

	argv := reflect.New(rm.argType)
	if err := argv.Interface().(WireDecodable).DecodeMessage(in); err != nil {
		return ipcerr.New(ipcerr.BadMessage, "invoke: decode args for "+rm.name, err)
	}

	replyv := reflect.New(rm.replyType)
	results := rm.method.Func.Call([]reflect.Value{d.rcvr, argv, replyv})
	if !results[0].IsNil() {
		return results[0].Interface().(error)
	}

	return codec.EncodeDoneReply(out, DoneTag, func(o *message.OutMessage) error {
		return replyv.Interface().(WireEncodable).EncodeMessage(o)
	})
}

func (d *ReflectDispatcher) ReportError(err error) {
	if d.OnError != nil {
		d.OnError(err)
	}
}

func (d *ReflectDispatcher) Ready() {
	if d.OnReady != nil {
		d.OnReady()
	}
}
