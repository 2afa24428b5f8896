package rpc

import (
	"context"
	"sync"
	"testing"
	"time"

	"ipcrpc/codec"
	"ipcrpc/message"
	"ipcrpc/transport"
)

func alwaysTrue() bool { return true }

const addFunctionID uint32 = 1

func addDispatcher() *FuncDispatcher {
	d := NewFuncDispatcher()
	d.Register(addFunctionID, &FunctionInvoker{
		IsService: true,
		Extract: func(in *message.InMessage) (interface{}, error) {
			a, err := in.ExtractI32()
			if err != nil {
				return nil, err
			}
			b, err := in.ExtractI32()
			if err != nil {
				return nil, err
			}
			return [2]int32{a, b}, nil
		},
		Call: func(args interface{}) (interface{}, error) {
			pair := args.([2]int32)
			return pair[0] + pair[1], nil
		},
		Pack: func(out *message.OutMessage, result interface{}) error {
			return out.AppendI32(result.(int32))
		},
	})
	return d
}

func startServer(t *testing.T, dispatcher Dispatcher) (*transport.PassiveSocket, func()) {
	t.Helper()
	listener, err := transport.Listen(transport.TCP("127.0.0.1:0"), message.DefaultConfig)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	srv := &Server{Cfg: message.DefaultConfig}
	stop := make(chan struct{})
	done := make(chan struct{})
	predicate := func() bool {
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}
	go func() {
		defer close(done)
		srv.Serve(listener, dispatcher, predicate)
	}()

	cleanup := func() {
		close(stop)
		listener.Close()
		<-done
	}
	return listener, cleanup
}

func TestRPCAdd(t *testing.T) {
	listener, cleanup := startServer(t, addDispatcher())
	defer cleanup()

	invoker := NewServiceInvoker(message.DefaultConfig)
	addr := transport.TCP(listener.ListenAddr().String())

	result, err := invoker.CallByLink(
		context.Background(),
		addr,
		nil,
		alwaysTrue,
		addFunctionID,
		func(out *message.OutMessage) error {
			if err := out.AppendI32(3); err != nil {
				return err
			}
			return out.AppendI32(4)
		},
		func(in *message.InMessage) (interface{}, error) {
			return in.ExtractI32()
		},
	)
	if err != nil {
		t.Fatalf("CallByLink: %v", err)
	}
	if result.(int32) != 7 {
		t.Fatalf("add(3,4) = %v, want 7", result)
	}
}

const (
	addWithCallbacksID uint32 = 2
	arg1CallbackID     uint32 = 101
	arg2CallbackID     uint32 = 102
)

// pairStore stands in for the remote_ptr-addressed (a, b) pair the
// original library's scenario resolves via reverse callbacks.
type pairStore struct {
	mu    sync.Mutex
	pairs map[message.RemotePtr][2]int32
	next  uint64
}

func newPairStore() *pairStore {
	return &pairStore{pairs: make(map[message.RemotePtr][2]int32)}
}

func (s *pairStore) put(a, b int32) message.RemotePtr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	p := message.RemotePtr(s.next)
	s.pairs[p] = [2]int32{a, b}
	return p
}

func (s *pairStore) get(p message.RemotePtr) [2]int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairs[p]
}

// addWithCallbacksServer implements Dispatcher directly (bypassing
// FunctionInvoker) because serving this call requires driving reverse
// callbacks over the same conn mid-request.
type addWithCallbacksServer struct {
	cfg  message.Config
	si   *ServiceInvoker
	pred func() bool
}

func (s *addWithCallbacksServer) Invoke(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error {
	if id != addWithCallbacksID {
		return unknownFunctionError(id)
	}
	p, err := in.ExtractRemotePtr()
	if err != nil {
		return err
	}

	in2 := message.NewInMessage(s.cfg, nil)
	out2 := message.NewOutMessage(s.cfg)

	appendP := func(o *message.OutMessage) error { return o.AppendRemotePtr(p) }
	decodeI32 := func(i *message.InMessage) (interface{}, error) { return i.ExtractI32() }

	a, err := s.si.CallByChannel(conn, in2, out2, nil, s.pred, arg1CallbackID, appendP, decodeI32)
	if err != nil {
		return err
	}
	b, err := s.si.CallByChannel(conn, in2, out2, nil, s.pred, arg2CallbackID, appendP, decodeI32)
	if err != nil {
		return err
	}

	return codec.EncodeDoneReply(out, DoneTag, func(o *message.OutMessage) error {
		return o.AppendI32(a.(int32) + b.(int32))
	})
}

func (s *addWithCallbacksServer) ReportError(error) {}
func (s *addWithCallbacksServer) Ready()             {}

func TestRPCAddWithCallbacks(t *testing.T) {
	cfg := message.DefaultConfig
	store := newPairStore()
	p := store.put(3, 4)

	predicate := alwaysTrue
	dispatcher := &addWithCallbacksServer{cfg: cfg, si: NewServiceInvoker(cfg), pred: predicate}
	listener, cleanup := startServer(t, dispatcher)
	defer cleanup()

	var order []uint32
	var mu sync.Mutex
	clientDispatch := func(id uint32, in *message.InMessage, out *message.OutMessage) (bool, error) {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()

		gotP, err := in.ExtractRemotePtr()
		if err != nil {
			return false, err
		}
		pair := store.get(gotP)
		var v int32
		switch id {
		case arg1CallbackID:
			v = pair[0]
		case arg2CallbackID:
			v = pair[1]
		default:
			return false, nil
		}

		out.Clear()
		if err := out.AppendU32(DoneTag); err != nil {
			return false, err
		}
		return true, out.AppendI32(v)
	}

	invoker := NewServiceInvoker(cfg)
	addr := transport.TCP(listener.ListenAddr().String())

	result, err := invoker.CallByLink(
		context.Background(),
		addr,
		clientDispatch,
		predicate,
		addWithCallbacksID,
		func(out *message.OutMessage) error { return out.AppendRemotePtr(p) },
		func(in *message.InMessage) (interface{}, error) { return in.ExtractI32() },
	)
	if err != nil {
		t.Fatalf("CallByLink: %v", err)
	}
	if result.(int32) != 7 {
		t.Fatalf("add_with_callbacks = %v, want 7", result)
	}
	if len(order) != 2 || order[0] != arg1CallbackID || order[1] != arg2CallbackID {
		t.Fatalf("expected callback order [arg1, arg2], got %v", order)
	}
}

func TestFunctionInvokerServiceFlagControlsSentinel(t *testing.T) {
	serviceInvoker := &FunctionInvoker{
		IsService: true,
		Call:      func(interface{}) (interface{}, error) { return int32(5), nil },
		Pack:      func(out *message.OutMessage, v interface{}) error { return out.AppendI32(v.(int32)) },
	}
	out := message.NewOutMessage(message.DefaultConfig)
	if err := serviceInvoker.Invoke(message.NewInMessage(message.DefaultConfig, nil), out); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	in := message.NewInMessage(message.DefaultConfig, out.Bytes())
	id, err := in.ExtractU32()
	if err != nil || id != DoneTag {
		t.Fatalf("expected DoneTag prefix, got id=%d err=%v", id, err)
	}

	stepInvoker := &FunctionInvoker{
		IsService: false,
		Call:      func(interface{}) (interface{}, error) { return int32(5), nil },
		Pack:      func(out *message.OutMessage, v interface{}) error { return out.AppendI32(v.(int32)) },
	}
	out2 := message.NewOutMessage(message.DefaultConfig)
	if err := stepInvoker.Invoke(message.NewInMessage(message.DefaultConfig, nil), out2); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	in2 := message.NewInMessage(message.DefaultConfig, out2.Bytes())
	v, err := in2.ExtractI32()
	if err != nil || v != 5 {
		t.Fatalf("expected bare i32 payload with no sentinel, got v=%d err=%v", v, err)
	}
}

// addArgs/addReply are an Args/Reply pair satisfying WireDecodable and
// WireEncodable, exercising the ReflectDispatcher convenience layer.
type addArgs struct{ A, B int32 }

func (a *addArgs) DecodeMessage(in *message.InMessage) error {
	x, err := in.ExtractI32()
	if err != nil {
		return err
	}
	y, err := in.ExtractI32()
	if err != nil {
		return err
	}
	a.A, a.B = x, y
	return nil
}

type addReply struct{ Sum int32 }

func (r *addReply) EncodeMessage(out *message.OutMessage) error {
	return out.AppendI32(r.Sum)
}

func (r *addReply) DecodeMessage(in *message.InMessage) error {
	v, err := in.ExtractI32()
	if err != nil {
		return err
	}
	r.Sum = v
	return nil
}

type arithService struct{}

func (arithService) Add(args *addArgs, reply *addReply) error {
	reply.Sum = args.A + args.B
	return nil
}

func TestReflectDispatcherRoundTrip(t *testing.T) {
	dispatcher, err := NewReflectDispatcher(&arithService{})
	if err != nil {
		t.Fatalf("NewReflectDispatcher: %v", err)
	}

	listener, cleanup := startServer(t, dispatcher)
	defer cleanup()

	invoker := NewServiceInvoker(message.DefaultConfig)
	addr := transport.TCP(listener.ListenAddr().String())

	result, err := invoker.CallByLink(
		context.Background(),
		addr,
		nil,
		alwaysTrue,
		FunctionID("Add"),
		func(out *message.OutMessage) error {
			if err := out.AppendI32(10); err != nil {
				return err
			}
			return out.AppendI32(32)
		},
		func(in *message.InMessage) (interface{}, error) {
			r := &addReply{}
			if err := r.DecodeMessage(in); err != nil {
				return nil, err
			}
			return r.Sum, nil
		},
	)
	if err != nil {
		t.Fatalf("CallByLink: %v", err)
	}
	if result.(int32) != 42 {
		t.Fatalf("Add(10,32) = %v, want 42", result)
	}
}

func TestFuncDispatcherUnknownID(t *testing.T) {
	d := NewFuncDispatcher()
	err := d.Invoke(999, message.NewInMessage(message.DefaultConfig, nil), message.NewOutMessage(message.DefaultConfig), nil)
	if err == nil {
		t.Fatal("expected unknown-function error")
	}
}

func TestServerExitsCleanlyOnPredicateFalse(t *testing.T) {
	listener, err := transport.Listen(transport.TCP("127.0.0.1:0"), message.DefaultConfig)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	srv := &Server{Cfg: message.DefaultConfig}
	calls := 0
	predicate := func() bool {
		calls++
		return calls < 2
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener, NewFuncDispatcher(), predicate)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected clean exit, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not exit after predicate turned false")
	}
}
