package middleware

import (
	"testing"
	"time"

	"ipcrpc/ipcerr"
	"ipcrpc/message"
	"ipcrpc/transport"
)

func echoHandler(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error {
	return out.AppendStr("ok")
}

func slowHandler(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error {
	time.Sleep(200 * time.Millisecond)
	return out.AppendStr("ok")
}

func TestLogging(t *testing.T) {
	handler := LoggingMiddleware()(echoHandler)

	out := message.NewOutMessage(message.DefaultConfig)
	if err := handler(1, message.NewInMessage(message.DefaultConfig, nil), out, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := message.NewInMessage(message.DefaultConfig, out.Bytes())
	s, err := in.ExtractStr()
	if err != nil || s != "ok" {
		t.Fatalf("expected payload 'ok', got %q err=%v", s, err)
	}
}

func TestTimeoutPass(t *testing.T) {
	handler := TimeoutMiddleware(500 * time.Millisecond)(echoHandler)

	err := handler(1, message.NewInMessage(message.DefaultConfig, nil), message.NewOutMessage(message.DefaultConfig), nil)
	if err != nil {
		t.Fatalf("expect no error, got %v", err)
	}
}

func TestTimeoutExceeded(t *testing.T) {
	handler := TimeoutMiddleware(50 * time.Millisecond)(slowHandler)

	err := handler(1, message.NewInMessage(message.DefaultConfig, nil), message.NewOutMessage(message.DefaultConfig), nil)
	if !ipcerr.IsKind(err, ipcerr.Timeout) {
		t.Fatalf("expect timeout error, got %v", err)
	}
}

func TestRateLimit(t *testing.T) {
	handler := RateLimitMiddleware(1, 2)(echoHandler)

	for i := 0; i < 2; i++ {
		err := handler(1, message.NewInMessage(message.DefaultConfig, nil), message.NewOutMessage(message.DefaultConfig), nil)
		if err != nil {
			t.Fatalf("request %d should pass, got error: %v", i, err)
		}
	}

	err := handler(1, message.NewInMessage(message.DefaultConfig, nil), message.NewOutMessage(message.DefaultConfig), nil)
	if !ipcerr.IsKind(err, ipcerr.RateLimited) {
		t.Fatalf("request 3 should be rate limited, got: %v", err)
	}
}

func TestRetrySucceedsAfterTransportFailures(t *testing.T) {
	attempts := 0
	flaky := func(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error {
		attempts++
		if attempts < 3 {
			return ipcerr.New(ipcerr.Transport, "flaky", nil)
		}
		return out.AppendStr("ok")
	}
	handler := RetryMiddleware(5, time.Millisecond)(flaky)

	out := message.NewOutMessage(message.DefaultConfig)
	err := handler(1, message.NewInMessage(message.DefaultConfig, nil), out, nil)
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	broken := func(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error {
		attempts++
		return ipcerr.New(ipcerr.BadMessage, "malformed", nil)
	}
	handler := RetryMiddleware(5, time.Millisecond)(broken)

	err := handler(1, message.NewInMessage(message.DefaultConfig, nil), message.NewOutMessage(message.DefaultConfig), nil)
	if !ipcerr.IsKind(err, ipcerr.BadMessage) {
		t.Fatalf("expected bad-message error passed through, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("non-retryable error should not be retried, got %d attempts", attempts)
	}
}

func TestChain(t *testing.T) {
	chained := Chain(LoggingMiddleware(), TimeoutMiddleware(500*time.Millisecond))
	handler := chained(echoHandler)

	err := handler(1, message.NewInMessage(message.DefaultConfig, nil), message.NewOutMessage(message.DefaultConfig), nil)
	if err != nil {
		t.Fatalf("expect no error, got %v", err)
	}
}
