package transport

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/jpillora/backoff"

	"ipcrpc/ipcerr"
	"ipcrpc/message"
)

// HostResolver resolves a hostname to an IP address. Overridable so
// tests can stub out name resolution.
var HostResolver = func(host string) (*net.IPAddr, error) {
	return net.ResolveIPAddr("ip4", host)
}

// ActiveSocket connects outbound, retrying transient failures at a
// fixed ~1s cadence up to a bounded number of attempts.
type ActiveSocket struct {
	// Backoff drives the spacing between connect attempts. The zero
	// value's defaults are overwritten by NewActiveSocket to match the
	// fixed ~1s/10-attempt policy; callers may replace it (e.g. with
	// jitter or a shorter cap) before calling Dial.
	Backoff *backoff.Backoff
	// MaxAttempts bounds the number of dial attempts before giving up.
	MaxAttempts int
	cfg         message.Config
}

// NewActiveSocket returns an ActiveSocket configured with the default
// connect-retry policy: up to 10 attempts at a fixed ~1s interval.
func NewActiveSocket(cfg message.Config) *ActiveSocket {
	return &ActiveSocket{
		Backoff: &backoff.Backoff{
			Min:    1 * time.Second,
			Max:    1 * time.Second,
			Factor: 1,
		},
		MaxAttempts: 10,
		cfg:         cfg,
	}
}

// Dial connects to addr, retrying refused/in-progress/again-class
// errors per the configured Backoff until MaxAttempts is exhausted or
// ctx is done, in which case ipcerr.ActiveSocketPrepare is raised.
func (a *ActiveSocket) Dial(ctx context.Context, addr Address) (*Connection, error) {
	a.Backoff.Reset()
	var lastErr error
	for attempt := 1; attempt <= a.MaxAttempts; attempt++ {
		var d net.Dialer
		conn, err := d.DialContext(ctx, addr.Network, addr.Path)
		if err == nil {
			return NewConnection(conn, a.cfg), nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, ipcerr.New(ipcerr.ActiveSocketPrepare, "dial", err)
		}
		if attempt == a.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ipcerr.New(ipcerr.ActiveSocketPrepare, "dial", ctx.Err())
		case <-time.After(a.Backoff.Duration()):
		}
	}
	return nil, ipcerr.New(ipcerr.ActiveSocketPrepare, "dial", lastErr)
}

// ResolveTCPHost turns a bare hostname into a dialable "host:port" tcp
// Address using HostResolver, raising ipcerr.BadHostname for an empty
// host and ipcerr.NameResolution when the lookup itself fails.
func ResolveTCPHost(host string, port int) (Address, error) {
	if host == "" {
		return Address{}, ipcerr.New(ipcerr.BadHostname, "resolve_tcp_host", nil)
	}
	ip, err := HostResolver(host)
	if err != nil {
		return Address{}, ipcerr.New(ipcerr.NameResolution, "resolve_tcp_host", err)
	}
	return TCP(net.JoinHostPort(ip.IP.String(), strconv.Itoa(port))), nil
}

func isRetryable(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EINPROGRESS)
}
