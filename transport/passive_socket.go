package transport

import (
	"net"
	"os"
	"time"

	"ipcrpc/ipcerr"
	"ipcrpc/message"
)

// PathExists reports whether path already exists on disk. Overridable
// so tests can simulate stale-socket cleanup without touching the
// filesystem.
var PathExists = func(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// AcceptPollInterval bounds how long Accept blocks between consulting
// its predicate.
const AcceptPollInterval = 200 * time.Millisecond

// PassiveSocket holds a listening socket for either "tcp" or "unix"
// networks. Binding relies on Go's net.Listen, which manages its own
// accept backlog — the idiomatic substitute for an explicit
// backlog-size argument.
type PassiveSocket struct {
	addr     Address
	listener net.Listener
	cfg      message.Config
}

// Listen binds addr and returns a PassiveSocket ready to Accept. For a
// unix-domain Address whose path already exists (a stale socket file
// left by a crashed prior instance), the path is removed first.
func Listen(addr Address, cfg message.Config) (*PassiveSocket, error) {
	if addr.Network == "unix" && PathExists(addr.Path) {
		if err := os.Remove(addr.Path); err != nil {
			return nil, ipcerr.New(ipcerr.PassiveSocketPrepare, "listen", err)
		}
	}
	ln, err := net.Listen(addr.Network, addr.Path)
	if err != nil {
		return nil, ipcerr.New(ipcerr.PassiveSocketPrepare, "listen", err)
	}
	return &PassiveSocket{addr: addr, listener: ln, cfg: cfg}, nil
}

// Addr returns the bound Address as originally requested (for a
// wildcard or ephemeral port, prefer ListenAddr for the resolved one).
func (p *PassiveSocket) Addr() Address { return p.addr }

// ListenAddr returns the listener's actual bound net.Addr, useful when
// Addr's Path used an ephemeral port ("127.0.0.1:0").
func (p *PassiveSocket) ListenAddr() net.Addr { return p.listener.Addr() }

// Accept loops cooperatively until either a connection arrives or
// predicate turns false, in which case it raises a user-stop error.
func (p *PassiveSocket) Accept(predicate func() bool) (*Connection, error) {
	type deadliner interface {
		SetDeadline(time.Time) error
	}
	for {
		if dl, ok := p.listener.(deadliner); ok {
			dl.SetDeadline(time.Now().Add(AcceptPollInterval))
		}
		conn, err := p.listener.Accept()
		if err == nil {
			return NewConnection(conn, p.cfg), nil
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			if !predicate() {
				return nil, ipcerr.New(ipcerr.UserStop, "accept", nil)
			}
			continue
		}
		return nil, ipcerr.New(ipcerr.SocketAPIFailed, "accept", err)
	}
}

// Close shuts down the listener. The unix-domain variant unlinks its
// socket path afterward so a later Listen on the same path doesn't
// fail with "address already in use".
func (p *PassiveSocket) Close() error {
	err := p.listener.Close()
	if p.addr.Network == "unix" {
		os.Remove(p.addr.Path)
	}
	if err != nil {
		return ipcerr.New(ipcerr.SocketAPIFailed, "close", err)
	}
	return nil
}
