package transport

import (
	"net"
	"sync"

	"ipcrpc/message"
	"ipcrpc/protocol"
)

// Connection is a point-to-point duplex wrapper around a net.Conn,
// carrying exactly one message at a time in each direction with
// cooperative cancellation.
type Connection struct {
	conn      net.Conn
	cfg       message.Config
	closeOnce sync.Once
	closeErr  error
}

// NewConnection wraps an already-established net.Conn.
func NewConnection(conn net.Conn, cfg message.Config) *Connection {
	return &Connection{conn: conn, cfg: cfg}
}

// Raw returns the underlying net.Conn, for callers that need its
// address accessors or want to tune socket options directly.
func (c *Connection) Raw() net.Conn { return c.conn }

// Config returns the wire Config this connection was opened with.
func (c *Connection) Config() message.Config { return c.cfg }

// ReadMessage reads one complete message into into. See
// protocol.ReadMessage for the cooperative-cancellation contract.
func (c *Connection) ReadMessage(into *message.InMessage, predicate func() bool) (bool, error) {
	return protocol.ReadMessage(c.conn, into, c.cfg, predicate)
}

// WriteMessage writes from's full buffer. See protocol.WriteMessage.
func (c *Connection) WriteMessage(from *message.OutMessage, predicate func() bool) (bool, error) {
	return protocol.WriteMessage(c.conn, from, predicate)
}

// WaitForShutdown drains until the peer closes its end. See
// protocol.WaitForShutdown.
func (c *Connection) WaitForShutdown(predicate func() bool) error {
	return protocol.WaitForShutdown(c.conn, predicate)
}

// Close closes the underlying connection. Idempotent: the first call's
// result is remembered and replayed to subsequent callers.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
