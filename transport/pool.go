// ConnPool amortizes the ActiveSocket connect-retry cost across many
// sequential calls to the same Address. Since the core forbids
// multiplexing concurrent calls onto one connection, a pooled
// *Connection is always used exclusively by its current borrower —
// this is a reuse pool, not a multiplexer.
//
// Pool design: a buffered channel as a FIFO queue. Buffered channels
// are concurrency-safe and block on empty for free.
package transport

import (
	"fmt"
	"sync"
)

// ConnPool manages a bounded set of reusable Connections to a single
// Address.
type ConnPool struct {
	mu       sync.Mutex
	conns    chan *PooledConnection
	addr     Address
	maxConns int
	curConns int
	closed   bool
	factory  func() (*Connection, error)
}

// PooledConnection wraps a *Connection with pool bookkeeping.
type PooledConnection struct {
	*Connection
	pool     *ConnPool
	unusable bool
}

// MarkUnusable flags this connection as broken. Put will close and
// discard it instead of returning it to the pool.
func (c *PooledConnection) MarkUnusable() { c.unusable = true }

// NewConnPool creates a pool bounded at maxConns, for addr, dialing new
// connections lazily via factory (typically an ActiveSocket.Dial call
// bound to addr).
func NewConnPool(addr Address, maxConns int, factory func() (*Connection, error)) *ConnPool {
	return &ConnPool{
		conns:    make(chan *PooledConnection, maxConns),
		addr:     addr,
		maxConns: maxConns,
		factory:  factory,
	}
}

// Addr returns the pool's target Address.
func (p *ConnPool) Addr() Address { return p.addr }

// Get borrows a connection: an idle one if available, a freshly dialed
// one if under maxConns, or blocks for a return if the pool is at
// capacity.
func (p *ConnPool) Get() (*PooledConnection, error) {
	select {
	case conn := <-p.conns:
		if conn.unusable {
			return p.createNew()
		}
		return conn, nil
	default:
		p.mu.Lock()
		underLimit := p.curConns < p.maxConns
		p.mu.Unlock()
		if underLimit {
			return p.createNew()
		}
		conn := <-p.conns
		return conn, nil
	}
}

// Put returns a borrowed connection to the pool. A connection marked
// unusable by MarkUnusable is closed and discarded instead.
func (p *ConnPool) Put(conn *PooledConnection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn.unusable || p.closed {
		conn.Close()
		p.curConns--
		return
	}
	p.conns <- conn
}

// Close shuts down the pool, closing every idle connection. Borrowed
// connections not yet returned are closed when their borrower calls
// Put.
func (p *ConnPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	close(p.conns)
	for conn := range p.conns {
		conn.Close()
		p.curConns--
	}
	return nil
}

func (p *ConnPool) createNew() (*PooledConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.curConns >= p.maxConns {
		return nil, fmt.Errorf("connection pool exhausted for %s", p.addr)
	}

	conn, err := p.factory()
	if err != nil {
		return nil, err
	}

	p.curConns++
	return &PooledConnection{Connection: conn, pool: p}, nil
}
