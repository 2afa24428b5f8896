// Package protocol drives message exchange on top of a stream socket
// with cooperative, non-blocking I/O. It never blocks indefinitely and
// never spawns a goroutine to watch for cancellation: every suspension
// point sets a short deadline, and on timeout consults a caller-supplied
// predicate before retrying.
package protocol

import (
	"errors"
	"io"
	"net"
	"time"

	"ipcrpc/ipcerr"
	"ipcrpc/message"
)

// PollInterval is the deadline granularity used at every cooperative
// yield point of this package: read_message, write_message and
// wait_for_shutdown. Sub-second, to keep cancellation latency bounded.
// Accept and connect retry are paced in package transport instead.
const PollInterval = 200 * time.Millisecond

// ReadMessage reads one complete message into into, cooperatively
// yielding to predicate on I/O timeout. It returns (true, nil) once the
// full message (header plus declared body) has arrived, (false, nil) if
// predicate returned false at a yield boundary before the message
// completed, and a non-nil error on any other socket failure or if the
// declared size would exceed the configured Config's maximum message
// size.
//
// The predicate is consulted on every read timeout, including one that
// falls after part of the header or body has arrived; a cancellation
// there returns (false, nil) and the bytes already read are dropped.
func ReadMessage(conn net.Conn, into *message.InMessage, cfg message.Config, predicate func() bool) (bool, error) {
	header := make([]byte, cfg.HeaderWidth)
	if ok, err := readFully(conn, header, predicate); !ok || err != nil {
		return ok, err
	}

	declared := decodeHeader(cfg, header)
	if declared < cfg.HeaderWidth || declared > cfg.MaxMessageSize() {
		return false, ipcerr.Sized(ipcerr.MessageOverflow, "read_message", declared, cfg.MaxMessageSize())
	}

	buf := make([]byte, declared)
	copy(buf, header)
	if ok, err := readFully(conn, buf[cfg.HeaderWidth:], predicate); !ok || err != nil {
		return ok, err
	}

	into.Load(buf)
	return true, nil
}

// WriteMessage writes from's full buffer to conn, cooperatively
// yielding to predicate on I/O timeout. Symmetric to ReadMessage: false
// on cooperative cancellation, true on full transmission.
func WriteMessage(conn net.Conn, from *message.OutMessage, predicate func() bool) (bool, error) {
	return writeFully(conn, from.Bytes(), predicate)
}

// WaitForShutdown reads (and discards) until the peer closes its end,
// cooperatively yielding to predicate on I/O timeout. Servers call this
// before closing so they don't provoke TIME_WAIT on the client side by
// closing first.
func WaitForShutdown(conn net.Conn, predicate func() bool) error {
	scratch := make([]byte, 4096)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(PollInterval)); err != nil {
			return ipcerr.New(ipcerr.Transport, "wait_for_shutdown", err)
		}
		_, err := conn.Read(scratch)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case isTimeout(err):
			if !predicate() {
				return ipcerr.New(ipcerr.UserStop, "wait_for_shutdown", nil)
			}
		case err != nil:
			return ipcerr.New(ipcerr.Transport, "wait_for_shutdown", err)
		}
	}
}

func readFully(conn net.Conn, dst []byte, predicate func() bool) (bool, error) {
	read := 0
	for read < len(dst) {
		if err := conn.SetReadDeadline(time.Now().Add(PollInterval)); err != nil {
			return false, ipcerr.New(ipcerr.Transport, "read_message", err)
		}
		n, err := conn.Read(dst[read:])
		read += n
		switch {
		case err == nil:
			continue
		case isTimeout(err):
			if read >= len(dst) {
				continue
			}
			if !predicate() {
				return false, nil
			}
		default:
			return false, ipcerr.New(ipcerr.Transport, "read_message", err)
		}
	}
	return true, nil
}

func writeFully(conn net.Conn, src []byte, predicate func() bool) (bool, error) {
	written := 0
	for written < len(src) {
		if err := conn.SetWriteDeadline(time.Now().Add(PollInterval)); err != nil {
			return false, ipcerr.New(ipcerr.Transport, "write_message", err)
		}
		n, err := conn.Write(src[written:])
		written += n
		switch {
		case err == nil:
			continue
		case isTimeout(err):
			if written >= len(src) {
				continue
			}
			if !predicate() {
				return false, nil
			}
		default:
			return false, ipcerr.New(ipcerr.Transport, "write_message", err)
		}
	}
	return true, nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func decodeHeader(cfg message.Config, header []byte) int {
	return message.NewInMessage(cfg, header).DeclaredLen()
}
