package rpc

import (
	"sync"

	"ipcrpc/codec"
	"ipcrpc/ipcerr"
	"ipcrpc/internal/ilog"
	"ipcrpc/message"
	"ipcrpc/transport"
)

var serverLog = ilog.WithContext("rpc.server")

// Server runs the long-lived accept-serve loop: one connection serves
// exactly one top-level request plus any number of reverse callbacks
// the service initiates during that request. Sequential — concurrency
// across connections is the caller's concern, addressed by ServePool.
type Server struct {
	Cfg message.Config
}

// Serve calls dispatcher.Ready once, then repeatedly accepts a
// connection, reads one request message, routes it to
// dispatcher.Invoke, writes the reply, waits for the peer to close (to
// avoid TIME_WAIT), and closes. Any non-user-stop error from a
// connection goes to dispatcher.ReportError and the loop continues.
// Exits cleanly, returning nil, when predicate turns false.
func (s *Server) Serve(listener *transport.PassiveSocket, dispatcher Dispatcher, predicate func() bool) error {
	dispatcher.Ready()

	for {
		conn, err := listener.Accept(predicate)
		if err != nil {
			if ipcerr.IsUserStop(err) {
				return nil
			}
			return err
		}

		if err := s.serveOne(conn, dispatcher, predicate); err != nil {
			if ipcerr.IsUserStop(err) {
				return nil
			}
			dispatcher.ReportError(err)
		}
	}
}

func (s *Server) serveOne(conn *transport.Connection, dispatcher Dispatcher, predicate func() bool) error {
	defer conn.Close()

	in := message.NewInMessage(s.Cfg, nil)
	out := message.NewOutMessage(s.Cfg)

	ok, err := conn.ReadMessage(in, predicate)
	if err != nil {
		return err
	}
	if !ok {
		return ipcerr.New(ipcerr.UserStop, "serve: read request", nil)
	}

	id, err := codec.ReadLeadingID(in)
	if err != nil {
		return err
	}

	if err := dispatcher.Invoke(id, in, out, conn); err != nil {
		return err
	}

	ok, err = conn.WriteMessage(out, predicate)
	if err != nil {
		return err
	}
	if !ok {
		return ipcerr.New(ipcerr.UserStop, "serve: write reply", nil)
	}

	return conn.WaitForShutdown(predicate)
}

// ServePool fans accepted connections out across a fixed pool of
// worker goroutines. Each connection still processes exactly one
// request (plus its callbacks) synchronously and sequentially on its
// own worker; the pool only parallelizes across connections.
func ServePool(s *Server, listener *transport.PassiveSocket, dispatcher Dispatcher, predicate func() bool, workers int) error {
	dispatcher.Ready()

	type job struct{ conn *transport.Connection }
	jobs := make(chan job, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := s.serveOne(j.conn, dispatcher, predicate); err != nil && !ipcerr.IsUserStop(err) {
					dispatcher.ReportError(err)
				}
			}
		}()
	}
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	for {
		conn, err := listener.Accept(predicate)
		if err != nil {
			if ipcerr.IsUserStop(err) {
				return nil
			}
			return err
		}
		select {
		case jobs <- job{conn: conn}:
		default:
			serverLog.Warn("worker pool saturated, blocking accept loop until a slot frees")
			jobs <- job{conn: conn}
		}
	}
}
