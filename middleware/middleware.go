// Package middleware wraps rpc.Dispatcher.Invoke with cross-cutting
// behavior — logging, timeouts, retries, rate limiting — composed the
// same way the teacher chains net/rpc-style HandlerFuncs.
package middleware

import (
	"ipcrpc/message"
	"ipcrpc/transport"
)

// HandlerFunc is the shape of rpc.Dispatcher.Invoke, lifted out so
// middlewares can wrap it without depending on the rpc package.
type HandlerFunc func(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error

// Middleware adapts a HandlerFunc into another HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes multiple middlewares into one, applied in the order
// given: the first middleware listed is the outermost wrapper.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Dispatcher is the subset of rpc.Dispatcher that middlewares wrap,
// declared locally to avoid an import cycle with package rpc.
type Dispatcher interface {
	Invoke(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error
	ReportError(err error)
	Ready()
}

// WrappedDispatcher decorates an existing Dispatcher's Invoke with a
// Middleware chain while delegating ReportError and Ready unchanged.
type WrappedDispatcher struct {
	Next Dispatcher
	mw   Middleware
}

// NewWrappedDispatcher builds a WrappedDispatcher applying mw around
// next.Invoke.
func NewWrappedDispatcher(next Dispatcher, mw Middleware) *WrappedDispatcher {
	return &WrappedDispatcher{Next: next, mw: mw}
}

func (w *WrappedDispatcher) Invoke(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error {
	return w.mw(w.Next.Invoke)(id, in, out, conn)
}

func (w *WrappedDispatcher) ReportError(err error) { w.Next.ReportError(err) }
func (w *WrappedDispatcher) Ready()                { w.Next.Ready() }
