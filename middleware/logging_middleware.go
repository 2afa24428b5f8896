package middleware

import (
	"time"

	"ipcrpc/internal/ilog"
	"ipcrpc/message"
	"ipcrpc/transport"
)

var logMw = ilog.WithContext("middleware.logging")

// LoggingMiddleware logs the function id, duration and error (if any)
// of every dispatched call.
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error {
			start := time.Now()
			err := next(id, in, out, conn)
			duration := time.Since(start)
			call := logMw.WithField("functionID", id)
			if err != nil {
				call.Errorf("dispatch failed after %s: %s", duration, err)
			} else {
				call.Debugf("dispatch completed in %s", duration)
			}
			return err
		}
	}
}
