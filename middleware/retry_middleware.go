package middleware

import (
	"time"

	"ipcrpc/internal/ilog"
	"ipcrpc/ipcerr"
	"ipcrpc/message"
	"ipcrpc/transport"
)

var retryLog = ilog.WithContext("middleware.retry")

// RetryMiddleware re-dispatches on transport or timeout failures, with
// exponential backoff starting at baseDelay. in is rewound before each
// retry so the handler sees the same arguments it did on the first
// attempt. Non-retryable errors (bad message, type mismatch, and so
// on) return immediately.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error {
			err := next(id, in, out, conn)
			for i := 0; i < maxRetries; i++ {
				if err == nil {
					return nil
				}
				if !retryable(err) {
					return err
				}
				retryLog.WithField("functionID", id).Warnf("retry attempt %d after error: %s", i+1, err)
				time.Sleep(baseDelay * time.Duration(1<<uint(i)))
				in.Rewind()
				out.Clear()
				err = next(id, in, out, conn)
			}
			return err
		}
	}
}

func retryable(err error) bool {
	return ipcerr.IsKind(err, ipcerr.Timeout) || ipcerr.IsKind(err, ipcerr.Transport)
}
