package middleware

import (
	"time"

	"ipcrpc/ipcerr"
	"ipcrpc/message"
	"ipcrpc/transport"
)

// TimeoutMiddleware bounds how long a single dispatch is allowed to
// run. next executes on its own goroutine so a hung Call/Extract/Pack
// cannot block the accept loop forever; the goroutine itself is not
// killed, only abandoned, matching the cooperative-cancellation model
// the rest of the module uses rather than a hard context cancel.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error {
			done := make(chan error, 1)
			go func() {
				done <- next(id, in, out, conn)
			}()

			select {
			case err := <-done:
				return err
			case <-time.After(timeout):
				return ipcerr.New(ipcerr.Timeout, "dispatch: deadline exceeded", nil)
			}
		}
	}
}
