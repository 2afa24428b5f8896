package middleware

import (
	"golang.org/x/time/rate"

	"ipcrpc/ipcerr"
	"ipcrpc/message"
	"ipcrpc/transport"
)

// RateLimitMiddleware caps dispatch throughput with a token-bucket
// limiter: r tokens per second, burst allowed to accumulate.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(id uint32, in *message.InMessage, out *message.OutMessage, conn *transport.Connection) error {
			if !limiter.Allow() {
				return ipcerr.New(ipcerr.RateLimited, "dispatch: rate limit exceeded", nil)
			}
			return next(id, in, out, conn)
		}
	}
}
