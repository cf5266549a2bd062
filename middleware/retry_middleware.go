package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mq-rpc/message"
	"mq-rpc/rpcerror"
)

// Retry re-issues a proxy call whose reply did not arrive in time, backing off
// exponentially from baseDelay. Every attempt is a fresh publish with a new
// correlation id. Other failures are returned as they are. If ctx ends during
// a backoff, ctx.Err() is returned.
func Retry(maxRetries int, baseDelay time.Duration, log *zap.Logger) Middleware {
	if log == nil {
		log = zap.L()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (*message.Response, error) {
			resp, err := next(ctx, call)
			for i := 0; i < maxRetries; i++ {
				if err != nil || resp == nil || resp.StatusCode != rpcerror.CodeClientTimeout {
					return resp, err
				}
				delay := baseDelay * time.Duration(1<<i) // 指数退避
				log.Info("retrying timed out call",
					zap.String("method", call.FullMethod()),
					zap.String("correlation_id", call.CorrelationID),
					zap.Int("attempt", i+1),
					zap.Duration("backoff", delay))

				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, ctx.Err()
				case <-timer.C:
				}
				resp, err = next(ctx, call)
			}
			return resp, err
		}
	}
}
