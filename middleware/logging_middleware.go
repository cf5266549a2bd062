package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mq-rpc/message"
)

// Logging records method, duration and outcome of every call.
func Logging(log *zap.Logger) Middleware {
	if log == nil {
		log = zap.L()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (*message.Response, error) {
			start := time.Now()
			resp, err := next(ctx, call)
			fields := []zap.Field{
				zap.String("method", call.FullMethod()),
				zap.String("version", call.Request.MethodVersion),
				zap.String("correlation_id", call.CorrelationID),
				zap.Duration("duration", time.Since(start)),
			}
			switch {
			case err != nil:
				log.Warn("rpc failed", append(fields, zap.Error(err))...)
			case resp == nil:
				log.Warn("rpc returned no response", fields...)
			case !resp.OK():
				log.Info("rpc returned error", append(fields,
					zap.Uint32("status_code", resp.StatusCode),
					zap.String("error_message", resp.ErrorMessage))...)
			default:
				log.Debug("rpc ok", fields...)
			}
			return resp, err
		}
	}
}
