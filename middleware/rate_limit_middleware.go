package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"mq-rpc/message"
	"mq-rpc/rpcerror"
)

// RateLimit 基于令牌桶算法限流，超出的请求直接返回 CodeRateLimited
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (*message.Response, error) {
			if !limiter.Allow() {
				return message.NewErrorResponse(rpcerror.CodeRateLimited,
					"rate limit exceeded for '"+call.FullMethod()+"'"), nil
			}
			return next(ctx, call)
		}
	}
}
