package middleware

import (
	"context"
	"fmt"
	"time"

	"mq-rpc/message"
	"mq-rpc/rpcerror"
)

// Timeout bounds how long a server handler may run. An overrun is answered
// with CodeHandlerTimeout; the handler keeps its cancelled ctx and its result
// is discarded.
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (*message.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type result struct {
				resp *message.Response
				err  error
			}
			// 缓冲为 1，超时后 handler 返回也不会阻塞
			done := make(chan result, 1)
			go func() {
				resp, err := next(ctx, call)
				done <- result{resp, err}
			}()

			select {
			case r := <-done:
				return r.resp, r.err
			case <-ctx.Done():
				return message.NewErrorResponse(rpcerror.CodeHandlerTimeout,
					fmt.Sprintf("Handler for '%s' exceeded %s", call.FullMethod(), timeout)), nil
			}
		}
	}
}
