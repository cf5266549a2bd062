// Package middleware wraps RPC invocations on either side of the channel.
//
// On a server the chain sits between dispatch and the registered handler; on a
// proxy it sits around one blocking call (publish + wait for the reply).
//
//	server:  delivery → decode → dispatch → [Logging → Timeout → RateLimit → ...] → handler
//	proxy:   Call()   → [Retry → Logging → ...] → publish + await
//
// A HandlerFunc returns the response to send back. A non-nil error means the
// invocation failed before a response existed; the server turns it into an
// error response, the proxy hands it to the caller.
package middleware

import (
	"context"
	"time"

	"mq-rpc/message"
)

// Call describes one invocation as it travels through the chain.
type Call struct {
	Service       string
	Method        string
	CorrelationID string // set once the request has been published
	Request       *message.Request
	Timeout       time.Duration // proxy side: how long to wait for the reply, 0 = forever
}

// FullMethod is the routing key of the call, "service.method".
func (c *Call) FullMethod() string {
	return c.Service + "." + c.Method
}

type HandlerFunc func(ctx context.Context, call *Call) (*message.Response, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain 将多个中间件组合成一个中间件，第一个中间件在最外层
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
