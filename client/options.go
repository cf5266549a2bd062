package client

import (
	"time"

	"go.uber.org/zap"

	"mq-rpc/middleware"
)

const (
	DefaultTimeout            = 30 * time.Second
	DefaultAbandonedCacheSize = 1024
)

type Option func(*Proxy)

// WithTimeout sets how long blocking calls wait for a reply. Zero waits forever.
func WithTimeout(d time.Duration) Option {
	return func(p *Proxy) {
		p.timeout = d
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(p *Proxy) {
		p.log = log
	}
}

// WithMiddleware wraps every blocking call, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(p *Proxy) {
		p.middlewares = append(p.middlewares, mws...)
	}
}

// WithAbandonedCacheSize bounds how many timed-out correlation ids are
// remembered so their late replies can be recognised and dropped.
func WithAbandonedCacheSize(n int) Option {
	return func(p *Proxy) {
		p.abandonedSize = n
	}
}

// OwnChannel makes Close also close the proxy's channel.
func OwnChannel() Option {
	return func(p *Proxy) {
		p.ownChannel = true
	}
}

type callOptions struct {
	timeout time.Duration
}

type CallOption func(*callOptions)

// WithCallTimeout overrides the proxy's timeout for one call.
func WithCallTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}
