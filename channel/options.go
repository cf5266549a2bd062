package channel

import "go.uber.org/zap"

type options struct {
	log *zap.Logger
}

type Option func(*options)

// WithLogger sets the logger used for broker-level events.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func newOptions(opts []Option) options {
	o := options{log: zap.L()}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = o.log.Named("channel")
	return o
}
