package middleware

import (
	"context"

	metrics "github.com/rcrowley/go-metrics"

	"mq-rpc/message"
)

// Metrics records per-method latency, throughput and failures in r:
//
//	rpc.<service>.<method>.latency   timer
//	rpc.<service>.<method>.failures  counter (errors and non-zero status codes)
//
// A nil r uses metrics.DefaultRegistry.
func Metrics(r metrics.Registry) Middleware {
	if r == nil {
		r = metrics.DefaultRegistry
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (*message.Response, error) {
			prefix := "rpc." + call.FullMethod()
			timer := metrics.GetOrRegisterTimer(prefix+".latency", r)
			failures := metrics.GetOrRegisterCounter(prefix+".failures", r)

			var (
				resp *message.Response
				err  error
			)
			timer.Time(func() {
				resp, err = next(ctx, call)
			})
			if err != nil || resp == nil || !resp.OK() {
				failures.Inc(1)
			}
			return resp, err
		}
	}
}
