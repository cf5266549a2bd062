package cmd

import (
	"context"
	"time"

	"mq-rpc/server"
)

// registerDemo installs the methods "mqrpc serve" exposes.
func registerDemo(s *server.Server) error {
	methods := []struct {
		name, version, desc string
		h                   server.Handler
	}{
		{"echo", "v1", "Return the value unchanged.",
			server.MustFunc(func(value any) any { return value }, "value")},
		{"add", "v1", "Add two numbers.",
			server.MustFunc(func(a, b float64) float64 { return a + b }, "a", "b")},
		{"add", "v2", "Add any amount of numbers.",
			server.MustFunc(func(nums []float64) float64 {
				var sum float64
				for _, n := range nums {
					sum += n
				}
				return sum
			}, "nums")},
		{"sleep", "v1", "Sleep for ms milliseconds, then return ms.",
			server.MustFunc(func(ctx context.Context, ms int) (int, error) {
				select {
				case <-time.After(time.Duration(ms) * time.Millisecond):
					return ms, nil
				case <-ctx.Done():
					return 0, ctx.Err()
				}
			}, "ms")},
	}
	for _, m := range methods {
		if err := s.Register(m.name, m.version, m.h, server.WithMethodDescription(m.desc)); err != nil {
			return err
		}
	}
	return nil
}
