package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mq-rpc/client"
)

var (
	benchN           int
	benchConcurrency int
	benchVersion     string
)

// benchCmd represents the bench command
var benchCmd = &cobra.Command{
	Use:   "bench <service> <method> [arg...]",
	Short: "measure round trip latency of a remote method",
	Long: `Issues n calls from a pool of proxies and prints latency percentiles.
With --broker memory the demo server runs in the same process.

usage example:
    mqrpc bench demo echo hello -n 10000 -c 16 --broker memory`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.close()

		ctx, stop := signalContext()
		defer stop()

		if rt.cfg.Broker == "memory" {
			s, err := newDemoServer(rt)
			if err != nil {
				return err
			}
			serveCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- s.Run(serveCtx) }()
			defer func() {
				cancel()
				<-done
			}()
		}

		pool := client.NewPool(benchConcurrency, func(ctx context.Context) (*client.Proxy, error) {
			return rt.proxy(args[0])
		})
		defer pool.Close()

		timer := metrics.NewTimer()
		failures := metrics.NewCounter()
		callArgs := parseArgs(args[2:])

		jobs := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < benchConcurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range jobs {
					if !benchOne(ctx, pool, args[1], callArgs, timer) {
						failures.Inc(1)
					}
				}
			}()
		}

		start := time.Now()
	feed:
		for i := 0; i < benchN; i++ {
			select {
			case jobs <- struct{}{}:
			case <-ctx.Done():
				break feed
			}
		}
		close(jobs)
		wg.Wait()
		elapsed := time.Since(start)

		snap := timer.Snapshot()
		ps := snap.Percentiles([]float64{0.5, 0.9, 0.99})
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "calls:    %d (%d failed)\n", snap.Count()+failures.Count(), failures.Count())
		fmt.Fprintf(out, "elapsed:  %s\n", elapsed.Round(time.Millisecond))
		if elapsed > 0 {
			fmt.Fprintf(out, "rate:     %.1f/s\n", float64(snap.Count())/elapsed.Seconds())
		}
		fmt.Fprintf(out, "mean:     %s\n", time.Duration(snap.Mean()))
		fmt.Fprintf(out, "p50:      %s\n", time.Duration(ps[0]))
		fmt.Fprintf(out, "p90:      %s\n", time.Duration(ps[1]))
		fmt.Fprintf(out, "p99:      %s\n", time.Duration(ps[2]))
		fmt.Fprintf(out, "max:      %s\n", time.Duration(snap.Max()))
		return nil
	},
}

// benchOne makes one call and records its latency if it succeeded.
func benchOne(ctx context.Context, pool *client.Pool, method string, args []any, timer metrics.Timer) bool {
	pp, err := pool.Get(ctx)
	if err != nil {
		zap.L().Debug("bench: no proxy", zap.Error(err))
		return false
	}
	defer pp.Release()

	start := time.Now()
	resp, err := pp.Call(ctx, method, benchVersion, args, nil)
	if err != nil {
		if ctx.Err() == nil {
			pp.MarkUnusable()
		}
		zap.L().Debug("bench: call failed", zap.Error(err))
		return false
	}
	if !resp.OK() {
		zap.L().Debug("bench: error response", zap.Uint32("code", resp.StatusCode), zap.String("message", resp.ErrorMessage))
		return false
	}
	timer.UpdateSince(start)
	return true
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntVar(&benchN, "n", 1000, "number of calls")
	benchCmd.Flags().IntVarP(&benchConcurrency, "concurrency", "c", 8, "concurrent callers, one proxy each")
	benchCmd.Flags().StringVar(&benchVersion, "version", "v1", "method version")
}
