package cmd

import (
	metrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"

	"mq-rpc/logging"
	"mq-rpc/middleware"
	"mq-rpc/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the demo methods echo, add and sleep",
	Long: `usage example:
    mqrpc serve --service demo
        serve demo.echo, demo.add (v1, v2) and demo.sleep until interrupted.
    MQRPC_ETCD_ENDPOINTS=localhost:2379 mqrpc serve --service demo
        also announce the method catalogue in etcd.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.close()

		ctx, stop := signalContext()
		defer stop()

		s, err := newDemoServer(rt)
		if err != nil {
			return err
		}
		if rt.cfg.MetricsInterval > 0 {
			go metrics.Log(metrics.DefaultRegistry, rt.cfg.MetricsInterval,
				logging.Printf{Sugar: rt.log.Named("metrics").Sugar()})
		}
		return s.Run(ctx)
	},
}

// newDemoServer builds the demo server with the configured middleware chain.
func newDemoServer(rt *runtime) (*server.Server, error) {
	cfg := rt.cfg
	service := cfg.Service
	if service == "" {
		service = "demo"
	}
	description := cfg.Description
	if description == "" {
		description = "Demo service of the mqrpc command."
	}
	opts := []server.Option{
		server.WithLogger(rt.log),
		server.WithDescription(description),
		server.WithMiddleware(middleware.Logging(rt.log), middleware.Metrics(metrics.DefaultRegistry)),
	}
	if cfg.RateLimit.Rate > 0 {
		opts = append(opts, server.WithMiddleware(middleware.RateLimit(cfg.RateLimit.Rate, cfg.RateLimit.Burst)))
	}
	if cfg.HandlerTimeout > 0 {
		opts = append(opts, server.WithMiddleware(middleware.Timeout(cfg.HandlerTimeout)))
	}
	reg, err := rt.serviceRegistry()
	if err != nil {
		return nil, err
	}
	if reg != nil {
		opts = append(opts, server.WithRegistry(reg, cfg.Etcd.TTL))
	}

	ch, err := rt.openChannel()
	if err != nil {
		return nil, err
	}
	s, err := server.NewServer(ch, service, opts...)
	if err != nil {
		ch.Close()
		return nil, err
	}
	if err := registerDemo(s); err != nil {
		ch.Close()
		return nil, err
	}
	return s, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("service", "", "service name to serve under (default \"demo\")")
	serveCmd.Flags().String("description", "", "service description")
	if err := v.BindPFlag("service", serveCmd.Flags().Lookup("service")); err != nil {
		panic(err)
	}
	if err := v.BindPFlag("description", serveCmd.Flags().Lookup("description")); err != nil {
		panic(err)
	}
}
