package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mq-rpc/channel"
	"mq-rpc/client"
	"mq-rpc/config"
	"mq-rpc/loadbalance"
	"mq-rpc/logging"
	"mq-rpc/registry"
)

// runtime holds what a command needs to talk to the broker and the registry.
type runtime struct {
	cfg *config.Config
	log *zap.Logger

	mu     sync.Mutex
	memory *channel.MemoryBroker
	conn   *channel.AMQPConnection
	etcd   *registry.EtcdRegistry
}

// memoryBroker is shared by everything in this process when broker=memory.
var memoryBroker = channel.NewMemoryBroker()

func setup(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("timeout"); f != nil && f.Changed {
		d, err := cmd.Flags().GetDuration("timeout")
		if err != nil {
			return nil, err
		}
		cfg.Timeout = d
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return &runtime{cfg: cfg, log: log}, nil
}

// openChannel opens a new channel on the configured broker.
func (r *runtime) openChannel() (channel.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.Broker == "memory" {
		if r.memory == nil {
			r.memory = memoryBroker
		}
		return r.memory.Channel(), nil
	}
	if r.conn == nil {
		conn, err := r.dial()
		if err != nil {
			return nil, err
		}
		r.conn = conn
	}
	return r.conn.Channel(r.cfg.Prefetch)
}

func (r *runtime) dial() (*channel.AMQPConnection, error) {
	if len(r.cfg.Nodes) == 0 {
		return channel.DialAMQP(r.cfg.URL, channel.WithLogger(r.log))
	}
	b, err := loadbalance.New(r.cfg.Balance, r.cfg.Service)
	if err != nil {
		return nil, err
	}
	return channel.DialCluster(r.cfg.Nodes, b, channel.WithLogger(r.log))
}

// proxy opens a channel and a proxy that owns it.
func (r *runtime) proxy(service string, opts ...client.Option) (*client.Proxy, error) {
	ch, err := r.openChannel()
	if err != nil {
		return nil, err
	}
	opts = append([]client.Option{
		client.WithLogger(r.log),
		client.WithTimeout(r.cfg.Timeout),
		client.OwnChannel(),
	}, opts...)
	p, err := client.NewProxy(ch, service, opts...)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return p, nil
}

// serviceRegistry returns the etcd registry, or nil when no endpoints are configured.
func (r *runtime) serviceRegistry() (registry.Registry, error) {
	if len(r.cfg.Etcd.Endpoints) == 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.etcd == nil {
		reg, err := registry.NewEtcdRegistry(r.cfg.Etcd.Endpoints, r.cfg.Etcd.DialTimeout, r.log)
		if err != nil {
			return nil, err
		}
		r.etcd = reg
	}
	return r.etcd, nil
}

func (r *runtime) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.etcd != nil {
		r.etcd.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
	r.log.Sync()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// callContext bounds a one-shot command: the reply timeout plus some slack
// for connecting. A zero timeout means no bound.
func (r *runtime) callContext() (context.Context, context.CancelFunc) {
	ctx, stop := signalContext()
	if r.cfg.Timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout+5*time.Second)
	return ctx, func() {
		cancel()
		stop()
	}
}

var errNoRegistry = errors.New("no registry configured: set etcd.endpoints or MQRPC_ETCD_ENDPOINTS")
