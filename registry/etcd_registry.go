package registry

// EtcdRegistry stores one key per running server:
//
//	Key:   /mq-rpc/{Service}/{InstanceID}
//	Value: JSON-encoded ServiceInstance
//
// Registration uses TTL-based leases: if the server crashes, the lease expires
// and the entry is automatically removed.

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

type lease struct {
	id     clientv3.LeaseID
	cancel context.CancelFunc // stops KeepAlive
}

// EtcdRegistry implements Registry on etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client
	log    *zap.Logger

	mu     sync.Mutex
	leases map[string]lease // instance key -> lease kept alive by this process
}

// NewEtcdRegistry connects to etcd. The etcd client logs through log.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration, log *zap.Logger) (*EtcdRegistry, error) {
	if log == nil {
		log = zap.L()
	}
	log = log.Named("registry")
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		Logger:      log.Named("etcd"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect etcd")
	}
	return &EtcdRegistry{client: c, log: log, leases: make(map[string]lease)}, nil
}

// Register puts inst under a fresh lease of ttl seconds and renews it in the
// background. Registering the same instance again replaces the old lease.
func (r *EtcdRegistry) Register(ctx context.Context, inst ServiceInstance, ttl int64) error {
	val, err := json.Marshal(inst)
	if err != nil {
		return errors.Wrap(err, "encode instance")
	}

	grant, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return errors.Wrap(err, "grant lease")
	}

	key := instanceKey(inst.Service, inst.ID)
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(grant.ID)); err != nil {
		return errors.Wrapf(err, "put %s", key)
	}

	// KeepAlive outlives the caller's ctx; Deregister or Close stops it.
	keepCtx, cancel := context.WithCancel(context.Background())
	ch, err := r.client.KeepAlive(keepCtx, grant.ID)
	if err != nil {
		cancel()
		return errors.Wrap(err, "keep lease alive")
	}
	go func() {
		for range ch {
		}
		r.log.Debug("lease keep-alive stopped", zap.String("key", key))
	}()

	r.mu.Lock()
	old, ok := r.leases[key]
	r.leases[key] = lease{id: grant.ID, cancel: cancel}
	r.mu.Unlock()
	if ok {
		old.cancel()
	}

	r.log.Info("registered service instance",
		zap.String("key", key),
		zap.Int("methods", len(inst.Methods)),
		zap.Int64("ttl", ttl))
	return nil
}

// Deregister removes the instance and revokes its lease if this process holds it.
func (r *EtcdRegistry) Deregister(ctx context.Context, service, id string) error {
	key := instanceKey(service, id)

	r.mu.Lock()
	l, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()

	if ok {
		l.cancel()
		if _, err := r.client.Revoke(ctx, l.id); err != nil {
			r.log.Warn("revoke lease failed", zap.String("key", key), zap.Error(err))
		}
	}
	if _, err := r.client.Delete(ctx, key); err != nil {
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}

func (r *EtcdRegistry) Discover(ctx context.Context, service string) ([]ServiceInstance, error) {
	return r.get(ctx, serviceKey(service))
}

func (r *EtcdRegistry) List(ctx context.Context) ([]ServiceInstance, error) {
	return r.get(ctx, keyPrefix)
}

func (r *EtcdRegistry) get(ctx context.Context, prefix string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", prefix)
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst ServiceInstance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			r.log.Warn("skipping malformed instance", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch re-reads the service prefix whenever etcd reports a change under it.
func (r *EtcdRegistry) Watch(ctx context.Context, service string) <-chan []ServiceInstance {
	out := make(chan []ServiceInstance, 1)
	prefix := serviceKey(service)

	go func() {
		defer close(out)
		for range r.client.Watch(ctx, prefix, clientv3.WithPrefix()) {
			instances, err := r.Discover(ctx, service)
			if err != nil {
				r.log.Warn("watch refresh failed", zap.String("service", service), zap.Error(err))
				continue
			}
			select {
			case out <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Close stops every keep-alive and closes the etcd client. Leases expire on
// their own afterwards.
func (r *EtcdRegistry) Close() error {
	r.mu.Lock()
	for key, l := range r.leases {
		l.cancel()
		delete(r.leases, key)
	}
	r.mu.Unlock()
	return r.client.Close()
}
