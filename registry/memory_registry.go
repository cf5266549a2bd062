package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRegistry is an in-process Registry. Leases never expire.
type MemoryRegistry struct {
	mu        sync.Mutex
	instances map[string]ServiceInstance // instance key -> instance
	watchers  map[string][]chan []ServiceInstance
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		instances: make(map[string]ServiceInstance),
		watchers:  make(map[string][]chan []ServiceInstance),
	}
}

func (r *MemoryRegistry) Register(ctx context.Context, inst ServiceInstance, ttl int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[instanceKey(inst.Service, inst.ID)] = inst
	r.notify(inst.Service)
	return nil
}

func (r *MemoryRegistry) Deregister(ctx context.Context, service, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, instanceKey(service, id))
	r.notify(service)
	return nil
}

func (r *MemoryRegistry) Discover(ctx context.Context, service string) ([]ServiceInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(serviceKey(service)), nil
}

func (r *MemoryRegistry) List(ctx context.Context) ([]ServiceInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(keyPrefix), nil
}

func (r *MemoryRegistry) Watch(ctx context.Context, service string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	r.mu.Lock()
	r.watchers[service] = append(r.watchers[service], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		ws := r.watchers[service]
		for i, w := range ws {
			if w == ch {
				r.watchers[service] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

// collect returns the instances under prefix sorted by key. Caller holds mu.
func (r *MemoryRegistry) collect(prefix string) []ServiceInstance {
	keys := make([]string, 0, len(r.instances))
	for key := range r.instances {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := make([]ServiceInstance, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.instances[key])
	}
	return out
}

// notify hands every watcher of service the latest list, replacing a list it
// has not read yet. Caller holds mu.
func (r *MemoryRegistry) notify(service string) {
	if len(r.watchers[service]) == 0 {
		return
	}
	snapshot := r.collect(serviceKey(service))
	for _, ch := range r.watchers[service] {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}
