package loadbalance

import (
	"sync/atomic"
)

// RoundRobinBalancer hands out the nodes in order.
// Uses an atomic counter for lock-free, goroutine-safe operation.
type RoundRobinBalancer struct {
	counter uint64 // Atomic counter, incremented on each Pick()
}

func (b *RoundRobinBalancer) Pick(nodes []Node) (*Node, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	index := (atomic.AddUint64(&b.counter, 1) - 1) % uint64(len(nodes))
	return &nodes[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
