// Package loadbalance picks the broker node a connection is opened to when the
// broker runs as a cluster.
//
// Requests are routed by the broker itself, so balancing only happens once,
// at dial time. Three strategies are implemented:
//   - RoundRobin:      spread connections evenly over equal nodes
//   - WeightedRandom:  nodes of different capacity
//   - ConsistentHash:  every process of one service lands on the same node,
//     next to the queues it declares
package loadbalance

import (
	"github.com/pkg/errors"
)

var ErrNoNodes = errors.New("loadbalance: no nodes available")

// Node is one broker endpoint.
type Node struct {
	URL    string `mapstructure:"url" json:"url"`
	Weight int    `mapstructure:"weight" json:"weight,omitempty"` // <= 0 counts as 1
}

func (n Node) weight() int {
	if n.Weight <= 0 {
		return 1
	}
	return n.Weight
}

// Balancer is the interface for load balancing strategies.
// The dialer calls Pick() before each connection attempt.
type Balancer interface {
	// Pick selects one node from the available list.
	// Must be goroutine-safe.
	Pick(nodes []Node) (*Node, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// New returns the balancer for strategy. key is only used by consistent_hash.
func New(strategy, key string) (Balancer, error) {
	switch strategy {
	case "", "round_robin":
		return &RoundRobinBalancer{}, nil
	case "weighted_random":
		return &WeightedRandomBalancer{}, nil
	case "consistent_hash":
		return NewConsistentHashBalancer(key), nil
	default:
		return nil, errors.Errorf("loadbalance: unknown strategy %q", strategy)
	}
}
