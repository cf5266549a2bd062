package loadbalance

import (
	"hash/crc32"
	"sort"
	"strconv"
)

const defaultReplicas = 100

// ConsistentHashBalancer maps a fixed key (normally the service name) onto a
// hash ring of nodes. The same key picks the same node as long as the node
// list does not change, and losing one node only moves the keys it owned.
//
// Virtual nodes: each real node is placed on the ring replicas times so that a
// handful of nodes still split the key space evenly.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	              ╱       ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	              ╲       ╱
//	                ╲   ╱
type ConsistentHashBalancer struct {
	key      string
	replicas int
}

func NewConsistentHashBalancer(key string) *ConsistentHashBalancer {
	return &ConsistentHashBalancer{key: key, replicas: defaultReplicas}
}

// Pick hashes the balancer's key onto a ring built from nodes.
func (b *ConsistentHashBalancer) Pick(nodes []Node) (*Node, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	return &nodes[newRing(nodes, b.replicas).lookup(b.key)], nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}

type ring struct {
	hashes []uint32       // sorted
	owner  map[uint32]int // hash -> index into the node list
}

func newRing(nodes []Node, replicas int) *ring {
	r := &ring{owner: make(map[uint32]int, len(nodes)*replicas)}
	for i, n := range nodes {
		for v := 0; v < replicas; v++ {
			h := crc32.ChecksumIEEE([]byte(n.URL + "#" + strconv.Itoa(v)))
			if _, taken := r.owner[h]; taken {
				continue
			}
			r.hashes = append(r.hashes, h)
			r.owner[h] = i
		}
	}
	sort.Slice(r.hashes, func(i, j int) bool { return r.hashes[i] < r.hashes[j] })
	return r
}

// lookup returns the index of the first node clockwise from key's hash,
// wrapping around past the largest hash.
func (r *ring) lookup(key string) int {
	h := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(r.hashes), func(i int) bool {
		return r.hashes[i] >= h
	})
	if idx == len(r.hashes) {
		idx = 0
	}
	return r.owner[r.hashes[idx]]
}
