package loadbalance

import (
	"math/rand"
)

type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(nodes []Node) (*Node, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}

	// 计算总权重
	totalWeight := 0
	for _, n := range nodes {
		totalWeight += n.weight()
	}

	// 生成一个随机数，范围是0到总权重
	r := rand.Intn(totalWeight)
	for i := range nodes {
		r -= nodes[i].weight()
		if r < 0 {
			return &nodes[i], nil
		}
	}
	return &nodes[len(nodes)-1], nil
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
