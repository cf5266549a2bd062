package loadbalance

import (
	"fmt"
	"testing"
)

var testNodes = []Node{
	{URL: "amqp://rabbit-1:5672/", Weight: 10},
	{URL: "amqp://rabbit-2:5672/", Weight: 5},
	{URL: "amqp://rabbit-3:5672/", Weight: 10},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	// Pick 3 times, should cycle through all nodes in order
	for i := 0; i < 3; i++ {
		n, err := b.Pick(testNodes)
		if err != nil {
			t.Fatal(err)
		}
		if n.URL != testNodes[i].URL {
			t.Fatalf("pick %d: expect %s, got %s", i, testNodes[i].URL, n.URL)
		}
	}

	// Pick again, should wrap around to first
	n, _ := b.Pick(testNodes)
	if n.URL != testNodes[0].URL {
		t.Fatalf("expect wrap around to %s, got %s", testNodes[0].URL, n.URL)
	}
}

func TestEmpty(t *testing.T) {
	for _, b := range []Balancer{&RoundRobinBalancer{}, &WeightedRandomBalancer{}, NewConsistentHashBalancer("demo")} {
		if _, err := b.Pick(nil); err != ErrNoNodes {
			t.Fatalf("%s: expect ErrNoNodes, got %v", b.Name(), err)
		}
	}
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		node, err := b.Pick(testNodes)
		if err != nil {
			t.Fatal(err)
		}
		counts[node.URL]++
	}

	// Weight ratio is 10:5:10, so rabbit-1 should be ~2x of rabbit-2
	ratio := float64(counts[testNodes[0].URL]) / float64(counts[testNodes[1].URL])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio rabbit-1/rabbit-2 = %.2f, expect ~2.0", ratio)
	}
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandomBalancer{}
	nodes := []Node{{URL: "a"}, {URL: "b"}}
	for i := 0; i < 100; i++ {
		if _, err := b.Pick(nodes); err != nil {
			t.Fatal(err)
		}
	}
}

func TestConsistentHash(t *testing.T) {
	// Same key should always map to the same node
	b := NewConsistentHashBalancer("billing")
	n1, _ := b.Pick(testNodes)
	n2, _ := b.Pick(testNodes)
	if n1.URL != n2.URL {
		t.Fatalf("same key mapped to different nodes: %s vs %s", n1.URL, n2.URL)
	}

	// Different keys should spread over the nodes
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n, _ := NewConsistentHashBalancer(fmt.Sprintf("service-%d", i)).Pick(testNodes)
		seen[n.URL] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expect at least 2 different nodes, got %d", len(seen))
	}
}

func TestConsistentHashStableWhenOtherNodeLeaves(t *testing.T) {
	// A key keeps its node when a node it does not live on goes away.
	moved := 0
	for i := 0; i < 100; i++ {
		b := NewConsistentHashBalancer(fmt.Sprintf("service-%d", i))
		before, _ := b.Pick(testNodes)
		if before.URL == testNodes[2].URL {
			continue
		}
		after, _ := b.Pick(testNodes[:2])
		if after.URL != before.URL {
			moved++
		}
	}
	if moved != 0 {
		t.Fatalf("expect keys on surviving nodes to stay, %d moved", moved)
	}
}

func TestNew(t *testing.T) {
	cases := map[string]string{
		"":                "RoundRobin",
		"round_robin":     "RoundRobin",
		"weighted_random": "WeightedRandom",
		"consistent_hash": "ConsistentHash",
	}
	for strategy, want := range cases {
		b, err := New(strategy, "demo")
		if err != nil {
			t.Fatal(err)
		}
		if b.Name() != want {
			t.Fatalf("%q: expect %s, got %s", strategy, want, b.Name())
		}
	}
	if _, err := New("fastest", ""); err == nil {
		t.Fatal("expect error for unknown strategy")
	}
}
