package channel

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mq-rpc/loadbalance"
)

// DialCluster connects to one node of a broker cluster. Nodes are tried in the
// order b picks them and a node that cannot be reached is skipped for the rest
// of the attempt.
func DialCluster(nodes []loadbalance.Node, b loadbalance.Balancer, opts ...Option) (*AMQPConnection, error) {
	log := newOptions(opts).log
	return dialCluster(nodes, b, log, func(url string) (*AMQPConnection, error) {
		return DialAMQP(url, opts...)
	})
}

func dialCluster(nodes []loadbalance.Node, b loadbalance.Balancer, log *zap.Logger,
	dial func(url string) (*AMQPConnection, error)) (*AMQPConnection, error) {
	left := append([]loadbalance.Node(nil), nodes...)
	var errs error
	for len(left) > 0 {
		node, err := b.Pick(left)
		if err != nil {
			return nil, err
		}
		conn, err := dial(node.URL)
		if err == nil {
			log.Info("connected to broker node", zap.String("balancer", b.Name()), zap.String("node", redact(node.URL)))
			return conn, nil
		}
		log.Warn("broker node unreachable", zap.String("node", redact(node.URL)), zap.Error(err))
		errs = multierr.Append(errs, err)
		left = without(left, node.URL)
	}
	if errs == nil {
		return nil, loadbalance.ErrNoNodes
	}
	return nil, errors.Wrap(errs, "no broker node reachable")
}

func without(nodes []loadbalance.Node, url string) []loadbalance.Node {
	out := nodes[:0:0]
	for _, n := range nodes {
		if n.URL != url {
			out = append(out, n)
		}
	}
	return out
}

// redact drops the credentials from an AMQP url before it is logged.
func redact(url string) string {
	uri, err := amqp.ParseURI(url)
	if err != nil {
		return "<invalid url>"
	}
	return fmt.Sprintf("%s://%s:%d/%s", uri.Scheme, uri.Host, uri.Port, strings.TrimPrefix(uri.Vhost, "/"))
}
