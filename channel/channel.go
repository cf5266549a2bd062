// Package channel is the message-queue capability the RPC layer runs on.
//
// A Channel publishes opaque bodies to named destinations and delivers
// consumed messages to handlers. Deliveries are not pushed into handlers from
// broker goroutines; they wait in an inbox until the owner calls PumpEvents,
// so handlers always run on the goroutine that pumps:
//
//	broker ──deliver──→ inbox ──Ready()──→ owner wakes ──PumpEvents──→ handler(d)
//
// Two implementations ship: an in-process MemoryBroker and an AMQP 0-9-1
// adapter. Both publish through the default exchange, so a destination is a
// queue name.
package channel

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrClosed      = errors.New("channel: closed")
	ErrNoQueue     = errors.New("channel: no such queue")
	ErrQueueLocked = errors.New("channel: queue is exclusive to another channel")
)

// Channel is the broker capability shared by proxies and servers.
type Channel interface {
	// Publish sends body to destination. correlationID and replyTo are carried
	// as message properties and may be empty.
	Publish(ctx context.Context, destination, correlationID, replyTo string, body []byte) error

	// DeclareQueue creates queue name if needed and returns its name. An empty
	// name asks the broker to generate one.
	DeclareQueue(name string, exclusive bool) (string, error)

	// Consume registers h for messages arriving on queue. With autoAck the
	// broker forgets a message once delivered; otherwise the handler must Ack.
	Consume(queue string, autoAck bool, h DeliveryHandler) error

	// DeleteQueue cancels every consumer of queue and deletes it, dropping the
	// messages it holds. Deleting an unknown queue is not an error.
	DeleteQueue(queue string) error

	// PumpEvents runs the handlers of every delivery pending right now and
	// returns without waiting for more.
	PumpEvents(ctx context.Context) error

	// Ready is signalled whenever deliveries are waiting to be pumped.
	Ready() <-chan struct{}

	// Run pumps deliveries until ctx is done or the channel is closed.
	Run(ctx context.Context) error

	Close() error
}

// DeliveryHandler processes one delivery on the pumping goroutine.
type DeliveryHandler func(ctx context.Context, d *Delivery)

// Delivery is a consumed message.
type Delivery struct {
	Destination   string
	CorrelationID string
	ReplyTo       string
	Body          []byte

	ack   func() error
	acked bool
}

// NewDelivery builds a delivery with a no-op ack, for feeding handlers directly.
func NewDelivery(destination, correlationID, replyTo string, body []byte) *Delivery {
	return &Delivery{
		Destination:   destination,
		CorrelationID: correlationID,
		ReplyTo:       replyTo,
		Body:          body,
	}
}

// Ack acknowledges the delivery. Acking twice is a no-op.
func (d *Delivery) Ack() error {
	if d.acked {
		return nil
	}
	d.acked = true
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

func (d *Delivery) Acked() bool {
	return d.acked
}
