package channel

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MemoryBroker is an in-process broker with default-exchange semantics:
// a message published to an undeclared queue is dropped, a queue without
// consumers buffers, and consumers of one queue are served round-robin.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]*memoryQueue
	log    *zap.Logger
}

type memoryQueue struct {
	name      string
	owner     *MemoryChannel // non-nil for exclusive queues
	buffered  []*Delivery
	consumers []*memoryConsumer
	next      int
}

type memoryConsumer struct {
	ch      *MemoryChannel
	autoAck bool
	handler DeliveryHandler
}

func NewMemoryBroker(opts ...Option) *MemoryBroker {
	o := newOptions(opts)
	return &MemoryBroker{
		queues: make(map[string]*memoryQueue),
		log:    o.log.With(zap.String("broker", "memory")),
	}
}

// Channel opens a new channel on the broker.
func (b *MemoryBroker) Channel() *MemoryChannel {
	return &MemoryChannel{
		broker: b,
		inbox:  newInbox(),
		done:   make(chan struct{}),
	}
}

// QueueDepth reports how many messages wait in queue for a consumer.
func (b *MemoryBroker) QueueDepth(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[queue]; ok {
		return len(q.buffered)
	}
	return 0
}

func (b *MemoryBroker) route(d *Delivery) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[d.Destination]
	if !ok {
		b.log.Debug("dropping unroutable message",
			zap.String("destination", d.Destination),
			zap.String("correlation_id", d.CorrelationID))
		return
	}
	if len(q.consumers) == 0 {
		q.buffered = append(q.buffered, d)
		return
	}
	c := q.consumers[q.next%len(q.consumers)]
	q.next++
	c.deliver(d)
}

func (c *memoryConsumer) deliver(d *Delivery) {
	if !c.autoAck {
		d.ack = func() error { return nil }
	} else {
		d.acked = true
	}
	c.ch.inbox.push(c.handler, d)
}

// MemoryChannel is a Channel on a MemoryBroker.
type MemoryChannel struct {
	broker *MemoryBroker
	inbox  *inbox

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
	done      chan struct{}
}

var _ Channel = (*MemoryChannel)(nil)

func (c *MemoryChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MemoryChannel) Publish(ctx context.Context, destination, correlationID, replyTo string, body []byte) error {
	if c.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.broker.route(&Delivery{
		Destination:   destination,
		CorrelationID: correlationID,
		ReplyTo:       replyTo,
		Body:          append([]byte(nil), body...),
	})
	return nil
}

func (c *MemoryChannel) DeclareQueue(name string, exclusive bool) (string, error) {
	if c.isClosed() {
		return "", ErrClosed
	}
	if name == "" {
		name = "amq.gen-" + uuid.NewString()
	}

	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	if q, ok := b.queues[name]; ok {
		if q.owner != nil && q.owner != c {
			return "", errors.Wrapf(ErrQueueLocked, "declare %q", name)
		}
		return name, nil
	}
	q := &memoryQueue{name: name}
	if exclusive {
		q.owner = c
	}
	b.queues[name] = q
	return name, nil
}

func (c *MemoryChannel) Consume(queue string, autoAck bool, h DeliveryHandler) error {
	if c.isClosed() {
		return ErrClosed
	}

	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[queue]
	if !ok {
		return errors.Wrapf(ErrNoQueue, "consume %q", queue)
	}
	if q.owner != nil && q.owner != c {
		return errors.Wrapf(ErrQueueLocked, "consume %q", queue)
	}
	consumer := &memoryConsumer{ch: c, autoAck: autoAck, handler: h}
	q.consumers = append(q.consumers, consumer)

	buffered := q.buffered
	q.buffered = nil
	for _, d := range buffered {
		consumer.deliver(d)
	}
	return nil
}

func (c *MemoryChannel) DeleteQueue(queue string) error {
	if c.isClosed() {
		return ErrClosed
	}

	b := c.broker
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[queue]
	if !ok {
		return nil
	}
	if q.owner != nil && q.owner != c {
		return errors.Wrapf(ErrQueueLocked, "delete %q", queue)
	}
	delete(b.queues, queue)
	return nil
}

// Queues lists the declared queues, sorted.
func (b *MemoryBroker) Queues() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.queues))
	for name := range b.queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *MemoryChannel) PumpEvents(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.inbox.pump(ctx)
}

func (c *MemoryChannel) Ready() <-chan struct{} {
	return c.inbox.ready
}

// Pending reports how many deliveries wait to be pumped.
func (c *MemoryChannel) Pending() int {
	return c.inbox.pending()
}

func (c *MemoryChannel) Run(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.inbox.run(ctx, c.done)
}

// Close cancels this channel's consumers and deletes the exclusive queues it
// owns. Deliveries not yet pumped are discarded.
func (c *MemoryChannel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)

		b := c.broker
		b.mu.Lock()
		defer b.mu.Unlock()
		for name, q := range b.queues {
			if q.owner == c {
				delete(b.queues, name)
				continue
			}
			kept := q.consumers[:0]
			for _, consumer := range q.consumers {
				if consumer.ch != c {
					kept = append(kept, consumer)
				}
			}
			q.consumers = kept
		}
	})
	return nil
}
