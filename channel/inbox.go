package channel

import (
	"context"
	"sync"
)

type inboxEntry struct {
	handler  DeliveryHandler
	delivery *Delivery
}

// inbox queues deliveries between the goroutine that receives them and the
// goroutine that pumps them.
type inbox struct {
	mu      sync.Mutex
	entries []inboxEntry
	ready   chan struct{} // capacity 1: one pending wake-up is enough
}

func newInbox() *inbox {
	return &inbox{ready: make(chan struct{}, 1)}
}

func (b *inbox) push(h DeliveryHandler, d *Delivery) {
	b.mu.Lock()
	b.entries = append(b.entries, inboxEntry{handler: h, delivery: d})
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// pump takes a snapshot of the inbox and runs it without holding the lock, so
// handlers may publish (and receive) more deliveries. Entries left unprocessed
// by a cancelled ctx are put back in front.
func (b *inbox) pump(ctx context.Context) error {
	b.mu.Lock()
	batch := b.entries
	b.entries = nil
	b.mu.Unlock()

	for i, e := range batch {
		if err := ctx.Err(); err != nil {
			b.mu.Lock()
			b.entries = append(batch[i:len(batch):len(batch)], b.entries...)
			b.mu.Unlock()
			return err
		}
		e.handler(ctx, e.delivery)
	}
	return nil
}

func (b *inbox) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// run is the blocking consume loop shared by every implementation.
func (b *inbox) run(ctx context.Context, done <-chan struct{}) error {
	for {
		if err := b.pump(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case <-b.ready:
		}
	}
}
