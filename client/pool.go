package client

// Pool hands out proxies for exclusive use, one goroutine at a time.
//
// Pool design: a buffered channel of idle proxies is the FIFO, and a second
// buffered channel of capacity max is a semaphore counting live proxies.
// Proxies are created lazily, so the pool starts empty and grows on demand.

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var ErrPoolClosed = errors.New("rpc: proxy pool closed")

// Dialer creates a proxy for the pool, normally on a channel of its own.
type Dialer func(ctx context.Context) (*Proxy, error)

type Pool struct {
	mu     sync.Mutex
	idle   chan *PooledProxy
	slots  chan struct{}
	done   chan struct{}
	closed bool
	dial   Dialer
}

// PooledProxy wraps a Proxy with pool metadata.
type PooledProxy struct {
	*Proxy
	pool     *Pool
	unusable bool // set when the proxy's channel failed
}

// MarkUnusable makes Put close the proxy instead of reusing it.
func (pp *PooledProxy) MarkUnusable() {
	pp.unusable = true
}

// Release returns the proxy to its pool.
func (pp *PooledProxy) Release() {
	pp.pool.Put(pp)
}

func NewPool(maxProxies int, dial Dialer) *Pool {
	if maxProxies < 1 {
		maxProxies = 1
	}
	return &Pool{
		idle:  make(chan *PooledProxy, maxProxies),
		slots: make(chan struct{}, maxProxies),
		done:  make(chan struct{}),
		dial:  dial,
	}
}

// Get retrieves a proxy.
// Strategy:
//  1. Reuse an idle proxy if there is one
//  2. Otherwise create one if the pool is under its limit
//  3. Otherwise block until a proxy is returned, ctx is done or the pool closes
func (p *Pool) Get(ctx context.Context) (*PooledProxy, error) {
	select {
	case <-p.done:
		return nil, ErrPoolClosed
	case pp := <-p.idle:
		return pp, nil
	default:
	}

	select {
	case pp := <-p.idle:
		return pp, nil
	case p.slots <- struct{}{}:
		return p.createNew(ctx)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrPoolClosed
	}
}

// createNew dials into a slot the caller already holds. The slot is given
// back if the pool closes before or during the dial.
func (p *Pool) createNew(ctx context.Context) (*PooledProxy, error) {
	if p.isClosed() {
		<-p.slots
		return nil, ErrPoolClosed
	}
	proxy, err := p.dial(ctx)
	if err != nil {
		<-p.slots
		return nil, errors.Wrap(err, "dial proxy")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		proxy.Close()
		<-p.slots
		return nil, ErrPoolClosed
	}
	return &PooledProxy{Proxy: proxy, pool: p}, nil
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Put returns a proxy to the pool. Unusable proxies, and any proxy returned
// after Close, are closed and their slot freed.
func (p *Pool) Put(pp *PooledProxy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pp.unusable || p.closed {
		pp.Proxy.Close()
		<-p.slots
		return
	}
	p.idle <- pp
}

// Close shuts the pool down and closes every idle proxy. Proxies still in use
// are closed when they are put back.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	var first error
	for {
		select {
		case pp := <-p.idle:
			if err := pp.Proxy.Close(); err != nil && first == nil {
				first = err
			}
			<-p.slots
		default:
			return first
		}
	}
}
