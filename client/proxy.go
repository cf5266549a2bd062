// Package client calls methods of a remote service through a channel.
//
// A Proxy owns a private reply queue. Every request gets a fresh correlation id
// that is entered in the pending table before the request is published; the
// reply handler fills the entry in when the matching response arrives:
//
//	Call(add, v1) ──publish(corr=c1, reply_to=amq.gen-x)──→ calc.add
//	                                                          │
//	pending[c1] ←── onResponse ←── PumpEvents ←── amq.gen-x ←─┘
//
// Replies are only processed inside PumpEvents, which the proxy calls from
// Call, HasResult, AwaitResult and Result. A Proxy is therefore meant for one
// goroutine at a time; use a Pool to share proxies between goroutines.
package client

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mq-rpc/channel"
	"mq-rpc/message"
	"mq-rpc/middleware"
	"mq-rpc/rpcerror"
)

var (
	ErrNotReady           = errors.New("rpc: result not ready")
	ErrUnknownCorrelation = errors.New("rpc: unknown correlation id")
)

// TimeoutMessage is the error message of a synthesized client timeout.
const TimeoutMessage = "Request timed out."

// Proxy is a client of one service.
type Proxy struct {
	ch      channel.Channel
	service string
	replyTo string
	timeout time.Duration
	log     *zap.Logger

	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	// pending maps correlation id to its response; nil while still waiting.
	pending       map[string]*message.Response
	abandoned     *lru.Cache
	abandonedSize int

	ownChannel bool
	closers    []io.Closer
	closed     bool
}

// NewProxy creates a proxy for service on ch, declaring and consuming a
// private reply queue.
func NewProxy(ch channel.Channel, service string, opts ...Option) (*Proxy, error) {
	p := &Proxy{
		ch:            ch,
		service:       service,
		timeout:       DefaultTimeout,
		log:           zap.L(),
		pending:       make(map[string]*message.Response),
		abandonedSize: DefaultAbandonedCacheSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.Named("proxy").With(zap.String("service", service))

	cache, err := lru.New(p.abandonedSize)
	if err != nil {
		return nil, errors.Wrap(err, "create abandoned-id cache")
	}
	p.abandoned = cache
	p.handler = middleware.Chain(p.middlewares...)(p.roundTrip)

	queue, err := ch.DeclareQueue("", true)
	if err != nil {
		return nil, errors.Wrap(err, "declare reply queue")
	}
	if err := ch.Consume(queue, true, p.onResponse); err != nil {
		ch.DeleteQueue(queue)
		return nil, errors.Wrap(err, "consume reply queue")
	}
	p.replyTo = queue
	return p, nil
}

// DialProxy connects to an AMQP broker and returns a proxy that owns the
// connection. Close releases it.
func DialProxy(url, service string, prefetch int, opts ...Option) (*Proxy, error) {
	conn, err := channel.DialAMQP(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel(prefetch)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p, err := NewProxy(ch, service, opts...)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.closers = []io.Closer{ch, conn}
	return p, nil
}

func (p *Proxy) Service() string {
	return p.service
}

// ReplyQueue is the private queue responses are delivered to.
func (p *Proxy) ReplyQueue() string {
	return p.replyTo
}

// Call invokes method at version and waits for the response. A reply that
// does not arrive in time yields a response with rpcerror.CodeClientTimeout
// and a nil error; the error return is reserved for local failures.
func (p *Proxy) Call(ctx context.Context, method, version string, args []any, kwargs map[string]any, opts ...CallOption) (*message.Response, error) {
	co := callOptions{timeout: p.timeout}
	for _, opt := range opts {
		opt(&co)
	}
	req, err := message.NewRequest(version, args, kwargs)
	if err != nil {
		return nil, err
	}
	return p.handler(ctx, &middleware.Call{
		Service: p.service,
		Method:  method,
		Request: req,
		Timeout: co.timeout,
	})
}

// roundTrip is the innermost HandlerFunc: one publish and one wait.
func (p *Proxy) roundTrip(ctx context.Context, call *middleware.Call) (*message.Response, error) {
	id, err := p.publish(ctx, call.Method, call.Request)
	if err != nil {
		return nil, err
	}
	call.CorrelationID = id
	return p.AwaitResult(ctx, id, call.Timeout)
}

// Send publishes a request without waiting and returns its correlation id.
func (p *Proxy) Send(ctx context.Context, method, version string, args []any, kwargs map[string]any) (string, error) {
	req, err := message.NewRequest(version, args, kwargs)
	if err != nil {
		return "", err
	}
	return p.publish(ctx, method, req)
}

func (p *Proxy) publish(ctx context.Context, method string, req *message.Request) (string, error) {
	body, err := req.Marshal()
	if err != nil {
		return "", errors.Wrap(err, "encode request")
	}

	id := uuid.NewString()
	// Register before publishing: the reply may be pumped by the very next call.
	p.pending[id] = nil
	if err := p.ch.Publish(ctx, p.service+"."+method, id, p.replyTo, body); err != nil {
		delete(p.pending, id)
		return "", err
	}
	p.log.Debug("request sent", zap.String("method", method), zap.String("correlation_id", id))
	return id, nil
}

func (p *Proxy) onResponse(_ context.Context, d *channel.Delivery) {
	id := d.CorrelationID
	resp, waiting := p.pending[id]
	switch {
	case !waiting && p.abandoned.Contains(id):
		p.log.Debug("late response", zap.String("correlation_id", id))
		return
	case !waiting:
		p.log.Debug("response for unknown correlation id", zap.String("correlation_id", id))
		return
	case resp != nil:
		p.log.Debug("duplicate response", zap.String("correlation_id", id))
		return
	}

	resp, err := message.UnmarshalResponse(d.Body)
	if err != nil {
		p.log.Warn("malformed response", zap.String("correlation_id", id), zap.Error(err))
		resp = message.NewFailure(err)
	} else if err := message.CheckVersion(resp.ProtocolVersion); err != nil {
		p.log.Warn("response from another protocol version", zap.Error(err))
	}
	p.pending[id] = resp
}

func (p *Proxy) lookup(id string) (*message.Response, error) {
	resp, ok := p.pending[id]
	if !ok {
		return nil, errors.Wrap(ErrUnknownCorrelation, id)
	}
	return resp, nil
}

// HasResult processes the replies that have already arrived and reports
// whether the one for id is among them. It never blocks.
func (p *Proxy) HasResult(id string) (bool, error) {
	if _, err := p.lookup(id); err != nil {
		return false, err
	}
	if err := p.ch.PumpEvents(context.Background()); err != nil {
		return false, err
	}
	resp, err := p.lookup(id)
	return resp != nil, err
}

// Result returns and forgets the response for id, or ErrNotReady if it has
// not arrived yet.
func (p *Proxy) Result(id string) (*message.Response, error) {
	ready, err := p.HasResult(id)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, ErrNotReady
	}
	return p.take(id), nil
}

func (p *Proxy) take(id string) *message.Response {
	resp := p.pending[id]
	delete(p.pending, id)
	return resp
}

// abandon forgets id; a reply that still arrives is dropped.
func (p *Proxy) abandon(id string) {
	delete(p.pending, id)
	p.abandoned.Add(id, struct{}{})
}

// AwaitResult blocks until the response for id arrives, timeout elapses or ctx
// is done. The wait sleeps on the channel's Ready signal. On expiry id is
// abandoned and a CodeClientTimeout response is returned; on ctx cancellation
// id is abandoned and ctx.Err() returned. A timeout of zero waits forever.
func (p *Proxy) AwaitResult(ctx context.Context, id string, timeout time.Duration) (*message.Response, error) {
	if _, err := p.lookup(id); err != nil {
		return nil, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		if err := p.ch.PumpEvents(ctx); err != nil {
			p.abandon(id)
			return nil, err
		}
		if p.pending[id] != nil {
			return p.take(id), nil
		}

		select {
		case <-p.ch.Ready():
		case <-ctx.Done():
			p.abandon(id)
			return nil, ctx.Err()
		case <-expired:
			// One last look: the reply may have raced the timer.
			if err := p.ch.PumpEvents(ctx); err == nil && p.pending[id] != nil {
				return p.take(id), nil
			}
			p.abandon(id)
			p.log.Debug("request timed out", zap.String("correlation_id", id), zap.Duration("timeout", timeout))
			return message.NewErrorResponse(rpcerror.CodeClientTimeout, TimeoutMessage), nil
		}
	}
}

// Close deletes the reply queue, which also cancels its consumer, and
// releases what the proxy owns. Outstanding calls are forgotten. Closing twice
// is a no-op.
func (p *Proxy) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	for id := range p.pending {
		p.abandon(id)
	}
	var first error
	if err := p.ch.DeleteQueue(p.replyTo); err != nil && !errors.Is(err, channel.ErrClosed) {
		first = errors.Wrap(err, "delete reply queue")
	}
	if p.ownChannel {
		if err := p.ch.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, c := range p.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
