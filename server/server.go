// Package server exposes Go functions as versioned RPC methods on a channel.
//
// Every method name gets one queue, "{service}.{method}", shared by all of its
// versions; the request envelope picks the version.
//
//	delivery on "calc.add"
//	  → UnmarshalRequest → middleware chain → lookup("add", method_version)
//	  → Handler.ServeRPC → NewResponse → ack → publish to reply-to
//
// Failures never escape HandleDelivery: each becomes an error response with a
// status code (see rpcerror).
package server

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mq-rpc/channel"
	"mq-rpc/message"
	"mq-rpc/middleware"
	"mq-rpc/registry"
	"mq-rpc/rpcerror"
)

var ErrDuplicateRegistration = errors.New("rpc: duplicate registration")

type endpoint struct {
	handler     Handler
	description string
}

// procedure holds every version registered under one method name.
type procedure struct {
	queue    string
	versions map[string]*endpoint
}

// Server dispatches requests for one service name.
type Server struct {
	ch          channel.Channel
	name        string
	description string
	log         *zap.Logger

	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // middleware(middleware(...(s.invoke)))

	registry   registry.Registry
	ttl        int64
	instanceID string

	mu    sync.RWMutex
	procs map[string]*procedure
}

// NewServer creates a server for service name on ch and registers the
// built-in discovery methods.
func NewServer(ch channel.Channel, name string, opts ...Option) (*Server, error) {
	if name == "" {
		return nil, errors.New("rpc: empty service name")
	}
	s := &Server{
		ch:    ch,
		name:  name,
		log:   zap.L(),
		ttl:   10,
		procs: make(map[string]*procedure),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.instanceID == "" {
		s.instanceID = uuid.NewString()
	}
	s.log = s.log.Named("server").With(zap.String("service", name))
	s.handler = middleware.Chain(s.middlewares...)(s.invoke)

	if err := s.registerBuiltins(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Name() string {
	return s.name
}

func (s *Server) Description() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.description
}

func (s *Server) SetDescription(desc string) {
	s.mu.Lock()
	s.description = desc
	s.mu.Unlock()
}

// InstanceID is the name this server announces itself under.
func (s *Server) InstanceID() string {
	return s.instanceID
}

// Use appends a middleware. Call it before requests arrive.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
	s.handler = middleware.Chain(s.middlewares...)(s.invoke)
}

func (s *Server) queueName(method string) string {
	return s.name + "." + method
}

// Register exposes h as version of method name. The first registration of a
// name declares and consumes its queue.
func (s *Server) Register(name, version string, h Handler, opts ...RegisterOption) error {
	if name == "" {
		return errors.New("rpc: empty method name")
	}
	if h == nil {
		return errors.Errorf("rpc: nil handler for %q", name)
	}
	var o registerOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	proc, ok := s.procs[name]
	if !ok {
		queue, err := s.ch.DeclareQueue(s.queueName(name), false)
		if err != nil {
			return errors.Wrapf(err, "declare queue for %q", name)
		}
		if err := s.ch.Consume(queue, false, s.HandleDelivery); err != nil {
			return errors.Wrapf(err, "consume queue for %q", name)
		}
		proc = &procedure{queue: queue, versions: make(map[string]*endpoint)}
		s.procs[name] = proc
	} else if _, dup := proc.versions[version]; dup {
		return errors.Wrapf(ErrDuplicateRegistration, "attempt to register a duplicate version %q on '%s'", version, name)
	}

	proc.versions[version] = &endpoint{handler: h, description: o.description}
	s.log.Debug("registered method", zap.String("method", name), zap.String("version", version))
	return nil
}

// lookup resolves (name, version); misses are dispatch errors.
func (s *Server) lookup(name, version string) (*endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	proc, ok := s.procs[name]
	if !ok {
		return nil, rpcerror.Newf(rpcerror.CodeDispatch, "Failed to locate handler for routing key '%s'", name)
	}
	ep, ok := proc.versions[version]
	if !ok {
		return nil, rpcerror.Newf(rpcerror.CodeDispatch, "Failed to locate version '%s' for routing key '%s'", version, name)
	}
	return ep, nil
}

// HandleDelivery processes one request and publishes its response to the
// delivery's reply-to, if any. The delivery is always acknowledged.
func (s *Server) HandleDelivery(ctx context.Context, d *channel.Delivery) {
	resp := s.process(ctx, d)

	body, err := resp.Marshal()
	if err != nil {
		resp = message.NewFailure(err)
		body, _ = resp.Marshal()
	}

	if err := d.Ack(); err != nil {
		s.log.Warn("ack failed", zap.String("correlation_id", d.CorrelationID), zap.Error(err))
	}
	if d.ReplyTo == "" {
		s.log.Debug("no reply-to, dropping response", zap.String("destination", d.Destination))
		return
	}
	if err := s.ch.Publish(ctx, d.ReplyTo, d.CorrelationID, "", body); err != nil {
		s.log.Error("publish response failed",
			zap.String("reply_to", d.ReplyTo),
			zap.String("correlation_id", d.CorrelationID),
			zap.Error(err))
	}
}

func (s *Server) process(ctx context.Context, d *channel.Delivery) *message.Response {
	req, err := message.UnmarshalRequest(d.Body)
	if err != nil {
		s.log.Info("rejecting malformed request", zap.String("destination", d.Destination), zap.Error(err))
		return message.NewFailure(err)
	}
	if err := message.CheckVersion(req.ProtocolVersion); err != nil {
		s.log.Warn("request from another protocol version", zap.Error(err))
	}

	call := &middleware.Call{
		Service:       s.name,
		Method:        strings.TrimPrefix(d.Destination, s.queueName("")),
		CorrelationID: d.CorrelationID,
		Request:       req,
	}
	s.log.Debug("dispatching request", zap.String("method", call.Method), zap.Stringer("request", req))

	resp, err := s.serve(ctx, call)
	switch {
	case err != nil:
		if _, coded := rpcerror.CodeOf(err); coded {
			s.log.Info("handler returned coded error", zap.String("method", call.Method), zap.Error(err))
		} else {
			s.log.Warn("unhandled handler error", zap.String("method", call.Method), zap.Error(err))
		}
		return message.NewFailure(err)
	case resp == nil:
		return message.NewErrorResponse(rpcerror.CodeUnhandled, rpcerror.ErrUnhandled.Message())
	}
	return resp
}

// serve runs the middleware chain. A panic anywhere in the chain is reported
// as unhandled instead of escaping HandleDelivery.
func (s *Server) serve(ctx context.Context, call *middleware.Call) (resp *message.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("request panicked",
				zap.String("method", call.Method),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			resp, err = nil, fmt.Errorf("%v", r)
		}
	}()
	return s.handler(ctx, call)
}

// invoke is the innermost HandlerFunc: dispatch and call the handler. A
// panicking handler is reported as unhandled.
func (s *Server) invoke(ctx context.Context, call *middleware.Call) (resp *message.Response, err error) {
	ep, err := s.lookup(call.Method, call.Request.MethodVersion)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panicked",
				zap.String("method", call.Method),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			resp, err = nil, fmt.Errorf("%v", r)
		}
	}()

	value, err := ep.handler.ServeRPC(ctx, &Args{Positional: call.Request.Args, Keyword: call.Request.Kwargs})
	if err != nil {
		return nil, err
	}
	return message.NewResponse(value)
}

// Catalogue lists every registered method, built-ins included, sorted by
// method then version.
func (s *Server) Catalogue() message.Catalogue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := message.Catalogue{Service: s.name, Description: s.description, Methods: []message.MethodDescriptor{}}
	for _, name := range s.methodNames() {
		for _, version := range sortedVersions(s.procs[name]) {
			c.Methods = append(c.Methods, message.MethodDescriptor{
				Method:      name,
				Version:     version,
				Description: s.procs[name].versions[version].description,
			})
		}
	}
	return c
}

// methodNames returns the registered names sorted. Caller holds mu.
func (s *Server) methodNames() []string {
	names := make([]string, 0, len(s.procs))
	for name := range s.procs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedVersions(p *procedure) []string {
	versions := make([]string, 0, len(p.versions))
	for v := range p.versions {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// Run announces the service (when a registry is configured) and serves
// requests until ctx is cancelled, which is a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	if s.registry != nil {
		c := s.Catalogue()
		inst := registry.ServiceInstance{
			ID:              s.instanceID,
			Service:         s.name,
			Description:     c.Description,
			ProtocolVersion: message.ProtocolVersion,
			Methods:         c.Methods,
		}
		if err := s.registry.Register(ctx, inst, s.ttl); err != nil {
			return errors.Wrap(err, "announce service")
		}
		defer func() {
			if err := s.registry.Deregister(context.Background(), s.name, s.instanceID); err != nil {
				s.log.Warn("deregister failed", zap.Error(err))
			}
		}()
	}

	s.log.Info("serving", zap.Int("methods", len(s.Catalogue().Methods)))
	err := s.ch.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
