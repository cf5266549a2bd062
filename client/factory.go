package client

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"mq-rpc/channel"
	"mq-rpc/message"
	"mq-rpc/rpcerror"
)

var ErrNoSuchMethod = errors.New("rpc: no such method")

type buildOptions struct {
	exceptions bool
	extended   map[uint32]rpcerror.Constructor
	codes      *rpcerror.Registry
}

type BuildOption func(*buildOptions)

// WithExceptions makes method calls return the error resolved from a failed
// response alongside the response itself.
func WithExceptions() BuildOption {
	return func(o *buildOptions) {
		o.exceptions = true
	}
}

// WithExtendedCodes adds service-specific constructors consulted before the
// code registry. It implies WithExceptions.
func WithExtendedCodes(codes map[uint32]rpcerror.Constructor) BuildOption {
	return func(o *buildOptions) {
		o.exceptions = true
		o.extended = codes
	}
}

// WithCodes sets the registry failed responses are resolved against.
func WithCodes(codes *rpcerror.Registry) BuildOption {
	return func(o *buildOptions) {
		o.codes = codes
	}
}

// Factory builds service proxies on a shared channel.
type Factory struct {
	ch   channel.Channel
	opts []Option
}

func NewFactory(ch channel.Channel, opts ...Option) *Factory {
	return &Factory{ch: ch, opts: opts}
}

// Build creates a proxy for service and discovers its methods at version.
// The returned ServiceProxy owns the proxy; Close it when done.
func (f *Factory) Build(ctx context.Context, service, version string, opts ...BuildOption) (*ServiceProxy, error) {
	p, err := NewProxy(f.ch, service, f.opts...)
	if err != nil {
		return nil, err
	}
	sp, err := Build(ctx, p, version, opts...)
	if err != nil {
		p.Close()
		return nil, err
	}
	return sp, nil
}

// Build asks the service behind p for its catalogue and keeps the methods
// registered at version.
func Build(ctx context.Context, p *Proxy, version string, opts ...BuildOption) (*ServiceProxy, error) {
	o := buildOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.codes == nil {
		o.codes = rpcerror.NewRegistry()
	}

	resp, err := p.Call(ctx, message.InspectMethod, message.BuiltinVersion, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "inspect "+p.Service())
	}
	if err := resp.Err(o.codes, o.extended); err != nil {
		return nil, err
	}
	var catalogue message.Catalogue
	if err := resp.Decode(&catalogue); err != nil {
		return nil, rpcerror.Wrap(rpcerror.CodeResponse, err, "Unable to decode catalogue: "+err.Error())
	}

	service := catalogue.Service
	if service == "" {
		service = "Auto"
	}
	sp := &ServiceProxy{
		proxy:       p,
		name:        service,
		description: catalogue.Description,
		version:     version,
		methods:     make(map[string]*Method),
	}
	for _, d := range catalogue.Versions(version) {
		sp.methods[d.Method] = &Method{
			proxy:       p,
			name:        d.Method,
			version:     d.Version,
			description: d.Description,
			opts:        o,
		}
	}
	return sp, nil
}

// ServiceProxy exposes the methods a service offers at one version.
type ServiceProxy struct {
	proxy       *Proxy
	name        string
	description string
	version     string
	methods     map[string]*Method
}

// Close closes the underlying proxy and its reply queue.
func (sp *ServiceProxy) Close() error {
	return sp.proxy.Close()
}

func (sp *ServiceProxy) Name() string {
	return sp.name
}

// TypeName is the name a generated wrapper type for this service gets.
func (sp *ServiceProxy) TypeName() string {
	return sp.name + "Proxy"
}

func (sp *ServiceProxy) Description() string {
	return sp.description
}

func (sp *ServiceProxy) Version() string {
	return sp.version
}

// Proxy is the underlying correlation engine.
func (sp *ServiceProxy) Proxy() *Proxy {
	return sp.proxy
}

// Methods returns the discovered methods sorted by name.
func (sp *ServiceProxy) Methods() []*Method {
	out := make([]*Method, 0, len(sp.methods))
	for _, m := range sp.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (sp *ServiceProxy) Method(name string) (*Method, error) {
	m, ok := sp.methods[name]
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchMethod, "%s has no method %q at version %q", sp.name, name, sp.version)
	}
	return m, nil
}

// Invoke calls method name; see Method.Invoke.
func (sp *ServiceProxy) Invoke(ctx context.Context, name string, args []any, kwargs map[string]any) (*message.Response, error) {
	m, err := sp.Method(name)
	if err != nil {
		return nil, err
	}
	return m.Invoke(ctx, args, kwargs)
}

// Method is one discovered remote method bound to its version.
type Method struct {
	proxy       *Proxy
	name        string
	version     string
	description string
	opts        buildOptions
}

func (m *Method) Name() string        { return m.name }
func (m *Method) Version() string     { return m.version }
func (m *Method) Description() string { return m.description }

// Invoke performs a blocking call. Without exceptions the response is returned
// as is; with exceptions a failed response also yields its resolved error.
func (m *Method) Invoke(ctx context.Context, args []any, kwargs map[string]any, opts ...CallOption) (*message.Response, error) {
	resp, err := m.proxy.Call(ctx, m.name, m.version, args, kwargs, opts...)
	if err != nil {
		return nil, err
	}
	if m.opts.exceptions {
		return resp, resp.Err(m.opts.codes, m.opts.extended)
	}
	return resp, nil
}

// Call invokes the method with positional args and decodes the return value
// into out, which may be nil. A failed response is returned as its resolved
// error.
func (m *Method) Call(ctx context.Context, out any, args ...any) error {
	resp, err := m.proxy.Call(ctx, m.name, m.version, args, nil)
	if err != nil {
		return err
	}
	if err := resp.Err(m.opts.codes, m.opts.extended); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}
