package server

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"mq-rpc/codec"
)

// Args are the arguments of one request, still encoded.
type Args struct {
	Positional []json.RawMessage
	Keyword    map[string]json.RawMessage
}

// Decode unmarshals positional argument i into v.
func (a *Args) Decode(i int, v any) error {
	if i < 0 || i >= len(a.Positional) {
		return fmt.Errorf("missing positional argument %d", i)
	}
	return codec.Default.Decode(a.Positional[i], v)
}

// DecodeKeyword unmarshals keyword argument name into v and reports whether it
// was given.
func (a *Args) DecodeKeyword(name string, v any) (bool, error) {
	raw, ok := a.Keyword[name]
	if !ok {
		return false, nil
	}
	return true, codec.Default.Decode(raw, v)
}

// Handler serves one registered (method, version). The returned value becomes
// the response's return value. An error implementing rpcerror.Coder is sent
// with its own status code; any other error is reported as unhandled.
type Handler interface {
	ServeRPC(ctx context.Context, args *Args) (any, error)
}

type HandlerFunc func(ctx context.Context, args *Args) (any, error)

func (f HandlerFunc) ServeRPC(ctx context.Context, args *Args) (any, error) {
	return f(ctx, args)
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// funcHandler calls an ordinary Go function with decoded arguments.
type funcHandler struct {
	fn       reflect.Value
	name     string
	withCtx  bool
	params   []reflect.Type // excluding the context
	index    map[string]int // keyword name -> parameter index
	hasValue bool
	hasError bool
}

// Func adapts fn to a Handler. fn may take a leading context.Context; its other
// parameters are filled from positional arguments in order, then from keyword
// arguments matched against paramNames (the names of the leading parameters).
// Parameters nobody supplied get their zero value. fn must return (), (T),
// (error) or (T, error) and must not be variadic.
func Func(fn any, paramNames ...string) (Handler, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("rpc: handler must be a function, got %T", fn)
	}
	typ := v.Type()
	if typ.IsVariadic() {
		return nil, fmt.Errorf("rpc: variadic handler %s is not supported", typ)
	}

	h := &funcHandler{fn: v, name: typ.String(), index: make(map[string]int)}
	start := 0
	if typ.NumIn() > 0 && typ.In(0) == contextType {
		h.withCtx = true
		start = 1
	}
	for i := start; i < typ.NumIn(); i++ {
		h.params = append(h.params, typ.In(i))
	}

	if len(paramNames) > len(h.params) {
		return nil, fmt.Errorf("rpc: %d parameter names given for %d parameters", len(paramNames), len(h.params))
	}
	for i, name := range paramNames {
		if name == "" {
			return nil, fmt.Errorf("rpc: parameter %d has an empty name", i)
		}
		if _, dup := h.index[name]; dup {
			return nil, fmt.Errorf("rpc: duplicate parameter name %q", name)
		}
		h.index[name] = i
	}

	switch typ.NumOut() {
	case 0:
	case 1:
		if typ.Out(0) == errorType {
			h.hasError = true
		} else {
			h.hasValue = true
		}
	case 2:
		if typ.Out(1) != errorType {
			return nil, fmt.Errorf("rpc: second result of %s must be error", typ)
		}
		h.hasValue, h.hasError = true, true
	default:
		return nil, fmt.Errorf("rpc: %s returns too many values", typ)
	}
	return h, nil
}

// MustFunc is like Func but panics on an unusable function.
func MustFunc(fn any, paramNames ...string) Handler {
	h, err := Func(fn, paramNames...)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *funcHandler) ServeRPC(ctx context.Context, args *Args) (any, error) {
	if len(args.Positional) > len(h.params) {
		return nil, fmt.Errorf("%s takes %d positional arguments but %d were given",
			h.name, len(h.params), len(args.Positional))
	}

	in := make([]reflect.Value, len(h.params))
	for i, raw := range args.Positional {
		v, err := h.decode(i, raw)
		if err != nil {
			return nil, fmt.Errorf("positional argument %d: %v", i, err)
		}
		in[i] = v
	}
	for name, raw := range args.Keyword {
		i, ok := h.index[name]
		if !ok {
			return nil, fmt.Errorf("%s got an unexpected keyword argument %q", h.name, name)
		}
		if in[i].IsValid() {
			return nil, fmt.Errorf("%s got multiple values for argument %q", h.name, name)
		}
		v, err := h.decode(i, raw)
		if err != nil {
			return nil, fmt.Errorf("keyword argument %q: %v", name, err)
		}
		in[i] = v
	}
	for i, v := range in {
		if !v.IsValid() {
			in[i] = reflect.Zero(h.params[i])
		}
	}
	if h.withCtx {
		in = append([]reflect.Value{reflect.ValueOf(ctx)}, in...)
	}

	out := h.fn.Call(in)

	var (
		value any
		err   error
	)
	if h.hasValue {
		value = out[0].Interface()
	}
	if h.hasError {
		if e := out[len(out)-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
	}
	return value, err
}

func (h *funcHandler) decode(i int, raw json.RawMessage) (reflect.Value, error) {
	ptr := reflect.New(h.params[i])
	if err := codec.Default.Decode(raw, ptr.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return ptr.Elem(), nil
}
