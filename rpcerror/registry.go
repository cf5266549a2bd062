package rpcerror

import (
	"fmt"
	"sync"
)

// Constructor builds the error reported for a code, given the message that
// came with it.
type Constructor func(message string) error

// Registry maps status codes to error constructors. A proxy or factory is
// handed one explicitly; there is no process-wide table.
type Registry struct {
	mu    sync.RWMutex
	codes map[uint32]Constructor
}

func libraryConstructor(proto *Error) Constructor {
	return func(message string) error {
		if message == "" {
			message = proto.message
		}
		return New(proto.code, message)
	}
}

// NewRegistry returns a registry preloaded with the library codes.
func NewRegistry() *Registry {
	r := &Registry{codes: make(map[uint32]Constructor)}
	for _, proto := range []*Error{
		ErrUnhandled,
		ErrRequest,
		ErrResponse,
		ErrDispatch,
		ErrRateLimited,
		ErrHandlerTimeout,
		ErrClientTimeout,
	} {
		r.codes[proto.code] = libraryConstructor(proto)
	}
	return r
}

// Register adds a service-specific code. Library codes cannot be replaced.
func (r *Registry) Register(code uint32, ctor Constructor) error {
	if IsReserved(code) {
		return fmt.Errorf("rpcerror: code %#x is reserved", code)
	}
	if ctor == nil {
		return fmt.Errorf("rpcerror: nil constructor for code %#x", code)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[code]; ok {
		return fmt.Errorf("rpcerror: code %#x already registered", code)
	}
	r.codes[code] = ctor
	return nil
}

func (r *Registry) Lookup(code uint32) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.codes[code]
	return ctor, ok
}

// Resolve builds the error for a failed response. extended is consulted
// before the registry; an unknown code yields a generic *Error so neither the
// code nor the message is lost. Resolve returns nil for CodeOK.
func (r *Registry) Resolve(code uint32, message string, extended map[uint32]Constructor) error {
	if code == CodeOK {
		return nil
	}
	if ctor, ok := extended[code]; ok && ctor != nil {
		return ctor(message)
	}
	if r != nil {
		if ctor, ok := r.Lookup(code); ok {
			return ctor(message)
		}
	}
	return New(code, message)
}
