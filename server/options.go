package server

import (
	"go.uber.org/zap"

	"mq-rpc/middleware"
	"mq-rpc/registry"
)

type Option func(*Server)

// WithDescription sets the service description reported by _help and _inspect.
func WithDescription(desc string) Option {
	return func(s *Server) {
		s.description = desc
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithMiddleware appends middlewares around every handler, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, mws...)
	}
}

// WithRegistry announces the catalogue to reg while Run is active. ttl is the
// lease in seconds.
func WithRegistry(reg registry.Registry, ttl int64) Option {
	return func(s *Server) {
		s.registry = reg
		s.ttl = ttl
	}
}

// WithInstanceID names this server in the registry. Defaults to a random UUID.
func WithInstanceID(id string) Option {
	return func(s *Server) {
		s.instanceID = id
	}
}

type registerOptions struct {
	description string
}

type RegisterOption func(*registerOptions)

// WithMethodDescription documents a method for _help and _inspect.
func WithMethodDescription(desc string) RegisterOption {
	return func(o *registerOptions) {
		o.description = desc
	}
}
