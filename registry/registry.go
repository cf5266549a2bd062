// Package registry announces running services and their method catalogues so
// that clients and operators can find them without calling _inspect on every
// queue.
//
// Announcement is advisory: requests are still routed by the broker, never by
// the registry.
package registry

import (
	"context"

	"mq-rpc/message"
)

// ServiceInstance is one running server of a service.
type ServiceInstance struct {
	ID              string                     `json:"id"`
	Service         string                     `json:"service"`
	Description     string                     `json:"description,omitempty"`
	ProtocolVersion string                     `json:"protocol_version"`
	Methods         []message.MethodDescriptor `json:"methods"`
}

type Registry interface {
	// Register announces inst for ttl seconds and keeps renewing it until
	// Deregister is called or the process dies.
	Register(ctx context.Context, inst ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, service, id string) error
	Discover(ctx context.Context, service string) ([]ServiceInstance, error)
	// List returns the instances of every service.
	List(ctx context.Context) ([]ServiceInstance, error)
	// Watch emits the full instance list of service after every change. The
	// channel is closed when ctx is done.
	Watch(ctx context.Context, service string) <-chan []ServiceInstance
}

const keyPrefix = "/mq-rpc/"

func serviceKey(service string) string {
	return keyPrefix + service + "/"
}

func instanceKey(service, id string) string {
	return serviceKey(service) + id
}
