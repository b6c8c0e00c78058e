// Package container manages the database container and exposes the
// container runtime to other stages.
package container

import (
	"context"
	"time"
)

// Spec describes a container to create.
type Spec struct {
	Name  string
	Image string
	Env   []string
	// Ports maps container ports to host ports
	Ports map[int]int
	Cmd   []string
	// Binds are host:container volume binds
	Binds []string
}

// Info is a container as reported by a backend.
type Info struct {
	ID      string
	Name    string
	Running bool
}

// Backend is a container runtime endpoint. Containers are always looked up
// by name; no handle is kept across invocations.
type Backend interface {
	// Host identifies the runtime endpoint in messages
	Host() string

	// List returns the containers, running or not, named exactly name
	List(ctx context.Context, name string) ([]Info, error)

	ImageExists(ctx context.Context, ref string) (bool, error)
	PullImage(ctx context.Context, ref string) error

	// BuildImage builds tag from a single Dockerfile with an empty context
	BuildImage(ctx context.Context, tag, dockerfile string) error

	Create(ctx context.Context, spec Spec) (string, error)
	// Start starts a container and returns the time it started as seen by
	// the runtime. A zero time means the runtime did not report it.
	Start(ctx context.Context, id string) (time.Time, error)
	Stop(ctx context.Context, id string) error

	// Remove force-removes a container. Removing a missing container is not
	// an error.
	Remove(ctx context.Context, id string) error

	// Logs returns the combined stdout and stderr written at or after since.
	// A zero since returns the whole log.
	Logs(ctx context.Context, id string, since time.Time) (string, error)

	Close() error
}
