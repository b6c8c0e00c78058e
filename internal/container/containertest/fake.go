// Package containertest provides an in-memory container backend for tests.
package containertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/testenv/testenv/internal/container"
)

// Container is a container held by a Fake backend.
type Container struct {
	ID      string
	Spec    container.Spec
	Running bool
	Removed bool
	// Previous is log output written before the container was last started
	Previous  string
	StartedAt time.Time
	polls     int
}

// Fake is an in-memory container.Backend. It is safe for concurrent use.
type Fake struct {
	mu         sync.Mutex
	host       string
	containers []*Container
	images     map[string]bool
	nextID     int

	// LogOutput returns the log of c after its logs were read polls times.
	// Nil means empty logs.
	LogOutput func(c *Container, polls int) string

	// Errors makes the named operation fail: list, create, start, stop,
	// remove, logs, pull, build.
	Errors map[string]error

	Calls  []string
	Pulled []string
	Built  map[string]string
}

// New creates an empty Fake reporting host.
func New(host string) *Fake {
	return &Fake{host: host, images: map[string]bool{}, Built: map[string]string{}}
}

// AddImage marks ref as present locally.
func (f *Fake) AddImage(ref string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[ref] = true
}

// AddContainer registers a pre-existing container.
func (f *Fake) AddContainer(name string, running bool) *Container {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.newContainer(container.Spec{Name: name})
	c.Running = running
	return c
}

// Live returns the containers that have not been removed.
func (f *Fake) Live() []*Container {
	f.mu.Lock()
	defer f.mu.Unlock()
	var live []*Container
	for _, c := range f.containers {
		if !c.Removed {
			live = append(live, c)
		}
	}
	return live
}

// CallLog returns a copy of the recorded calls.
func (f *Fake) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

func (f *Fake) newContainer(spec container.Spec) *Container {
	f.nextID++
	c := &Container{ID: fmt.Sprintf("c%03d", f.nextID), Spec: spec}
	f.containers = append(f.containers, c)
	return c
}

func (f *Fake) record(op string, arg string) error {
	f.Calls = append(f.Calls, op+" "+arg)
	return f.Errors[op]
}

func (f *Fake) find(id string) (*Container, error) {
	for _, c := range f.containers {
		if c.ID == id && !c.Removed {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no such container: %s", id)
}

func (f *Fake) Host() string { return f.host }

func (f *Fake) Close() error { return nil }

func (f *Fake) List(_ context.Context, name string) ([]container.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("list", name); err != nil {
		return nil, err
	}
	var found []container.Info
	for _, c := range f.containers {
		if !c.Removed && c.Spec.Name == name {
			found = append(found, container.Info{ID: c.ID, Name: name, Running: c.Running})
		}
	}
	return found, nil
}

func (f *Fake) ImageExists(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[ref], nil
}

func (f *Fake) PullImage(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("pull", ref); err != nil {
		return err
	}
	f.Pulled = append(f.Pulled, ref)
	f.images[ref] = true
	return nil
}

func (f *Fake) BuildImage(_ context.Context, tag, dockerfile string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("build", tag); err != nil {
		return err
	}
	f.Built[tag] = dockerfile
	f.images[tag] = true
	return nil
}

func (f *Fake) Create(_ context.Context, spec container.Spec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("create", spec.Name); err != nil {
		return "", err
	}
	for _, c := range f.containers {
		if !c.Removed && c.Spec.Name == spec.Name {
			return "", fmt.Errorf("container name %s already in use", spec.Name)
		}
	}
	return f.newContainer(spec).ID, nil
}

func (f *Fake) Start(_ context.Context, id string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("start", id); err != nil {
		return time.Time{}, err
	}
	c, err := f.find(id)
	if err != nil {
		return time.Time{}, err
	}
	c.Running = true
	c.StartedAt = time.Now()
	return c.StartedAt, nil
}

func (f *Fake) Stop(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("stop", id); err != nil {
		return err
	}
	if c, err := f.find(id); err == nil {
		c.Running = false
	}
	return nil
}

func (f *Fake) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("remove", id); err != nil {
		return err
	}
	if c, err := f.find(id); err == nil {
		c.Running = false
		c.Removed = true
	}
	return nil
}

// Logs returns Previous followed by LogOutput, leaving out Previous when
// since is at or after the last start.
func (f *Fake) Logs(_ context.Context, id string, since time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.Errors["logs"]; ok {
		return "", err
	}
	c, err := f.find(id)
	if err != nil {
		return "", err
	}
	c.polls++
	var logs string
	if since.IsZero() || since.Before(c.StartedAt) {
		logs = c.Previous
	}
	if f.LogOutput != nil {
		logs += f.LogOutput(c, c.polls)
	}
	return logs, nil
}

var _ container.Backend = (*Fake)(nil)
