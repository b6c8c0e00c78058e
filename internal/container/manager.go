package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/testenv/testenv/internal/config"
	"github.com/testenv/testenv/internal/failure"
	"github.com/testenv/testenv/internal/poll"
	"github.com/testenv/testenv/internal/progress"
)

// Profile is what the manager needs to know about the SQL engine.
type Profile interface {
	ContainerPort() int
	ContainerEnv(password string) []string
	ReadySentinel() string
	ReadyOccurrences() int
}

// Prober checks that the database server accepts connections.
type Prober interface {
	Probe(ctx context.Context) error
}

// Handle refers to the acquired database container for the duration of one
// call.
type Handle struct {
	ID   string
	Name string
	// Started is when this invocation started the container. It is zero
	// when the container was already running.
	Started time.Time
	backend Backend
}

// Manager creates, health-checks and destroys the database container.
type Manager struct {
	cfg      config.ContainerConfig
	profile  Profile
	backends []Backend
	prober   Prober
	reporter progress.Reporter
}

// NewManager creates a Manager. The first backend is where containers are
// created; Destroy searches all of them. prober is only used by the probe
// health strategy.
func NewManager(cfg config.ContainerConfig, profile Profile, backends []Backend, prober Prober, reporter progress.Reporter) *Manager {
	if reporter == nil {
		reporter = progress.Discard
	}
	return &Manager{cfg: cfg, profile: profile, backends: backends, prober: prober, reporter: reporter}
}

func (m *Manager) primary() (Backend, error) {
	if len(m.backends) == 0 {
		return nil, errors.New("no container backend configured")
	}
	return m.backends[0], nil
}

// Acquire makes sure the configured container exists and is running. An
// existing container with the same name is reused and started if stopped.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	backend, err := m.primary()
	if err != nil {
		return nil, err
	}

	existing, err := backend.List(ctx, m.cfg.Name)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		found := existing[0]
		if found.Running {
			m.reporter.Info("Container %s is already running", m.cfg.Name)
		} else {
			done := m.reporter.Begin("Starting container %s", m.cfg.Name)
			started, err := backend.Start(ctx, found.ID)
			if err != nil {
				return nil, err
			}
			done()
			return &Handle{ID: found.ID, Name: m.cfg.Name, Started: started, backend: backend}, nil
		}
		return &Handle{ID: found.ID, Name: m.cfg.Name, backend: backend}, nil
	}

	if err := m.ensureImage(ctx, backend); err != nil {
		return nil, err
	}

	done := m.reporter.Begin("Creating container %s", m.cfg.Name)
	id, err := backend.Create(ctx, Spec{
		Name:  m.cfg.Name,
		Image: m.cfg.Image,
		Env:   m.profile.ContainerEnv(m.cfg.Password),
		Ports: map[int]int{m.profile.ContainerPort(): m.cfg.Port},
	})
	if err != nil {
		return nil, err
	}
	started, err := backend.Start(ctx, id)
	if err != nil {
		return nil, err
	}
	done()
	return &Handle{ID: id, Name: m.cfg.Name, Started: started, backend: backend}, nil
}

func (m *Manager) ensureImage(ctx context.Context, backend Backend) error {
	ok, err := backend.ImageExists(ctx, m.cfg.Image)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	done := m.reporter.Begin("Pulling image %s", m.cfg.Image)
	if err := backend.PullImage(ctx, m.cfg.Image); err != nil {
		return err
	}
	done()
	return nil
}

// WaitForHealthy blocks until the database in h is ready or the health
// timeout elapses, which yields failure.ErrHealthCheckTimeout.
func (m *Manager) WaitForHealthy(ctx context.Context, h *Handle) error {
	done := m.reporter.Begin("Waiting for database to start")

	var cond poll.Condition
	switch m.cfg.HealthCheck {
	case config.HealthCheckProbe:
		if m.prober == nil {
			return errors.New("probe health check requires a database prober")
		}
		cond = func(ctx context.Context) (bool, error) {
			if err := m.prober.Probe(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
	default:
		sentinel := m.profile.ReadySentinel()
		want := max(m.profile.ReadyOccurrences(), 1)
		cond = func(ctx context.Context) (bool, error) {
			// Only output since the start counts, so sentinels from an
			// earlier run of a restarted container are ignored.
			logs, err := h.backend.Logs(ctx, h.ID, h.Started)
			if err != nil {
				return false, err
			}
			return strings.Count(logs, sentinel) >= want, nil
		}
	}

	err := poll.Until(ctx, m.cfg.HealthTimeout(), m.cfg.HealthPollInterval(), cond)
	if errors.Is(err, poll.ErrDeadline) {
		return failure.Timeout(failure.ErrHealthCheckTimeout, fmt.Sprintf("container %s (%s)", h.Name, err), m.cfg.HealthTimeout())
	}
	if err != nil {
		return err
	}
	done()
	return nil
}

// Destroy stops and removes every container with the configured name on
// every reachable backend. Finding nothing is not an error. Unreachable
// backends are skipped with a warning.
func (m *Manager) Destroy(ctx context.Context) error {
	done := m.reporter.Begin("Destroying container %s", m.cfg.Name)

	var (
		first     error
		reachable int
	)
	for _, backend := range m.backends {
		found, err := backend.List(ctx, m.cfg.Name)
		if err != nil {
			m.reporter.Warn("skipping %s: %v", backend.Host(), err)
			continue
		}
		reachable++
		for _, c := range found {
			if c.Running {
				if err := backend.Stop(ctx, c.ID); err != nil && first == nil {
					first = err
				}
			}
			if err := backend.Remove(ctx, c.ID); err != nil && first == nil {
				first = err
			}
		}
	}
	if first != nil {
		return first
	}
	if reachable == 0 && len(m.backends) > 0 {
		return fmt.Errorf("no container backend reachable")
	}
	done()
	return nil
}
