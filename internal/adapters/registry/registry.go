// Package registry provides the in-process job type registry: it maps job
// type names to builder functions and holds the default-proxy-user table
// consulted during effective-identity resolution.
package registry

import (
	"log/slog"
	"sync"

	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/ports"
)

// Builder constructs the executable capability for one node.
type Builder func(jobType string, props *domain.Props, logger ports.JobLogger) (ports.Job, error)

type Manager struct {
	mu sync.RWMutex

	builders map[string]Builder

	// Default proxy users only apply to job types explicitly opted in.
	proxyDefaultsEnabled map[string]bool
	defaultProxyUsers    map[string]string

	logger *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		builders:             make(map[string]Builder),
		proxyDefaultsEnabled: make(map[string]bool),
		defaultProxyUsers:    make(map[string]string),
		logger:               logger.With("component", "jobtype-registry"),
	}
}

func (m *Manager) Register(jobType string, builder Builder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builders[jobType] = builder
}

// EnableProxyDefaults opts a job type into default-proxy-user resolution.
// Without the opt-in, a registered default user for the type is ignored.
func (m *Manager) EnableProxyDefaults(jobType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proxyDefaultsEnabled[jobType] = true
}

func (m *Manager) AddDefaultProxyUser(jobType, user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultProxyUsers[jobType] = user
}

func (m *Manager) BuildJob(jobType string, props *domain.Props, logger ports.JobLogger) (ports.Job, error) {
	m.mu.RLock()
	builder, ok := m.builders[jobType]
	m.mu.RUnlock()

	if !ok {
		m.logger.Error("job type not registered", "job_type", jobType)
		return nil, domain.ErrJobTypeUnknown
	}

	return builder(jobType, props, logger)
}

func (m *Manager) DefaultProxyUser(jobType string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.proxyDefaultsEnabled[jobType] {
		return "", false
	}
	user, ok := m.defaultProxyUsers[jobType]
	return user, ok
}
