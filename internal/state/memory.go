package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

// MemoryStore tracks apps and deployments safely across goroutines. The
// image in the local daemon is the only persisted artifact, so the table
// lives in memory and is rebuilt from the runtime on startup.
type MemoryStore struct {
	mu   sync.RWMutex
	apps map[string]*entry
}

type entry struct {
	app           domain.App
	dep           domain.Deployment
	stopRequested bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{apps: make(map[string]*entry)}
}

// Register adds a new app in the NotBuilt phase.
func (s *MemoryStore) Register(app domain.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apps[app.Name]; exists {
		return fmt.Errorf("%w: %s", domain.ErrAppExists, app.Name)
	}
	s.apps[app.Name] = &entry{
		app: app,
		dep: domain.Deployment{
			App:       app.Name,
			Phase:     domain.PhaseNotBuilt,
			UpdatedAt: time.Now(),
		},
	}
	return nil
}

// GetApp returns the app record by name.
func (s *MemoryStore) GetApp(name string) (domain.App, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.apps[name]
	if !ok {
		return domain.App{}, false
	}
	return e.app, true
}

// Apps returns all registered apps.
func (s *MemoryStore) Apps() []domain.App {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.App, 0, len(s.apps))
	for _, e := range s.apps {
		out = append(out, e.app)
	}
	return out
}

// Forget drops an app and its deployment record.
func (s *MemoryStore) Forget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.apps, name)
}

// Deployment returns the deployment record for an app.
func (s *MemoryStore) Deployment(name string) (domain.Deployment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.apps[name]
	if !ok {
		return domain.Deployment{}, false
	}
	return e.dep, true
}

// Deployments returns all deployment records.
func (s *MemoryStore) Deployments() []domain.Deployment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Deployment, 0, len(s.apps))
	for _, e := range s.apps {
		out = append(out, e.dep)
	}
	return out
}

// ByContainer finds the deployment owning the given container.
func (s *MemoryStore) ByContainer(id string) (domain.Deployment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.apps {
		if e.dep.ContainerID != "" && e.dep.ContainerID == id {
			return e.dep, true
		}
	}
	return domain.Deployment{}, false
}

// MarkBuilding moves an app into the Building phase, rejecting concurrent
// builds for the same app.
func (s *MemoryStore) MarkBuilding(name string) error {
	return s.transition(name, domain.PhaseBuilding, func(d *domain.Deployment) {})
}

// MarkBuilt records a successful build and its image.
func (s *MemoryStore) MarkBuilt(name string, img domain.Image) error {
	return s.transition(name, domain.PhaseBuilt, func(d *domain.Deployment) {
		d.ImageRef = img.Ref
		d.ImageID = img.ID
		d.BuiltAt = time.Now()
		d.ContainerID = ""
		d.HostPort = 0
		d.ExitCode = 0
	})
}

// MarkBuildFailed returns a failed build to NotBuilt; no usable image exists.
func (s *MemoryStore) MarkBuildFailed(name string) error {
	return s.transition(name, domain.PhaseNotBuilt, func(d *domain.Deployment) {})
}

// MarkRunning records the started entry process.
func (s *MemoryStore) MarkRunning(name, containerID string, hostPort int) error {
	s.mu.Lock()
	e, ok := s.apps[name]
	if ok {
		e.stopRequested = false
	}
	s.mu.Unlock()
	return s.transition(name, domain.PhaseRunning, func(d *domain.Deployment) {
		d.ContainerID = containerID
		d.HostPort = hostPort
		d.ExitCode = 0
		d.StartedAt = time.Now()
		d.FinishedAt = time.Time{}
	})
}

// MarkStopped records a graceful termination.
func (s *MemoryStore) MarkStopped(name string, exitCode int) error {
	return s.transition(name, domain.PhaseStopped, func(d *domain.Deployment) {
		d.ExitCode = exitCode
		d.HostPort = 0
		d.FinishedAt = time.Now()
	})
}

// MarkCrashed records a non-zero exit of the entry process.
func (s *MemoryStore) MarkCrashed(name string, exitCode int) error {
	return s.transition(name, domain.PhaseCrashed, func(d *domain.Deployment) {
		d.ExitCode = exitCode
		d.HostPort = 0
		d.FinishedAt = time.Now()
	})
}

// RequestStop flags that the wrapper initiated a graceful stop.
func (s *MemoryStore) RequestStop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.apps[name]; ok {
		e.stopRequested = true
	}
}

// StopRequested reports whether a graceful stop was initiated.
func (s *MemoryStore) StopRequested(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.apps[name]
	return ok && e.stopRequested
}

func (s *MemoryStore) transition(name string, next domain.Phase, update func(*domain.Deployment)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.apps[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrAppNotFound, name)
	}
	phase, err := e.dep.Phase.Transition(next)
	if err != nil {
		if next == domain.PhaseBuilding && e.dep.Phase == domain.PhaseBuilding {
			return fmt.Errorf("%w: %s", domain.ErrBuildInProgress, name)
		}
		return fmt.Errorf("app %s: %w", name, err)
	}
	e.dep.Phase = phase
	update(&e.dep)
	e.dep.UpdatedAt = time.Now()
	return nil
}

// Restore force-sets a deployment record, bypassing transition checks. Used
// only when rebuilding the table from the runtime at startup.
func (s *MemoryStore) Restore(dep domain.Deployment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.apps[dep.App]
	if !ok {
		return
	}
	dep.UpdatedAt = time.Now()
	e.dep = dep
}
