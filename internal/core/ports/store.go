package ports

import "github.com/hbjzxzx/pixel-art/internal/core/domain"

// DeploymentStore tracks registered apps and their deployment lifecycle.
// Implementations must be safe for concurrent use; phase changes go through
// the Mark methods so every change is a validated transition.
type DeploymentStore interface {
	Register(app domain.App) error
	GetApp(name string) (domain.App, bool)
	Apps() []domain.App
	Forget(name string)

	Deployment(name string) (domain.Deployment, bool)
	Deployments() []domain.Deployment
	ByContainer(id string) (domain.Deployment, bool)

	MarkBuilding(name string) error
	MarkBuilt(name string, img domain.Image) error
	MarkBuildFailed(name string) error
	MarkRunning(name, containerID string, hostPort int) error
	MarkStopped(name string, exitCode int) error
	MarkCrashed(name string, exitCode int) error

	// RequestStop records that a graceful stop was initiated by the wrapper,
	// so the following exit is classified as Stopped rather than Crashed.
	RequestStop(name string)
	StopRequested(name string) bool

	// Restore force-sets a deployment record without transition validation.
	// Reserved for rebuilding the table from the runtime's actual state.
	Restore(dep domain.Deployment)
}
