package ports

import (
	"context"
	"io"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

// ContainerService defines the core operations for managing containers.
// This interface allows us to switch between Docker, Podman, or Kubernetes
// without changing the business logic.
type ContainerService interface {
	// StartApp creates and starts the app's single entry process from the
	// given image. The entry file is verified before the process starts and
	// an immediate non-zero exit is reported as a LaunchError.
	StartApp(ctx context.Context, app domain.App, imageRef string) (domain.Container, error)
	// StopContainer delivers the graceful termination signal and waits for
	// the process to exit, killing it after the configured timeout.
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
	ListContainers(ctx context.Context) ([]domain.Container, error)
	InspectContainer(ctx context.Context, id string) (domain.Container, error)
	InspectImage(ctx context.Context, ref string) (domain.Image, error)
	// FindImage returns the newest image built for the app, located through
	// the ownership labels every build stamps. It reports an error when the
	// runtime holds no image for the app.
	FindImage(ctx context.Context, app string) (domain.Image, error)
	GetContainerLogs(ctx context.Context, id string, follow bool) (io.ReadCloser, error)
}
