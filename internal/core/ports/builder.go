package ports

import (
	"context"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

// BuilderService defines operations for building container images from source code.
type BuilderService interface {
	// BuildImage stages the app's source tree (local directory or shallow
	// git clone), synthesizes a Dockerfile when the tree carries none, and
	// builds an image from it. It returns the built image or a BuildError.
	BuildImage(ctx context.Context, app domain.App) (domain.Image, error)
}
