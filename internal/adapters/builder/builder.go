package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/rs/zerolog"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

// buildClient is the slice of the Docker API the builder needs. *client.Client
// satisfies it; tests substitute a fake.
type buildClient interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
}

type Adapter struct {
	cli     buildClient
	workdir string
	pull    bool
	logger  zerolog.Logger
}

// NewBuilderAdapter connects to the local Docker daemon. Build contexts are
// staged under workdir; pull controls whether the base image is refreshed
// from the registry on every build.
func NewBuilderAdapter(workdir string, pull bool, logger zerolog.Logger) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, workdir: workdir, pull: pull, logger: logger}, nil
}

// Close releases the daemon connection.
func (a *Adapter) Close() error {
	if c, ok := a.cli.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// BuildImage stages the app's source tree, injects the canonical Dockerfile
// when the tree does not carry its own, and builds a tagged image. Failures
// before the daemon is contacted (unreadable source, missing manifest) come
// back as *domain.BuildError just like daemon-side ones, so callers see a
// single failure surface.
func (a *Adapter) BuildImage(ctx context.Context, app domain.App) (domain.Image, error) {
	app.Normalize()
	if err := app.Validate(); err != nil {
		return domain.Image{}, domain.NewBuildError(app.Name, "validate app", err)
	}

	// 1. Stage the source tree in a private workspace directory
	staged, cleanup, err := a.stage(ctx, app)
	if err != nil {
		return domain.Image{}, domain.NewBuildError(app.Name, "resolve source", err)
	}
	defer cleanup()

	// 2. The dependency manifest must exist before we touch the daemon
	if _, err := os.Stat(filepath.Join(staged, filepath.FromSlash(app.Manifest))); err != nil {
		return domain.Image{}, domain.NewBuildError(app.Name, "resolve manifest", err)
	}

	// 3. Synthesize the Dockerfile unless the tree ships one
	if err := ensureDockerfile(staged, app); err != nil {
		return domain.Image{}, domain.NewBuildError(app.Name, "prepare context", err)
	}

	// 4. Content-addressed tag over the base image, entry command and tree
	tag, treeDigest, err := ImageTag(app, staged)
	if err != nil {
		return domain.Image{}, domain.NewBuildError(app.Name, "digest source", err)
	}

	a.logger.Info().
		Str("app", app.Name).
		Str("image", tag).
		Str("base", app.BaseImage).
		Msg("Building image")

	// 5. Tar the staged tree as the build context
	buildCtx, err := archive.TarWithOptions(staged, &archive.TarOptions{
		ExcludePatterns: []string{".git"},
	})
	if err != nil {
		return domain.Image{}, domain.NewBuildError(app.Name, "prepare context", err)
	}
	defer buildCtx.Close()

	// 6. Build
	resp, err := a.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: dockerfileName,
		Remove:     true,
		PullParent: a.pull,
		Labels:     imageLabels(app, treeDigest),
	})
	if err != nil {
		return domain.Image{}, domain.NewBuildError(app.Name, "image build", err)
	}
	defer resp.Body.Close()

	// 7. Drain the output stream; an error frame means the build failed
	if err := a.drainBuildOutput(app.Name, resp.Body); err != nil {
		return domain.Image{}, domain.NewBuildError(app.Name, "image build", err)
	}

	inspect, _, err := a.cli.ImageInspectWithRaw(ctx, tag)
	if err != nil {
		return domain.Image{}, domain.NewBuildError(app.Name, "inspect image", err)
	}

	img := domain.Image{
		Ref:  tag,
		ID:   inspect.ID,
		Base: app.BaseImage,
		Size: inspect.Size,
	}
	if inspect.Config != nil {
		img.Labels = inspect.Config.Labels
	}
	if created, err := time.Parse(time.RFC3339Nano, inspect.Created); err == nil {
		img.Created = created
	}

	a.logger.Info().
		Str("app", app.Name).
		Str("image", tag).
		Str("id", img.ID).
		Msg("Image built")

	return img, nil
}

// imageLabels marks the image as ours and records its provenance with
// standard OCI annotations.
func imageLabels(app domain.App, treeDigest string) map[string]string {
	return map[string]string{
		domain.LabelManaged:             "true",
		domain.LabelApp:                 app.Name,
		ocispec.AnnotationTitle:         app.Name,
		ocispec.AnnotationBaseImageName: app.BaseImage,
		ocispec.AnnotationSource:        app.Source,
		ocispec.AnnotationRevision:      treeDigest,
		ocispec.AnnotationCreated:       time.Now().UTC().Format(time.RFC3339),
	}
}
