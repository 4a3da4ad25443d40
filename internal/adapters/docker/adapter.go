package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/rs/zerolog"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

// runtimeClient is the slice of the Docker API the adapter needs.
// *client.Client satisfies it; tests substitute a fake.
type runtimeClient interface {
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ImageList(ctx context.Context, options types.ImageListOptions) ([]types.ImageSummary, error)
	ImagePull(ctx context.Context, refStr string, options types.ImagePullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStatPath(ctx context.Context, containerID, path string) (types.ContainerPathStat, error)
	ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error
	ContainerList(ctx context.Context, options types.ContainerListOptions) ([]types.Container, error)
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options types.ContainerLogsOptions) (io.ReadCloser, error)
	Events(ctx context.Context, options types.EventsOptions) (<-chan events.Message, <-chan error)
}

// Adapter implements ports.ContainerService and ports.EventStream using the
// Docker SDK.
type Adapter struct {
	cli         runtimeClient
	stopTimeout time.Duration
	grace       time.Duration
	logger      zerolog.Logger
}

// NewAdapter creates a new Docker adapter instance. stopTimeout bounds how
// long a stop waits before the process is killed; grace is the startup
// window during which an exiting entry process is reported as a launch
// failure instead of a crash-after-start.
func NewAdapter(stopTimeout, grace time.Duration, logger zerolog.Logger) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, stopTimeout: stopTimeout, grace: grace, logger: logger}, nil
}

// Close releases the daemon connection.
func (a *Adapter) Close() error {
	if c, ok := a.cli.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// StartApp creates and starts the app's single entry process from the given
// image. The sequence fails fast: the entry file is stat'ed in the created
// (not yet started) container, so a missing entry point never binds a port
// or leaves a half-started process behind.
func (a *Adapter) StartApp(ctx context.Context, app domain.App, imageRef string) (domain.Container, error) {
	app.Normalize()

	// 1. Resolve the image, pulling only when it is absent locally.
	// Locally built images are never pulled.
	if _, _, err := a.cli.ImageInspectWithRaw(ctx, imageRef); err != nil {
		if !client.IsErrNotFound(err) {
			return domain.Container{}, domain.NewLaunchError(app.Name, "resolve image", err)
		}
		if err := a.pullImage(ctx, imageRef); err != nil {
			return domain.Container{}, domain.NewLaunchError(app.Name, "resolve image", err)
		}
	}

	// 2. A previous entry process may have exited and still hold the name.
	// A live one means the app is already running; refuse a second process.
	name := containerName(app.Name)
	if existing, err := a.cli.ContainerInspect(ctx, name); err == nil {
		if existing.State != nil && existing.State.Running {
			return domain.Container{}, domain.NewLaunchError(app.Name, "create container",
				fmt.Errorf("container %s: %w", name, domain.ErrAlreadyRunning))
		}
		a.removeQuietly(ctx, existing.ID)
	}

	// 3. Create the container with the app's port published
	port, err := nat.NewPort("tcp", strconv.Itoa(app.Port))
	if err != nil {
		return domain.Container{}, domain.NewLaunchError(app.Name, "create container", err)
	}
	hostPort := ""
	if app.HostPort != 0 {
		hostPort = strconv.Itoa(app.HostPort)
	}
	cfg := &container.Config{
		Image:        imageRef,
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels: map[string]string{
			domain.LabelManaged: "true",
			domain.LabelApp:     app.Name,
			domain.LabelPort:    strconv.Itoa(app.Port),
		},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: hostPort}},
		},
	}
	created, err := a.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return domain.Container{}, domain.NewLaunchError(app.Name, "create container", err)
	}

	// 4. The entry file must exist in the image before anything runs
	if path := app.EntryFilePath(); path != "" {
		if _, err := a.cli.ContainerStatPath(ctx, created.ID, path); err != nil {
			a.removeQuietly(ctx, created.ID)
			return domain.Container{}, domain.NewLaunchError(app.Name, "verify entry point",
				fmt.Errorf("entry file %s not found in image %s: %w", path, imageRef, err))
		}
	}

	// 5. Start the entry process
	if err := a.cli.ContainerStart(ctx, created.ID, types.ContainerStartOptions{}); err != nil {
		a.removeQuietly(ctx, created.ID)
		return domain.Container{}, domain.NewLaunchError(app.Name, "start", err)
	}

	a.logger.Info().
		Str("app", app.Name).
		Str("container", shortID(created.ID)).
		Str("image", imageRef).
		Msg("Entry process started")

	// 6. An exit inside the grace window is a launch failure, not a crash
	if err := a.awaitStartup(ctx, app, created.ID); err != nil {
		return domain.Container{}, err
	}

	return a.InspectContainer(ctx, created.ID)
}

// awaitStartup watches the freshly started container for the grace window.
// The container is left in place when the process dies so its logs stay
// available; only the error is surfaced.
func (a *Adapter) awaitStartup(ctx context.Context, app domain.App, id string) error {
	if a.grace <= 0 {
		return nil
	}
	// The SDK goroutine behind ContainerWait holds a daemon connection until
	// someone consumes its result; cancelling the wait releases it when the
	// window closes without an exit.
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	waitCh, errCh := a.cli.ContainerWait(waitCtx, id, container.WaitConditionNotRunning)
	timer := time.NewTimer(a.grace)
	defer timer.Stop()

	select {
	case res := <-waitCh:
		exit := int(res.StatusCode)
		tail := a.logTail(ctx, id)
		return &domain.LaunchError{
			App:      app.Name,
			Step:     "await entry process",
			ExitCode: exit,
			Err:      fmt.Errorf("entry process exited during startup: %s", tail),
		}
	case err := <-errCh:
		if err != nil {
			// The wait call failed, not the container; assume it is up.
			a.logger.Warn().Err(err).Str("app", app.Name).Msg("Container wait failed")
		}
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return domain.NewLaunchError(app.Name, "await entry process", ctx.Err())
	}
}

// StopContainer delivers SIGTERM and lets the daemon kill the process after
// the configured timeout. The call returns once the container has exited.
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	timeout := int(a.stopTimeout.Seconds())
	if err := a.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// RemoveContainer force-removes a container. Removing one that is already
// gone is not an error.
func (a *Adapter) RemoveContainer(ctx context.Context, id string) error {
	err := a.cli.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// ListContainers returns every container this wrapper owns, including
// exited ones.
func (a *Adapter) ListContainers(ctx context.Context) ([]domain.Container, error) {
	containers, err := a.cli.ContainerList(ctx, types.ContainerListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", domain.LabelManaged+"=true")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var result []domain.Container
	for _, c := range containers {
		// Use the first name if available, remove slash
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		dc := domain.Container{
			ID:     c.ID,
			Name:   name,
			App:    c.Labels[domain.LabelApp],
			Image:  c.Image,
			Status: c.Status,
			State:  c.State,
		}
		for _, p := range c.Ports {
			if p.PublicPort != 0 {
				dc.HostPort = int(p.PublicPort)
				break
			}
		}
		if c.NetworkSettings != nil {
			for _, ep := range c.NetworkSettings.Networks {
				if ep != nil && ep.IPAddress != "" {
					dc.IPAddress = ep.IPAddress
					break
				}
			}
		}
		result = append(result, dc)
	}
	return result, nil
}

// InspectContainer resolves one container to its domain form, including the
// bridge IP and published host port the proxy needs.
func (a *Adapter) InspectContainer(ctx context.Context, id string) (domain.Container, error) {
	insp, err := a.cli.ContainerInspect(ctx, id)
	if err != nil {
		return domain.Container{}, fmt.Errorf("failed to inspect container: %w", err)
	}

	c := domain.Container{
		ID:   insp.ID,
		Name: strings.TrimPrefix(insp.Name, "/"),
	}
	if insp.Config != nil {
		c.Image = insp.Config.Image
		c.App = insp.Config.Labels[domain.LabelApp]
	}
	if insp.State != nil {
		c.State = insp.State.Status
		c.Status = insp.State.Status
		c.ExitCode = insp.State.ExitCode
	}
	if insp.NetworkSettings != nil {
		c.IPAddress = insp.NetworkSettings.IPAddress
		for _, bindings := range insp.NetworkSettings.Ports {
			for _, b := range bindings {
				if hp, err := strconv.Atoi(b.HostPort); err == nil && hp != 0 {
					c.HostPort = hp
				}
			}
		}
	}
	return c, nil
}

// InspectImage resolves an image reference to its domain form.
func (a *Adapter) InspectImage(ctx context.Context, ref string) (domain.Image, error) {
	insp, _, err := a.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return domain.Image{}, fmt.Errorf("failed to inspect image: %w", err)
	}
	img := domain.Image{
		Ref:  ref,
		ID:   insp.ID,
		Size: insp.Size,
	}
	if insp.Config != nil {
		img.Labels = insp.Config.Labels
		img.Base = insp.Config.Labels[ocispec.AnnotationBaseImageName]
	}
	if created, err := time.Parse(time.RFC3339Nano, insp.Created); err == nil {
		img.Created = created
	}
	return img, nil
}

// FindImage resolves the newest image built for the app through the
// ownership labels stamped at build time. It lets a fresh process recover
// a build recorded by an earlier one.
func (a *Adapter) FindImage(ctx context.Context, app string) (domain.Image, error) {
	summaries, err := a.cli.ImageList(ctx, types.ImageListOptions{
		Filters: filters.NewArgs(
			filters.Arg("label", domain.LabelManaged+"=true"),
			filters.Arg("label", domain.LabelApp+"="+app),
		),
	})
	if err != nil {
		return domain.Image{}, fmt.Errorf("failed to list images: %w", err)
	}

	var newest *types.ImageSummary
	var newestRef string
	for i := range summaries {
		s := &summaries[i]
		ref := taggedRef(s.RepoTags)
		if ref == "" {
			continue
		}
		if newest == nil || s.Created > newest.Created {
			newest = s
			newestRef = ref
		}
	}
	if newest == nil {
		return domain.Image{}, fmt.Errorf("no image built for app %s", app)
	}

	return domain.Image{
		Ref:     newestRef,
		ID:      newest.ID,
		Size:    newest.Size,
		Created: time.Unix(newest.Created, 0),
		Labels:  newest.Labels,
		Base:    newest.Labels[ocispec.AnnotationBaseImageName],
	}, nil
}

// taggedRef picks the first real tag, skipping dangling placeholders.
func taggedRef(tags []string) string {
	for _, t := range tags {
		if t != "" && t != "<none>:<none>" {
			return t
		}
	}
	return ""
}

// GetContainerLogs returns a stream of container logs
func (a *Adapter) GetContainerLogs(ctx context.Context, id string, follow bool) (io.ReadCloser, error) {
	options := types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Timestamps: true,
	}
	return a.cli.ContainerLogs(ctx, id, options)
}

func (a *Adapter) pullImage(ctx context.Context, ref string) error {
	a.logger.Info().Str("image", ref).Msg("Pulling image")
	reader, err := a.cli.ImagePull(ctx, ref, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// The pull only completes once the stream is drained
	_, err = io.Copy(io.Discard, reader)
	return err
}

// logTail fetches the last lines of a container's output for error reports.
func (a *Adapter) logTail(ctx context.Context, id string) string {
	rc, err := a.cli.ContainerLogs(ctx, id, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "20",
	})
	if err != nil {
		return ""
	}
	defer rc.Close()

	var buf bytes.Buffer
	// Log streams of non-tty containers are multiplexed
	if _, err := stdcopy.StdCopy(&buf, &buf, io.LimitReader(rc, 64*1024)); err != nil {
		return strings.TrimSpace(buf.String())
	}
	return strings.TrimSpace(buf.String())
}

func (a *Adapter) removeQuietly(ctx context.Context, id string) {
	if err := a.RemoveContainer(ctx, id); err != nil {
		a.logger.Warn().Err(err).Str("container", shortID(id)).Msg("Failed to remove container")
	}
}

// containerName is the fixed daemon-side name for an app's entry process.
// The daemon rejects duplicate names, which backs up the single-process
// guarantee even if two wrappers race.
func containerName(app string) string {
	return "pixelart-" + app
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
