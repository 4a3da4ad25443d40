// Package core drives the build/run lifecycle of registered apps. The engine
// owns the deployment table and is the only writer of phase transitions;
// adapters stay stateless.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
	"github.com/hbjzxzx/pixel-art/internal/core/ports"
)

type Engine struct {
	store   ports.DeploymentStore
	builder ports.BuilderService
	runtime ports.ContainerService
	stream  ports.EventStream
	resync  time.Duration
	logger  zerolog.Logger
}

// NewEngine wires the engine to its ports. resyncInterval sets how often the
// deployment table is reconciled against the runtime while Run is active;
// zero disables periodic reconciliation.
func NewEngine(store ports.DeploymentStore, builder ports.BuilderService, runtime ports.ContainerService, stream ports.EventStream, resyncInterval time.Duration, logger zerolog.Logger) *Engine {
	return &Engine{
		store:   store,
		builder: builder,
		runtime: runtime,
		stream:  stream,
		resync:  resyncInterval,
		logger:  logger,
	}
}

// Register validates and records a new app in the NotBuilt phase.
func (e *Engine) Register(app domain.App) (domain.App, error) {
	app.Normalize()
	if err := app.Validate(); err != nil {
		return domain.App{}, err
	}
	if err := e.store.Register(app); err != nil {
		return domain.App{}, err
	}
	e.logger.Info().Str("app", app.Name).Str("source", app.Source).Msg("App registered")
	return app, nil
}

// Build produces an image for a registered app. A second build for the same
// app while one is in flight is rejected; a failed build returns the app to
// NotBuilt with no usable image.
func (e *Engine) Build(ctx context.Context, name string) (domain.Image, error) {
	app, ok := e.store.GetApp(name)
	if !ok {
		return domain.Image{}, fmt.Errorf("%s: %w", name, domain.ErrAppNotFound)
	}
	if err := e.store.MarkBuilding(name); err != nil {
		return domain.Image{}, err
	}

	img, err := e.builder.BuildImage(ctx, app)
	if err != nil {
		if serr := e.store.MarkBuildFailed(name); serr != nil {
			e.logger.Warn().Err(serr).Str("app", name).Msg("Failed to record build failure")
		}
		return domain.Image{}, err
	}
	if err := e.store.MarkBuilt(name, img); err != nil {
		return domain.Image{}, err
	}

	e.logger.Info().Str("app", name).Str("image", img.Ref).Msg("Build finished")
	return img, nil
}

// Start launches the entry process of a built app. Starting an app that is
// already Running is a no-op returning the live container; starting one that
// was never built fails without touching the runtime.
func (e *Engine) Start(ctx context.Context, name string) (domain.Container, error) {
	app, ok := e.store.GetApp(name)
	if !ok {
		return domain.Container{}, fmt.Errorf("%s: %w", name, domain.ErrAppNotFound)
	}
	dep, _ := e.store.Deployment(name)

	if dep.Phase == domain.PhaseRunning {
		c, err := e.runtime.InspectContainer(ctx, dep.ContainerID)
		if err != nil {
			return domain.Container{}, fmt.Errorf("%s is recorded running but cannot be inspected: %w", name, err)
		}
		return c, nil
	}
	if !dep.Phase.CanTransition(domain.PhaseRunning) {
		if dep.Phase == domain.PhaseBuilding {
			return domain.Container{}, fmt.Errorf("%s: %w", name, domain.ErrBuildInProgress)
		}
		return domain.Container{}, fmt.Errorf("%s: %w", name, domain.ErrNotBuilt)
	}

	c, err := e.runtime.StartApp(ctx, app, dep.ImageRef)
	if err != nil {
		// The app keeps its image; the phase stays as it was so the launch
		// can be retried once the cause is fixed.
		return domain.Container{}, err
	}
	if err := e.store.MarkRunning(name, c.ID, c.HostPort); err != nil {
		e.logger.Error().Err(err).Str("app", name).Msg("Failed to record launch, stopping container")
		if serr := e.runtime.StopContainer(ctx, c.ID); serr != nil {
			e.logger.Warn().Err(serr).Str("app", name).Msg("Failed to stop unrecorded container")
		}
		return domain.Container{}, err
	}

	e.logger.Info().
		Str("app", name).
		Str("container", c.ID).
		Int("host_port", c.HostPort).
		Msg("App running")
	return c, nil
}

// Stop gracefully terminates a running app's entry process and records the
// Stopped phase. The exit is flagged as wrapper-initiated first, so the
// runtime's die event classifies it as Stopped even when it wins the race
// with the direct mark below.
func (e *Engine) Stop(ctx context.Context, name string) error {
	dep, ok := e.store.Deployment(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, domain.ErrAppNotFound)
	}
	if dep.Phase != domain.PhaseRunning {
		return fmt.Errorf("%s: %w", name, domain.ErrNotRunning)
	}

	e.store.RequestStop(name)
	if err := e.runtime.StopContainer(ctx, dep.ContainerID); err != nil {
		return err
	}

	exit := 0
	if c, err := e.runtime.InspectContainer(ctx, dep.ContainerID); err == nil {
		exit = c.ExitCode
	}
	if err := e.store.MarkStopped(name, exit); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
		return err
	}

	e.logger.Info().Str("app", name).Int("exit_code", exit).Msg("App stopped")
	return nil
}

// Deploy builds the app and starts its entry process. Deploying an app whose
// previous version is still running stops that version first.
func (e *Engine) Deploy(ctx context.Context, name string) (domain.Deployment, error) {
	if dep, ok := e.store.Deployment(name); ok && dep.Phase == domain.PhaseRunning {
		if err := e.Stop(ctx, name); err != nil {
			return domain.Deployment{}, err
		}
	}
	if _, err := e.Build(ctx, name); err != nil {
		return domain.Deployment{}, err
	}
	if _, err := e.Start(ctx, name); err != nil {
		return domain.Deployment{}, err
	}
	dep, _ := e.store.Deployment(name)
	return dep, nil
}

// Remove stops the app if needed, removes its container and drops it from
// the table. The built image stays in the daemon.
func (e *Engine) Remove(ctx context.Context, name string) error {
	dep, ok := e.store.Deployment(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, domain.ErrAppNotFound)
	}
	if dep.Phase == domain.PhaseRunning {
		if err := e.Stop(ctx, name); err != nil {
			e.logger.Warn().Err(err).Str("app", name).Msg("Failed to stop app during removal")
		}
	}
	if dep.ContainerID != "" {
		if err := e.runtime.RemoveContainer(ctx, dep.ContainerID); err != nil {
			return err
		}
	}
	e.store.Forget(name)
	e.logger.Info().Str("app", name).Msg("App removed")
	return nil
}

// Logs opens the log stream of the app's current or last entry process.
func (e *Engine) Logs(ctx context.Context, name string, follow bool) (io.ReadCloser, error) {
	dep, ok := e.store.Deployment(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrAppNotFound)
	}
	if dep.ContainerID == "" {
		return nil, fmt.Errorf("%s has never run: %w", name, domain.ErrNotRunning)
	}
	return e.runtime.GetContainerLogs(ctx, dep.ContainerID, follow)
}

// App returns one registered app by name.
func (e *Engine) App(name string) (domain.App, bool) { return e.store.GetApp(name) }

// Apps returns all registered apps.
func (e *Engine) Apps() []domain.App { return e.store.Apps() }

// Deployments returns the deployment records of all registered apps.
func (e *Engine) Deployments() []domain.Deployment { return e.store.Deployments() }

// Deployment returns one app's deployment record.
func (e *Engine) Deployment(name string) (domain.Deployment, bool) {
	return e.store.Deployment(name)
}

// Containers lists the runtime containers this wrapper owns.
func (e *Engine) Containers(ctx context.Context) ([]domain.Container, error) {
	return e.runtime.ListContainers(ctx)
}

// InspectImage resolves a built image reference against the runtime.
func (e *Engine) InspectImage(ctx context.Context, ref string) (domain.Image, error) {
	return e.runtime.InspectImage(ctx, ref)
}

// Run consumes runtime events until ctx is cancelled, keeping the deployment
// table in step with the actual containers. The table is reconciled once at
// startup and then periodically when a resync interval is configured.
func (e *Engine) Run(ctx context.Context) error {
	events, err := e.stream.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to runtime events: %w", err)
	}
	if err := e.Resync(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Startup resync failed")
	}

	var tick <-chan time.Time
	if e.resync > 0 {
		ticker := time.NewTicker(e.resync)
		defer ticker.Stop()
		tick = ticker.C
	}

	e.logger.Info().Msg("Engine running")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Engine shutting down")
			return nil
		case <-tick:
			if err := e.Resync(ctx); err != nil {
				e.logger.Warn().Err(err).Msg("Periodic resync failed")
			}
		case ev, ok := <-events:
			if !ok {
				return errors.New("runtime event stream closed")
			}
			e.handleEvent(ev)
		}
	}
}

// Resync reconciles the deployment table with what the runtime actually
// holds: containers first, then images built for apps the table still shows
// as unbuilt, so a fresh process picks up builds recorded by an earlier one.
// Containers owned by unregistered apps are reported but left alone.
func (e *Engine) Resync(ctx context.Context) error {
	containers, err := e.runtime.ListContainers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	for _, c := range containers {
		if c.App == "" {
			continue
		}
		if _, ok := e.store.GetApp(c.App); !ok {
			e.logger.Warn().Str("container", c.ID).Str("app", c.App).Msg("Owned container has no registered app")
			continue
		}
		dep, _ := e.store.Deployment(c.App)
		if dep.Phase == domain.PhaseBuilding {
			continue
		}
		running := c.State == "running"
		if dep.ContainerID == c.ID && running == (dep.Phase == domain.PhaseRunning) {
			continue
		}
		// A Built deployment that does not track this container means the
		// launch failed before the app ever ran; the dead container is only
		// kept for its logs. The deployment stays Built for a retry and the
		// next launch sweeps the container.
		if !running && dep.Phase == domain.PhaseBuilt && dep.ContainerID != c.ID {
			continue
		}

		restored := dep
		restored.App = c.App
		restored.ContainerID = c.ID
		if restored.ImageRef == "" {
			restored.ImageRef = c.Image
		}
		if running {
			restored.Phase = domain.PhaseRunning
			restored.HostPort = c.HostPort
			restored.ExitCode = 0
		} else {
			exit := c.ExitCode
			if insp, err := e.runtime.InspectContainer(ctx, c.ID); err == nil {
				exit = insp.ExitCode
			}
			restored.ExitCode = exit
			restored.HostPort = 0
			if domain.GracefulExit(exit) {
				restored.Phase = domain.PhaseStopped
			} else {
				restored.Phase = domain.PhaseCrashed
			}
		}
		e.store.Restore(restored)
		e.logger.Info().
			Str("app", c.App).
			Str("phase", string(restored.Phase)).
			Str("container", c.ID).
			Msg("Deployment restored from runtime")
	}

	for _, app := range e.store.Apps() {
		dep, ok := e.store.Deployment(app.Name)
		if !ok || dep.Phase != domain.PhaseNotBuilt {
			continue
		}
		img, err := e.runtime.FindImage(ctx, app.Name)
		if err != nil {
			continue
		}
		restored := dep
		restored.App = app.Name
		restored.Phase = domain.PhaseBuilt
		restored.ImageRef = img.Ref
		restored.ImageID = img.ID
		restored.BuiltAt = img.Created
		e.store.Restore(restored)
		e.logger.Info().
			Str("app", app.Name).
			Str("image", img.Ref).
			Msg("Deployment restored from image store")
	}
	return nil
}

func (e *Engine) handleEvent(ev domain.ContainerEvent) {
	dep, ok := e.store.Deployment(ev.App)
	if !ok {
		dep, ok = e.store.ByContainer(ev.ContainerID)
		if !ok {
			return
		}
	}
	// Events for containers the deployment no longer tracks, e.g. a dead
	// predecessor being cleaned up during a relaunch, are stale.
	if dep.ContainerID == "" || dep.ContainerID != ev.ContainerID {
		return
	}

	switch ev.Action {
	case "start":
		if dep.Phase == domain.PhaseRunning {
			return
		}
		if err := e.store.MarkRunning(dep.App, ev.ContainerID, dep.HostPort); err != nil {
			e.logger.Debug().Err(err).Str("app", dep.App).Msg("Ignoring start event")
			return
		}
		e.logger.Info().Str("app", dep.App).Msg("Entry process started outside the wrapper")
	case "die":
		graceful := e.store.StopRequested(dep.App) || domain.GracefulExit(ev.ExitCode)
		var err error
		if graceful {
			err = e.store.MarkStopped(dep.App, ev.ExitCode)
		} else {
			err = e.store.MarkCrashed(dep.App, ev.ExitCode)
		}
		if err != nil {
			if !errors.Is(err, domain.ErrInvalidTransition) {
				e.logger.Warn().Err(err).Str("app", dep.App).Msg("Failed to record exit")
			}
			return
		}
		e.logger.Info().
			Str("app", dep.App).
			Int("exit_code", ev.ExitCode).
			Bool("graceful", graceful).
			Msg("Entry process exited")
	}
}
