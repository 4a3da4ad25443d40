package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hbjzxzx/pixel-art/internal/adapters/builder"
	"github.com/hbjzxzx/pixel-art/internal/adapters/docker"
	httpapi "github.com/hbjzxzx/pixel-art/internal/adapters/http"
	"github.com/hbjzxzx/pixel-art/internal/config"
	"github.com/hbjzxzx/pixel-art/internal/core"
	"github.com/hbjzxzx/pixel-art/internal/state"
)

type App struct {
	builder *builder.Adapter
	runtime *docker.Adapter
	engine  *core.Engine
	server  *httpapi.Server
	listen  string
	logger  zerolog.Logger
}

// New creates a new App by wiring up all dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	store := state.NewMemoryStore()

	buildAdapter, err := builder.NewBuilderAdapter(cfg.Build.Workspace, cfg.Build.Pull,
		logger.With().Str("component", "builder").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create builder adapter: %w", err)
	}
	runtimeAdapter, err := docker.NewAdapter(cfg.Runtime.StopTimeout, cfg.Runtime.StartupGrace,
		logger.With().Str("component", "runtime").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker adapter: %w", err)
	}

	engine := core.NewEngine(store, buildAdapter, runtimeAdapter, runtimeAdapter, cfg.Runtime.ResyncInterval,
		logger.With().Str("component", "engine").Logger())

	// Apps declared in the config file are registered up front so the
	// startup resync can reclaim their containers.
	for _, ac := range cfg.Apps {
		if _, err := engine.Register(ac.App()); err != nil {
			return nil, fmt.Errorf("failed to register app %s: %w", ac.Name, err)
		}
	}

	handler := httpapi.NewAppHandler(engine)
	proxy := httpapi.NewProxyHandler(engine, cfg.Server.ProxyDomain)
	server := httpapi.NewServer(handler, proxy, logger.With().Str("component", "http").Logger())

	return &App{
		builder: buildAdapter,
		runtime: runtimeAdapter,
		engine:  engine,
		server:  server,
		listen:  cfg.Server.Listen,
		logger:  logger,
	}, nil
}

// Engine exposes the deployment engine for one-shot command use.
func (a *App) Engine() *core.Engine { return a.engine }

// Run starts the engine and the HTTP server and serves until ctx is
// cancelled or either of them fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info().Msg("Application starting")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- a.engine.Run(runCtx)
	}()
	go func() {
		errCh <- a.server.Listen(a.listen)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("Shutdown signal received")
		if err := a.server.Shutdown(); err != nil {
			a.logger.Warn().Err(err).Msg("HTTP server shutdown failed")
		}
		cancel()
		<-errCh
		<-errCh
		return nil
	case err := <-errCh:
		cancel()
		if serr := a.server.Shutdown(); serr != nil {
			a.logger.Warn().Err(serr).Msg("HTTP server shutdown failed")
		}
		return err
	}
}

func (a *App) Close() error {
	var firstErr error
	if a.builder != nil {
		if err := a.builder.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close builder adapter: %w", err)
		}
	}
	if a.runtime != nil {
		if err := a.runtime.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close docker adapter: %w", err)
		}
	}
	return firstErr
}
