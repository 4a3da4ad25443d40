package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Server is the fiber app carrying the management API and the subdomain
// proxy on one listener.
type Server struct {
	app    *fiber.App
	logger zerolog.Logger
}

func NewServer(handler *AppHandler, proxy *ProxyHandler, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "pixelart",
		DisableStartupMessage: true,
	})

	// The proxy runs first so app subdomains never reach the API routes
	app.Use(proxy.ProxyRequest)

	api := app.Group("/api")
	v1 := api.Group("/v1")
	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	apps := v1.Group("/apps")
	apps.Post("/", handler.CreateApp)
	apps.Get("/", handler.ListApps)
	apps.Get("/:name", handler.GetApp)
	apps.Delete("/:name", handler.DeleteApp)
	apps.Post("/:name/build", handler.BuildApp)
	apps.Post("/:name/start", handler.StartApp)
	apps.Post("/:name/stop", handler.StopApp)
	apps.Post("/:name/deploy", handler.DeployApp)
	apps.Get("/:name/logs", handler.GetAppLogs)

	v1.Get("/containers", handler.ListContainers)

	return &Server{app: app, logger: logger}
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests before returning.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}
