package http

import (
	"context"
	"errors"
	"io"
	"sort"

	"github.com/gofiber/fiber/v2"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

// AppService is the engine surface the HTTP layer consumes.
type AppService interface {
	Register(app domain.App) (domain.App, error)
	Build(ctx context.Context, name string) (domain.Image, error)
	Start(ctx context.Context, name string) (domain.Container, error)
	Stop(ctx context.Context, name string) error
	Deploy(ctx context.Context, name string) (domain.Deployment, error)
	Remove(ctx context.Context, name string) error
	Logs(ctx context.Context, name string, follow bool) (io.ReadCloser, error)
	App(name string) (domain.App, bool)
	Apps() []domain.App
	Deployment(name string) (domain.Deployment, bool)
	Containers(ctx context.Context) ([]domain.Container, error)
}

type AppHandler struct {
	service AppService
}

func NewAppHandler(service AppService) *AppHandler {
	return &AppHandler{service: service}
}

// AppStatus pairs an app with its deployment record in API responses.
type AppStatus struct {
	App        domain.App        `json:"app"`
	Deployment domain.Deployment `json:"deployment"`
}

func (h *AppHandler) CreateApp(c *fiber.Ctx) error {
	var app domain.App
	if err := c.BodyParser(&app); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	app, err := h.service.Register(app)
	if err != nil {
		// Anything besides a name collision is a bad app descriptor
		if errors.Is(err, domain.ErrAppExists) {
			return h.fail(c, err)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(app)
}

func (h *AppHandler) ListApps(c *fiber.Ctx) error {
	apps := h.service.Apps()
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })

	out := make([]AppStatus, 0, len(apps))
	for _, app := range apps {
		dep, _ := h.service.Deployment(app.Name)
		out = append(out, AppStatus{App: app, Deployment: dep})
	}
	return c.JSON(out)
}

func (h *AppHandler) GetApp(c *fiber.Ctx) error {
	name := c.Params("name")
	app, ok := h.service.App(name)
	if !ok {
		return h.fail(c, domain.ErrAppNotFound)
	}
	dep, _ := h.service.Deployment(name)
	return c.JSON(AppStatus{App: app, Deployment: dep})
}

func (h *AppHandler) DeleteApp(c *fiber.Ctx) error {
	if err := h.service.Remove(c.Context(), c.Params("name")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AppHandler) BuildApp(c *fiber.Ctx) error {
	img, err := h.service.Build(c.Context(), c.Params("name"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(img)
}

func (h *AppHandler) StartApp(c *fiber.Ctx) error {
	container, err := h.service.Start(c.Context(), c.Params("name"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(container)
}

func (h *AppHandler) StopApp(c *fiber.Ctx) error {
	if err := h.service.Stop(c.Context(), c.Params("name")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *AppHandler) DeployApp(c *fiber.Ctx) error {
	dep, err := h.service.Deploy(c.Context(), c.Params("name"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dep)
}

func (h *AppHandler) GetAppLogs(c *fiber.Ctx) error {
	follow := c.QueryBool("follow")
	logs, err := h.service.Logs(c.Context(), c.Params("name"), follow)
	if err != nil {
		return h.fail(c, err)
	}
	// fasthttp closes the stream after serving
	c.Set("Content-Type", "text/plain")
	return c.SendStream(logs)
}

func (h *AppHandler) ListContainers(c *fiber.Ctx) error {
	containers, err := h.service.Containers(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(containers)
}

func (h *AppHandler) fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// statusFor maps domain failures onto HTTP status codes: unknown names are
// 404, lifecycle ordering mistakes are 409, and build or launch failures
// reported by the runtime are 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAppNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrAppExists),
		errors.Is(err, domain.ErrAlreadyRunning),
		errors.Is(err, domain.ErrNotRunning),
		errors.Is(err, domain.ErrNotBuilt),
		errors.Is(err, domain.ErrBuildInProgress),
		errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrBuild), errors.Is(err, domain.ErrLaunch):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
