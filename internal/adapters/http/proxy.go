package http

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/hbjzxzx/pixel-art/internal/core/domain"
)

// ProxyHandler manages reverse proxying for subdomains of the configured
// proxy domain.
type ProxyHandler struct {
	service AppService
	domain  string
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(service AppService, domain string) *ProxyHandler {
	return &ProxyHandler{service: service, domain: domain}
}

// ProxyRequest intercepts requests to subdomains (e.g., app-name.localhost)
// and routes them to the corresponding container's internal IP and the port
// the app's entry process binds.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	host := c.Hostname()

	// 1. Extract Subdomain. Only direct children of the proxy domain qualify.
	subdomain := strings.TrimSuffix(host, "."+h.domain)
	if subdomain == host || strings.Contains(subdomain, ".") {
		return c.Next()
	}

	// Skip common subdomains or empty ones
	if subdomain == "" || subdomain == "www" || subdomain == "api" {
		return c.Next()
	}

	// 2. The subdomain must name a registered app with a running deployment
	app, ok := h.service.App(subdomain)
	if !ok {
		return c.Next()
	}
	dep, ok := h.service.Deployment(subdomain)
	if !ok || dep.Phase != domain.PhaseRunning {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("App '%s' is not running", subdomain))
	}

	// 3. Find the entry process container for its internal IP
	containers, err := h.service.Containers(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to list containers")
	}
	var targetIP string
	for _, container := range containers {
		if container.ID == dep.ContainerID && container.State == "running" {
			targetIP = container.IPAddress
			break
		}
	}
	if targetIP == "" {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("App '%s' is not running", subdomain))
	}

	// 4. Proxy the Request
	remote, err := url.Parse(fmt.Sprintf("http://%s:%d", targetIP, app.Port))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Invalid target URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(remote)

	// Custom Director: Rewrite Host header to target
	// This ensures the container receives a request with a Host header it
	// expects (IP based), avoiding "Host not recognized" errors from the
	// application inside.
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = remote.Host
		req.URL.Host = remote.Host
		req.URL.Scheme = remote.Scheme
	}

	// Error Handler: Return standard BadGateway if connectivity fails
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, "Proxy Info: target=%s error=%v", remote.Host, err)
	}

	// Fiber <-> Net/HTTP Adaptor
	return adaptor.HTTPHandler(proxy)(c)
}
