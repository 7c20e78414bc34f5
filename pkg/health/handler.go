package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler serves the probes of one silo. Every probe answers GET and HEAD.
type Handler struct {
	checker *Checker
}

func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	probes := map[string]echo.HandlerFunc{
		"/healthz": h.Health,
		"/livez":   h.Liveness,
		"/readyz":  h.Readiness,
	}
	for path, fn := range probes {
		e.GET(path, fn)
		e.HEAD(path, fn)
	}
}

// Health reports liveness and readiness together, 503 unless both pass.
func (h *Handler) Health(c echo.Context) error {
	return respond(c, h.checker.HealthCheck())
}

// Liveness passes as long as the process serves requests.
func (h *Handler) Liveness(c echo.Context) error {
	return respond(c, h.checker.LivenessCheck())
}

// Readiness passes only while the silo is Running.
func (h *Handler) Readiness(c echo.Context) error {
	return respond(c, h.checker.ReadinessCheck())
}

func respond(c echo.Context, resp Response) error {
	status := http.StatusOK
	if resp.Status != StatusOK {
		status = http.StatusServiceUnavailable
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	if c.Request().Method == http.MethodHead {
		return c.NoContent(status)
	}
	return c.JSON(status, resp)
}
