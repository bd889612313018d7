package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck one named dependency probe
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler liveness and dependency status
type HealthHandler struct {
	checks []HealthCheck
}

// NewHealthHandler creates the handler
func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health GET /health
// Dependencies are reported individually; any failing probe turns the status to degraded with 503.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	deps := gin.H{}
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			deps[check.Name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		deps[check.Name] = "ok"
	}
	c.JSON(code, gin.H{
		"status":       status,
		"service":      "zkaccount-backend",
		"dependencies": deps,
	})
}
