package server

import (
	"context"
	"net/http"
	"time"

	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes one dependency (store, broker connection, ...)
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const healthTimeout = 2 * time.Second

func RegisterHealthRoutes(router *gin.Engine, checks ...HealthCheck) {
	router.GET("/health", HealthHandler(checks...))
}

// HealthHandler reports 200 when every check passes and 503 otherwise
func HealthHandler(checks ...HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		resp := HealthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for _, hc := range checks {
			if err := hc.Check(ctx); err != nil {
				resp.Checks[hc.Name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				utils.Warn("health check failed", map[string]any{"check": hc.Name, "error": err.Error()})
				continue
			}
			resp.Checks[hc.Name] = "ok"
		}
		c.JSON(status, resp)
	}
}
