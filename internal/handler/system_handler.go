package handler

import (
	"context"
	"net/http"
	"time"

	"petvet/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves the health check, API banner and unknown routes
type SystemHandler struct {
	store   Pinger
	version string
	started time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(store Pinger, version string) *SystemHandler {
	return &SystemHandler{store: store, version: version, started: time.Now()}
}

func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{
		"status":    "ok",
		"store":     "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Seconds(),
	}
	if err := h.store.Ping(ctx); err != nil {
		_ = c.Error(err)
		body["status"] = "error"
		body["store"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (h *SystemHandler) Banner(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":      "PetVet API",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *SystemHandler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":  "route not found",
		"method": c.Request.Method,
		"url":    c.Request.URL.String(),
	})
}

// RegisterSystemRoutes registers health, metrics, banner and the 404 fallback
func (h *SystemHandler) RegisterSystemRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/api", h.Banner)
	router.NoRoute(h.NotFound)
}
