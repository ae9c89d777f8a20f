package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/dealdesk/internal/middleware"
	"github.com/stwalsh4118/dealdesk/internal/models"
	"github.com/stwalsh4118/dealdesk/internal/schema"
)

const (
	// APIVersion is the current version of the ops API
	APIVersion = "0.1.0"
	// HealthCheckTimeout bounds the database ping and schema check of a readiness probe
	HealthCheckTimeout = 2 * time.Second
)

// Pinger checks database connectivity. *database.Database satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CompatibilityChecker compares a pinned layout with a live catalog.
// *schema.Registry satisfies it.
type CompatibilityChecker interface {
	CheckCompatibility(ctx context.Context, live schema.Catalog) (schema.CompatibilityReport, error)
}

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	db         Pinger
	pinned     CompatibilityChecker
	live       schema.Catalog
	schemaMode string
	startTime  time.Time
	env        string
}

// HealthOptions configures the schema part of readiness. With Pinned nil the
// schema check is skipped.
type HealthOptions struct {
	Pinned     CompatibilityChecker
	Live       schema.Catalog
	SchemaMode string
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(db Pinger, env string, opts HealthOptions) *HealthHandler {
	return &HealthHandler{
		db:         db,
		pinned:     opts.Pinned,
		live:       opts.Live,
		schemaMode: opts.SchemaMode,
		startTime:  time.Now(),
		env:        env,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status   string                      `json:"status"`
	Database string                      `json:"database"`
	Schema   string                      `json:"schema,omitempty"`
	Report   *schema.CompatibilityReport `json:"report,omitempty"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	Version     string   `json:"version"`
	Environment string   `json:"environment"`
	Uptime      string   `json:"uptime"`
	SchemaMode  string   `json:"schema_mode,omitempty"`
	Tabs        []string `json:"tabs"`
}

// Health handles GET /health. It checks nothing and is used for liveness.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
	})
}

// Ready handles GET /health/ready.
// Returns 200 OK when the database answers and, if a pinned layout is
// configured, the live schema has every table and column the engine writes.
// Otherwise 503 Service Unavailable.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
	defer cancel()

	log := middleware.GetLogger(c)

	if err := h.db.Ping(ctx); err != nil {
		if log != nil {
			log.Error("Database health check failed", err, map[string]interface{}{
				"timeout": HealthCheckTimeout.String(),
			})
		}
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Status:   "not_ready",
			Database: "disconnected",
		})
		return
	}

	if h.pinned == nil || h.live == nil {
		c.JSON(http.StatusOK, ReadyResponse{
			Status:   "ready",
			Database: "connected",
		})
		return
	}

	report, err := h.pinned.CheckCompatibility(ctx, h.live)
	if err != nil {
		if log != nil {
			log.Error("Schema compatibility check failed", err, nil)
		}
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Status:   "not_ready",
			Database: "connected",
			Schema:   "unknown",
		})
		return
	}

	if !report.OK() {
		if log != nil {
			log.Warn("Live schema is missing pinned tables or columns", map[string]interface{}{
				"report": report.String(),
			})
		}
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Status:   "not_ready",
			Database: "connected",
			Schema:   "incompatible",
			Report:   &report,
		})
		return
	}

	c.JSON(http.StatusOK, ReadyResponse{
		Status:   "ready",
		Database: "connected",
		Schema:   "compatible",
		Report:   &report,
	})
}

// Info handles GET /api/v1/info.
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, InfoResponse{
		Version:     APIVersion,
		Environment: h.env,
		Uptime:      formatUptime(time.Since(h.startTime)),
		SchemaMode:  h.schemaMode,
		Tabs:        models.TabNames(),
	})
}

// formatUptime formats a duration into a human-readable string.
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
