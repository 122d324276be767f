package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pharmacy/backend/internal/infrastructure/persistence"
	"github.com/pharmacy/backend/internal/interfaces/http/dto"
)

// DatabaseChecker reports database reachability and pool usage
type DatabaseChecker interface {
	Ping() error
	Stats() (persistence.ConnectionStats, error)
}

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	BaseHandler
	db        DatabaseChecker
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db DatabaseChecker, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		version:   version,
		startTime: time.Now(),
	}
}

// PoolResponse is the connection pool section of the health body
type PoolResponse struct {
	MaxOpen      int    `json:"max_open"`
	Open         int    `json:"open"`
	InUse        int    `json:"in_use"`
	Idle         int    `json:"idle"`
	WaitCount    int64  `json:"wait_count"`
	WaitDuration string `json:"wait_duration"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string        `json:"status"`
	Database string        `json:"database"`
	Version  string        `json:"version"`
	Uptime   string        `json:"uptime"`
	Pool     *PoolResponse `json:"pool,omitempty"`
}

// Health reports whether the service and its database are up
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:   "ok",
		Database: "up",
		Version:  h.version,
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
	}

	status := http.StatusOK
	if err := h.db.Ping(); err != nil {
		resp.Status = "degraded"
		resp.Database = "down"
		status = http.StatusServiceUnavailable
	}

	// Pool numbers are informational; failing to read them does not change the status.
	if stats, err := h.db.Stats(); err == nil {
		resp.Pool = &PoolResponse{
			MaxOpen:      stats.MaxOpenConnections,
			Open:         stats.OpenConnections,
			InUse:        stats.InUse,
			Idle:         stats.Idle,
			WaitCount:    stats.WaitCount,
			WaitDuration: stats.WaitDuration.String(),
		}
	}

	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}
