package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"waveanalyzer/config"
	"waveanalyzer/session"
)

// Version is reported by the health endpoints
const Version = "1.0.0"

// HealthHandler handles health check endpoints
type HealthHandler struct {
	cfg     config.Config
	manager *session.Manager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(cfg config.Config, manager *session.Manager) *HealthHandler {
	return &HealthHandler{
		cfg:     cfg,
		manager: manager,
	}
}

// HealthCheck returns the health status of the service
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "waveanalyzer",
		"version":   Version,
		"timestamp": time.Now().Unix(),
	})
}

// APIStatus returns the status of the API and its collaborators
func (h *HealthHandler) APIStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":         "Wave analyzer API is running",
		"upload_location": h.cfg.UploadLocation,
		"sessions":        h.manager.Count(),
		"frame_rate":      h.cfg.FrameRate,
		"spectral":        h.cfg.SpectralEndpoint != "",
		"database":        h.cfg.DatabaseURL != "",
		"auth":            h.cfg.AuthEndpoint != "",
	})
}
