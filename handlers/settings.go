package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"waveanalyzer/config"
	"waveanalyzer/session"
)

// SettingsHandler handles settings-related endpoints
type SettingsHandler struct {
	manager *session.Manager
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(manager *session.Manager) *SettingsHandler {
	return &SettingsHandler{
		manager: manager,
	}
}

// GetSettings returns the current visualization settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := config.LoadSettings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load settings",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// UpdateSettings merges the posted fields into the saved settings and
// applies them to every open session
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	settings, err := config.LoadSettings()
	if err != nil {
		settings = config.DefaultSettings()
	}

	body, err := io.ReadAll(c.Request.Body)
	if err == nil {
		err = json.Unmarshal(body, &settings)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid settings format",
			"details": err.Error(),
		})
		return
	}

	if err := settings.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid settings",
			"details": err.Error(),
		})
		return
	}

	if err := config.SaveSettings(settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to save settings",
			"details": err.Error(),
		})
		return
	}
	h.manager.ApplySettings(settings)

	c.JSON(http.StatusOK, gin.H{
		"message":  "Settings updated successfully",
		"settings": settings,
	})
}
