package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"waveanalyzer/logger"
	"waveanalyzer/services"
	"waveanalyzer/session"
	"waveanalyzer/websocket"
)

// JobHandler handles analysis job endpoints and the session websockets
type JobHandler struct {
	jobQueue services.JobQueue
	manager  *session.Manager
	hub      websocket.Hub
}

// NewJobHandler creates a new job handler
func NewJobHandler(jq services.JobQueue, manager *session.Manager, hub websocket.Hub) *JobHandler {
	return &JobHandler{
		jobQueue: jq,
		manager:  manager,
		hub:      hub,
	}
}

// GetAllJobs returns all analysis jobs
func (h *JobHandler) GetAllJobs(c *gin.Context) {
	jobs := h.jobQueue.GetAllJobs()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GetJob returns a specific analysis job by ID
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("jobId")
	job, exists := h.jobQueue.GetJob(jobID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "job not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job": job,
	})
}

// CancelJob cancels a queued analysis job
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("jobId")
	cancelled := h.jobQueue.CancelJob(jobID)
	if !cancelled {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job cannot be cancelled (not found or already processing)",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "job cancelled successfully",
	})
}

// HandleSessionWebSocket streams the frames and status updates of one session
func (h *JobHandler) HandleSessionWebSocket(c *gin.Context) {
	sessionID := c.Param("id")
	if _, ok := h.manager.Get(sessionID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	h.serve(c, sessionID)
}

// HandleWebSocketAllConnection streams status and job updates of every session
func (h *JobHandler) HandleWebSocketAllConnection(c *gin.Context) {
	h.serve(c, websocket.AllSessions)
}

func (h *JobHandler) serve(c *gin.Context, sessionID string) {
	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, sessionID)
	h.hub.RegisterClient(client)

	// Start client pumps
	client.StartPumps()
}
