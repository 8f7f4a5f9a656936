package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"waveanalyzer/logger"
	"waveanalyzer/services"
	"waveanalyzer/session"
	"waveanalyzer/storage"
	"waveanalyzer/types"
)

// SessionHandler handles session endpoints and the controls of an open session
type SessionHandler struct {
	manager     *session.Manager
	jobQueue    services.JobQueue
	fileService services.FileService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *session.Manager, jq services.JobQueue, fs services.FileService) *SessionHandler {
	return &SessionHandler{
		manager:     manager,
		jobQueue:    jq,
		fileService: fs,
	}
}

// lookup resolves the :id parameter, writing a 404 when it is unknown
func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	s, ok := h.manager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "session not found",
		})
		return nil, false
	}
	return s, true
}

// CreateSession opens a session, optionally restoring a saved project
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req types.CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid session request",
				"details": err.Error(),
			})
			return
		}
	}

	s, project, err := h.manager.Create(c.Request.Context(), req.ProjectID, req.Width, req.Height)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "project not found",
				"details": err.Error(),
			})
			return
		}
		logger.Error("Failed to create session", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to create session",
			"details": err.Error(),
		})
		return
	}

	resp := gin.H{"session": s.Info()}
	if project != nil {
		resp["project"] = project
		if job := h.queueProjectTrack(s, project); job != nil {
			resp["job"] = job
		}
	}
	c.JSON(http.StatusCreated, resp)
}

// queueProjectTrack starts loading the project's stored audio into s
func (h *SessionHandler) queueProjectTrack(s *session.Session, project *storage.Project) *types.AnalysisJob {
	if !strings.HasPrefix(project.SongURL, services.UploadURLPrefix) {
		return nil
	}
	rel := strings.TrimPrefix(project.SongURL, services.UploadURLPrefix)
	path, err := h.fileService.ResolvePath(rel)
	if err != nil {
		logger.Warnf("Project %s has an unusable song URL %q: %v", project.ID, project.SongURL, err)
		return nil
	}

	job, err := h.jobQueue.AddJob(s, services.OriginalName(rel), path)
	if err != nil {
		logger.Warnf("Could not queue track of project %s: %v", project.ID, err)
		return nil
	}
	return job
}

// ListSessions returns all open sessions
func (h *SessionHandler) ListSessions(c *gin.Context) {
	open := h.manager.List()
	infos := make([]session.Info, 0, len(open))
	for _, s := range open {
		infos = append(infos, s.Info())
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": infos,
		"total":    len(infos),
	})
}

// GetSession returns the state of a session
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": s.Info(),
	})
}

// DeleteSession closes a session and saves its project view
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	err := h.manager.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "session not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "session closed with errors",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "session closed",
	})
}

// UploadTrack stores an uploaded file and queues loading it into the session
func (h *SessionHandler) UploadTrack(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "file is required",
			"details": err.Error(),
		})
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "failed to read upload",
			"details": err.Error(),
		})
		return
	}
	defer src.Close()

	stored, err := h.fileService.SaveUpload(fileHeader.Filename, src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "failed to store upload",
			"details": err.Error(),
		})
		return
	}

	path, err := h.fileService.ResolvePath(stored.Path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to resolve upload",
			"details": err.Error(),
		})
		return
	}

	job, err := h.jobQueue.AddJob(s, stored.Filename, path)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "failed to queue analysis",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "track analysis queued",
		"job":     job,
		"file":    stored,
		"songUrl": h.fileService.SongURL(stored),
	})
}

// GetWaveform returns the min/max envelope of the loaded track
func (h *SessionHandler) GetWaveform(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	track := s.Track()
	if track == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "no track loaded",
			"status": s.Status(),
		})
		return
	}

	lo, hi := s.Envelope().Extremes()
	c.JSON(http.StatusOK, gin.H{
		"name":       track.Name,
		"duration":   track.Duration,
		"sampleRate": track.SampleRate,
		"channels":   track.ChannelCount(),
		"peaks":      s.Envelope(),
		"min":        lo,
		"max":        hi,
	})
}

// GetGrid returns the time grid of the timeline and the key grid of the
// frequency panel
func (h *SessionHandler) GetGrid(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"view": s.Viewport().State(),
		"time": s.Grid(),
		"keys": s.KeyGrid(),
	})
}
