package handlers

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"waveanalyzer/logger"
	"waveanalyzer/middleware"
	"waveanalyzer/services"
	"waveanalyzer/storage"
)

// ProjectHandler handles project endpoints
type ProjectHandler struct {
	store       storage.Store
	fileService services.FileService
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(store storage.Store, fs services.FileService) *ProjectHandler {
	return &ProjectHandler{
		store:       store,
		fileService: fs,
	}
}

func userID(c *gin.Context) string {
	if user, ok := middleware.CurrentUser(c); ok {
		return user.ID
	}
	return ""
}

// owned loads the :id project, hiding projects of other users
func (h *ProjectHandler) owned(c *gin.Context) (*storage.Project, bool) {
	p, err := h.store.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "project not found",
			})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to load project",
			"details": err.Error(),
		})
		return nil, false
	}

	if uid := userID(c); uid != "" && p.UserID != "" && p.UserID != uid {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "project not found",
		})
		return nil, false
	}
	return p, true
}

// CreateProject stores an uploaded recording as a new project
func (h *ProjectHandler) CreateProject(c *gin.Context) {
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

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" && stored.Metadata != nil {
		name = stored.Metadata.Title
	}
	if name == "" {
		name = stored.Filename
	}

	project := &storage.Project{
		UserID:     userID(c),
		Name:       name,
		SongURL:    h.fileService.SongURL(stored),
		ZoomFactor: 1,
	}
	if err := h.store.CreateProject(c.Request.Context(), project); err != nil {
		logger.Error("Failed to create project", err)
		h.removeUpload(project.SongURL)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to create project",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      project.ID,
		"project": project,
		"file":    stored,
	})
}

// ListProjects returns the projects of the current user
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	projects, err := h.store.ListProjects(c.Request.Context(), userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to list projects",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
		"total":    len(projects),
	})
}

// GetProject returns a project and its saved markers
func (h *ProjectHandler) GetProject(c *gin.Context) {
	p, ok := h.owned(c)
	if !ok {
		return
	}
	markers, err := h.store.ListMarkers(c.Request.Context(), p.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to load markers",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project": p,
		"markers": markers,
	})
}

// DeleteProject removes a project, its markers and its audio
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	p, ok := h.owned(c)
	if !ok {
		return
	}
	if err := h.store.DeleteProject(c.Request.Context(), p.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to delete project",
			"details": err.Error(),
		})
		return
	}
	h.removeUpload(p.SongURL)

	c.JSON(http.StatusOK, gin.H{
		"message": "project deleted",
	})
}

func (h *ProjectHandler) removeUpload(songURL string) {
	if !strings.HasPrefix(songURL, services.UploadURLPrefix) {
		return
	}
	path, err := h.fileService.ResolvePath(strings.TrimPrefix(songURL, services.UploadURLPrefix))
	if err != nil {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warnf("Could not remove upload %s: %v", path, err)
	}
}
