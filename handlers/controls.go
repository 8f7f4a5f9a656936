package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"waveanalyzer/markers"
	"waveanalyzer/session"
	"waveanalyzer/types"
)

// bindJSON binds the body into req, writing a 400 on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func playback(c *gin.Context, s *session.Session) {
	c.JSON(http.StatusOK, gin.H{
		"playback": s.Info().Playback,
	})
}

// Play starts playback
func (h *SessionHandler) Play(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	s.Clock().Play()
	playback(c, s)
}

// Pause stops playback at the current time
func (h *SessionHandler) Pause(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	s.Clock().Pause()
	playback(c, s)
}

// Seek moves the playhead to a time or to the time under a timeline pixel
func (h *SessionHandler) Seek(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req types.SeekRequest
	if !bindJSON(c, &req) {
		return
	}

	switch {
	case req.Time != nil:
		s.Clock().Seek(*req.Time)
	case req.X != nil:
		s.SeekX(*req.X)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "time or x is required",
		})
		return
	}
	playback(c, s)
}

// SetRate changes the playback speed
func (h *SessionHandler) SetRate(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req types.RateRequest
	if !bindJSON(c, &req) {
		return
	}
	s.Clock().SetRate(req.Rate)
	playback(c, s)
}

// SetLoop toggles whole-track looping
func (h *SessionHandler) SetLoop(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req types.LoopRequest
	if !bindJSON(c, &req) {
		return
	}
	s.Clock().SetLoop(req.Loop)
	playback(c, s)
}

// SetVolume sets the volume 0-100
func (h *SessionHandler) SetVolume(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req types.VolumeRequest
	if !bindJSON(c, &req) {
		return
	}
	s.Clock().SetVolume(req.Volume)
	playback(c, s)
}

// Rewind seeks back to the beginning of the track
func (h *SessionHandler) Rewind(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	s.Rewind()
	playback(c, s)
}

// Zoom sets the timeline zoom directly or by wheel delta
func (h *SessionHandler) Zoom(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req types.ZoomRequest
	if !bindJSON(c, &req) {
		return
	}

	switch {
	case req.Zoom != nil:
		s.Viewport().SetZoom(*req.Zoom)
	case req.DeltaY != nil:
		s.Viewport().ZoomByWheel(*req.DeltaY)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "zoom or deltaY is required",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"view": s.Viewport().State(),
	})
}

// Resize records the measured panel size
func (h *SessionHandler) Resize(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req types.ResizeRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Width <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "width must be positive",
		})
		return
	}
	s.Resize(req.Width, req.Height)
	c.JSON(http.StatusOK, gin.H{
		"view": s.Viewport().State(),
		"keys": s.KeyGrid(),
	})
}

// Keys changes the piano keyboard zoom
func (h *SessionHandler) Keys(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req types.KeysRequest
	if !bindJSON(c, &req) {
		return
	}

	keys := s.Visualizer().Keys()
	switch {
	case req.VisibleKeys != nil:
		keys.Set(*req.VisibleKeys)
	case req.Step != nil:
		keys.Step(*req.Step)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "visibleKeys or step is required",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"visibleKeys": keys.VisibleKeys(),
		"scaleX":      keys.ScaleX(),
	})
}

func selectionState(c *gin.Context, s *session.Session, consumed bool) {
	sel := s.Selection()
	resp := gin.H{
		"consumed": consumed,
		"state":    sel.State().String(),
	}
	if r, ok := sel.Range(); ok {
		resp["range"] = r
	}
	if r, ok := sel.Preview(); ok {
		resp["preview"] = r
	}
	c.JSON(http.StatusOK, resp)
}

// PressSelection handles a pointer press on the timeline
func (h *SessionHandler) PressSelection(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req types.PointerRequest
	if !bindJSON(c, &req) {
		return
	}
	selectionState(c, s, s.Selection().Press(req.X, req.Modifier))
}

// MoveSelection extends the drag in progress
func (h *SessionHandler) MoveSelection(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req types.PointerRequest
	if !bindJSON(c, &req) {
		return
	}
	selectionState(c, s, s.MoveSelection(req.X))
}

// ReleaseSelection ends the drag and commits the loop range
func (h *SessionHandler) ReleaseSelection(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req types.PointerRequest
	if !bindJSON(c, &req) {
		return
	}
	_, committed := s.Selection().Release(req.X)
	selectionState(c, s, committed)
}

// ClearSelection drops the loop range
func (h *SessionHandler) ClearSelection(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	s.Selection().Clear()
	selectionState(c, s, true)
}

// ListMarkers returns the markers sorted by timestamp with current X
func (h *SessionHandler) ListMarkers(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	list := s.Markers().List()
	c.JSON(http.StatusOK, gin.H{
		"markers": list,
		"total":   len(list),
	})
}

// CreateMarker adds a marker at a timestamp or at the playhead
func (h *SessionHandler) CreateMarker(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req types.CreateMarkerRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	m, err := s.AddMarker(req.Timestamp, req.Note)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "failed to add marker",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"marker": m,
	})
}

// UpdateMarker edits the note of a marker
func (h *SessionHandler) UpdateMarker(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req types.UpdateMarkerRequest
	if !bindJSON(c, &req) {
		return
	}

	m, err := s.Markers().UpdateNote(c.Param("markerId"), req.Note)
	if err != nil {
		markerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"marker": m,
	})
}

// DeleteMarker removes a marker
func (h *SessionHandler) DeleteMarker(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := s.Markers().Remove(c.Param("markerId")); err != nil {
		markerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "marker deleted",
	})
}

func markerError(c *gin.Context, err error) {
	if errors.Is(err, markers.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "marker not found",
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "marker update failed",
		"details": err.Error(),
	})
}
