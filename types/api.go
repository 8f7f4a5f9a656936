package types

// AudioFile represents an uploaded audio file on disk
type AudioFile struct {
	Filename string         `json:"filename"`
	Path     string         `json:"path"`
	Size     int64          `json:"size"`
	Format   string         `json:"format"` // "wav", "mp3"
	Metadata *AudioMetadata `json:"metadata,omitempty"`
}

// AudioMetadata represents tag metadata of an audio file
type AudioMetadata struct {
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	TrackNumber int    `json:"trackNumber,omitempty"`
}

// CreateSessionRequest opens a transcription session
type CreateSessionRequest struct {
	ProjectID string  `json:"projectId"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// SeekRequest moves the playhead by time or by timeline pixel
type SeekRequest struct {
	Time *float64 `json:"time"`
	X    *float64 `json:"x"`
}

// RateRequest sets the playback speed
type RateRequest struct {
	Rate float64 `json:"rate" binding:"required"`
}

// LoopRequest toggles whole-track looping
type LoopRequest struct {
	Loop bool `json:"loop"`
}

// VolumeRequest sets the volume 0-100
type VolumeRequest struct {
	Volume int `json:"volume"`
}

// ZoomRequest changes the timeline zoom, either absolutely or by wheel delta
type ZoomRequest struct {
	Zoom   *float64 `json:"zoom"`
	DeltaY *float64 `json:"deltaY"`
}

// ResizeRequest reports the measured size of the timeline and frequency panel
type ResizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// KeysRequest changes the piano keyboard zoom
type KeysRequest struct {
	VisibleKeys *float64 `json:"visibleKeys"`
	Step        *float64 `json:"step"`
}

// PointerRequest is a pointer event on the timeline
type PointerRequest struct {
	X        float64 `json:"x"`
	Modifier bool    `json:"modifier"`
}

// CreateMarkerRequest adds a marker; without a timestamp the playhead is used
type CreateMarkerRequest struct {
	Timestamp *float64 `json:"timestamp"`
	Note      string   `json:"note"`
}

// UpdateMarkerRequest edits a marker note
type UpdateMarkerRequest struct {
	Note string `json:"note"`
}
