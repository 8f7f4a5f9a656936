package types

import "time"

// Frame message types pushed to session websockets
const (
	MessageSeeker       = "seeker"
	MessageSpectrum     = "spectrum"
	MessageStatus       = "status"
	MessageJob          = "job"
	MessageNotification = "notification"
)

// FrameMessage is one websocket update for a session
type FrameMessage struct {
	SessionID string         `json:"sessionId"`
	Type      string         `json:"type"` // "seeker", "spectrum", "status", "job", "notification"
	Seq       uint64         `json:"seq,omitempty"`
	Seeker    *SeekerFrame   `json:"seeker,omitempty"`
	Spectrum  *SpectrumFrame `json:"spectrum,omitempty"`
	Status    *SessionStatus `json:"status,omitempty"`
	Job       *AnalysisJob   `json:"job,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// SeekerFrame is the playhead position for one tick
type SeekerFrame struct {
	X        float64 `json:"x"`
	Target   float64 `json:"target"`
	Time     float64 `json:"time"`
	Duration float64 `json:"duration"`
	Playing  bool    `json:"playing"`
	Zoom     float64 `json:"zoom"`
}

// SpectrumFrame is the frequency curve for one tick. Present is false when
// the playback time has no spectral frame, which is distinct from a silent
// frame (Present with no points).
type SpectrumFrame struct {
	FrameIndex int       `json:"frameIndex"`
	Present    bool      `json:"present"`
	Points     []float64 `json:"points"` // x0,y0,x1,y1,...
	ScaleX     float64   `json:"scaleX"`
}

// Track and spectral layer states
const (
	TrackNone     = "none"
	TrackDecoding = "decoding"
	TrackReady    = "ready"
	TrackError    = "error"

	SpectralAbsent  = "absent"
	SpectralLoading = "loading"
	SpectralReady   = "ready"
	SpectralError   = "error"
)

// SessionStatus describes the loaded track and spectral layer
type SessionStatus struct {
	Generation    uint64  `json:"generation"`
	Track         string  `json:"track"`
	TrackName     string  `json:"trackName,omitempty"`
	Duration      float64 `json:"duration"`
	TrackError    string  `json:"trackError,omitempty"`
	Spectral      string  `json:"spectral"`
	SpectralError string  `json:"spectralError,omitempty"`
	FrameCount    int     `json:"frameCount,omitempty"`
	BinCount      int     `json:"binCount,omitempty"`
}
