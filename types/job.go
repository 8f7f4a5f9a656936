package types

import "time"

// JobStatus represents the current status of an analysis job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusDecoding  JobStatus = "decoding"
	JobStatusReady     JobStatus = "ready"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusStale     JobStatus = "stale"
)

// AnalysisJob is one track load queued for a session
type AnalysisJob struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"sessionId"`
	Filename    string     `json:"filename"`
	Size        int64      `json:"size"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Finished reports whether the job reached a terminal status
func (j *AnalysisJob) Finished() bool {
	switch j.Status {
	case JobStatusReady, JobStatusFailed, JobStatusCancelled, JobStatusStale:
		return true
	}
	return false
}
