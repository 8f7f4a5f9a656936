// Package storage persists projects and their timestamp markers.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a project or marker does not exist
var ErrNotFound = errors.New("not found")

// Project is one uploaded recording and its saved view
type Project struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId,omitempty"`
	Name           string    `json:"name"`
	SongURL        string    `json:"songUrl"`
	SeekerPosition float64   `json:"seekerPosition"`
	ZoomFactor     float64   `json:"zoomFactor"`
	LoopStart      *float64  `json:"loopStart,omitempty"`
	LoopEnd        *float64  `json:"loopEnd,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ProjectView is the part of a project rewritten when a session closes
type ProjectView struct {
	SeekerPosition float64
	ZoomFactor     float64
	LoopStart      *float64
	LoopEnd        *float64
}

// Marker is a persisted timestamp annotation
type Marker struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Note      string    `json:"note"`
	Timestamp float64   `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is the project-storage collaborator
type Store interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context, userID string) ([]Project, error)
	DeleteProject(ctx context.Context, id string) error
	UpdateProjectView(ctx context.Context, id string, view ProjectView) error

	ListMarkers(ctx context.Context, projectID string) ([]Marker, error)
	CreateMarker(ctx context.Context, m *Marker) error
	UpdateMarker(ctx context.Context, m *Marker) error
	DeleteMarker(ctx context.Context, id string) error

	Close() error
}
