package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. It backs the service when no
// DATABASE_URL is configured, and the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]Project
	markers  map[string]Marker
	now      func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]Project),
		markers:  make(map[string]Marker),
		now:      time.Now,
	}
}

// CreateProject stores p, assigning an ID when it has none
func (s *MemoryStore) CreateProject(ctx context.Context, p *Project) error {
	if p == nil {
		return errors.New("nil project")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.ZoomFactor == 0 {
		p.ZoomFactor = 1
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.projects[p.ID] = *p
	return nil
}

// GetProject returns a copy of the project
func (s *MemoryStore) GetProject(ctx context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// ListProjects returns the projects of userID, newest first. An empty
// userID lists every project.
func (s *MemoryStore) ListProjects(ctx context.Context, userID string) ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		if userID == "" || p.UserID == userID {
			projects = append(projects, p)
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].ID < projects[j].ID
		}
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

// DeleteProject removes the project and its markers
func (s *MemoryStore) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(s.projects, id)
	for mid, m := range s.markers {
		if m.ProjectID == id {
			delete(s.markers, mid)
		}
	}
	return nil
}

// UpdateProjectView saves seeker, zoom and loop range
func (s *MemoryStore) UpdateProjectView(ctx context.Context, id string, view ProjectView) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return ErrNotFound
	}
	p.SeekerPosition = view.SeekerPosition
	p.ZoomFactor = view.ZoomFactor
	p.LoopStart = view.LoopStart
	p.LoopEnd = view.LoopEnd
	p.UpdatedAt = s.now()
	s.projects[id] = p
	return nil
}

// ListMarkers returns the markers of a project ordered by timestamp
func (s *MemoryStore) ListMarkers(ctx context.Context, projectID string) ([]Marker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markers := make([]Marker, 0)
	for _, m := range s.markers {
		if m.ProjectID == projectID {
			markers = append(markers, m)
		}
	}
	sort.Slice(markers, func(i, j int) bool {
		if markers[i].Timestamp == markers[j].Timestamp {
			return markers[i].ID < markers[j].ID
		}
		return markers[i].Timestamp < markers[j].Timestamp
	})
	return markers, nil
}

// CreateMarker stores m under an existing project
func (s *MemoryStore) CreateMarker(ctx context.Context, m *Marker) error {
	if m == nil {
		return errors.New("nil marker")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[m.ProjectID]; !ok {
		return ErrNotFound
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := s.now()
	m.CreatedAt, m.UpdatedAt = now, now
	s.markers[m.ID] = *m
	return nil
}

// UpdateMarker rewrites the note and timestamp of m
func (s *MemoryStore) UpdateMarker(ctx context.Context, m *Marker) error {
	if m == nil {
		return errors.New("nil marker")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.markers[m.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Note = m.Note
	existing.Timestamp = m.Timestamp
	existing.UpdatedAt = s.now()
	s.markers[m.ID] = existing
	*m = existing
	return nil
}

// DeleteMarker removes a marker
func (s *MemoryStore) DeleteMarker(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markers[id]; !ok {
		return ErrNotFound
	}
	delete(s.markers, id)
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
