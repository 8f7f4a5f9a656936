package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"waveanalyzer/config"
	"waveanalyzer/frameloop"
	"waveanalyzer/logger"
	"waveanalyzer/storage"
)

// ErrNotFound is returned for an unknown session id
var ErrNotFound = errors.New("session not found")

// Deps are the collaborators shared by every session of a manager
type Deps struct {
	Scheduler frameloop.Scheduler
	Decoder   Decoder
	Analyzer  Analyzer
	Store     storage.Store
	Publisher frameloop.Publisher
	Settings  func() config.Settings
	Chunks    int
	Now       func() time.Time
}

// Manager owns the open sessions
type Manager struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty manager
func NewManager(deps Deps) *Manager {
	if deps.Settings == nil {
		deps.Settings = config.DefaultSettings
	}
	return &Manager{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session sized width x height. With a projectID the saved
// project is restored into it and returned alongside.
func (m *Manager) Create(ctx context.Context, projectID string, width, height float64) (*Session, *storage.Project, error) {
	var project *storage.Project
	if projectID != "" {
		if m.deps.Store == nil {
			return nil, nil, fmt.Errorf("project %s: %w", projectID, storage.ErrNotFound)
		}
		p, err := m.deps.Store.GetProject(ctx, projectID)
		if err != nil {
			return nil, nil, err
		}
		project = p
	}

	s := New(Options{
		Width:     width,
		Height:    height,
		Settings:  m.deps.Settings(),
		Chunks:    m.deps.Chunks,
		Scheduler: m.deps.Scheduler,
		Now:       m.deps.Now,
		Decoder:   m.deps.Decoder,
		Analyzer:  m.deps.Analyzer,
		Store:     m.deps.Store,
		Publisher: m.deps.Publisher,
	})

	if project != nil {
		if err := s.Restore(ctx, project); err != nil {
			_ = s.Close(ctx)
			return nil, nil, fmt.Errorf("failed to restore project: %w", err)
		}
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	logger.Infof("Session %s opened (project %q)", s.ID(), projectID)
	return s, project, nil
}

// Get returns an open session
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns the open sessions, oldest first
func (m *Manager) List() []*Session {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt().Before(list[j].CreatedAt())
	})
	return list
}

// Count returns the number of open sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Delete closes and forgets a session
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	return s.Close(ctx)
}

// ApplySettings updates every open session
func (m *Manager) ApplySettings(st config.Settings) {
	for _, s := range m.List() {
		s.ApplySettings(st)
	}
}

// CloseAll closes every session, e.g. on shutdown
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for id, s := range sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
