// Package markers keeps the timestamp annotations of a session. Edits are
// applied locally first and persisted in order in the background.
package markers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"waveanalyzer/logger"
	"waveanalyzer/storage"
	"waveanalyzer/timeline"
)

// ErrNotFound is returned for an unknown marker id
var ErrNotFound = errors.New("marker not found")

// persistTimeout bounds one background storage call
const persistTimeout = 10 * time.Second

// Marker is one annotation. Timestamp is authoritative; X is recomputed
// from it through the viewport whenever markers are listed. PixelSnapshot
// is the position at creation time and is kept only as a hint.
type Marker struct {
	ID            string  `json:"id"`
	Timestamp     float64 `json:"timestamp"`
	Note          string  `json:"note"`
	PixelSnapshot float64 `json:"pixelSnapshot"`
	X             float64 `json:"x"`
}

// Persister is the subset of the project store markers are saved through
type Persister interface {
	ListMarkers(ctx context.Context, projectID string) ([]storage.Marker, error)
	CreateMarker(ctx context.Context, m *storage.Marker) error
	UpdateMarker(ctx context.Context, m *storage.Marker) error
	DeleteMarker(ctx context.Context, id string) error
}

// PersistenceError reports a background save that failed. The local edit
// is kept.
type PersistenceError struct {
	Op       string
	MarkerID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s marker %s: %v", e.Op, e.MarkerID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type opKind int

const (
	opCreate opKind = iota
	opUpdate
	opDelete
	opFlush
)

type op struct {
	kind      opKind
	projectID string
	marker    storage.Marker
	done      chan struct{}
}

// Store is the ordered marker collection of one session
type Store struct {
	mu        sync.RWMutex
	viewport  *timeline.Viewport
	persister Persister
	projectID string
	markers   []Marker
	onError   func(*PersistenceError)

	queueMu sync.Mutex
	closed  bool
	pending []op
	wake    chan struct{}
	stopped chan struct{}
}

// NewStore creates an empty store. A nil persister keeps markers local.
func NewStore(viewport *timeline.Viewport, persister Persister) *Store {
	s := &Store{
		viewport:  viewport,
		persister: persister,
		wake:      make(chan struct{}, 1),
		stopped:   make(chan struct{}),
	}
	go s.run()
	return s
}

// OnError registers the notification hook for failed saves
func (s *Store) OnError(fn func(*PersistenceError)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// ProjectID returns the project markers are saved under
func (s *Store) ProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectID
}

// Load replaces the collection with the saved markers of projectID. An
// empty projectID just clears the store and detaches it from storage.
func (s *Store) Load(ctx context.Context, projectID string) error {
	var saved []storage.Marker
	if projectID != "" && s.persister != nil {
		var err error
		saved, err = s.persister.ListMarkers(ctx, projectID)
		if err != nil {
			return fmt.Errorf("failed to load markers: %w", err)
		}
	}

	vs := s.viewport.State()
	markers := make([]Marker, 0, len(saved))
	for _, m := range saved {
		markers = append(markers, Marker{
			ID:            m.ID,
			Timestamp:     m.Timestamp,
			Note:          m.Note,
			PixelSnapshot: vs.TimeToX(m.Timestamp),
		})
	}
	sortMarkers(markers)

	s.mu.Lock()
	s.projectID = projectID
	s.markers = markers
	s.mu.Unlock()
	return nil
}

// Add creates a marker at timestamp and queues it for saving
func (s *Store) Add(timestamp float64) (Marker, error) {
	if math.IsNaN(timestamp) || math.IsInf(timestamp, 0) || timestamp < 0 {
		return Marker{}, fmt.Errorf("invalid marker timestamp %v", timestamp)
	}

	x := s.viewport.TimeToX(timestamp)
	m := Marker{
		ID:            uuid.New().String(),
		Timestamp:     timestamp,
		PixelSnapshot: x,
		X:             x,
	}

	s.mu.Lock()
	s.markers = append(s.markers, m)
	sortMarkers(s.markers)
	projectID := s.projectID
	s.mu.Unlock()

	s.enqueue(opCreate, projectID, m)
	return m, nil
}

// UpdateNote replaces the note text. The timestamp never changes.
func (s *Store) UpdateNote(id, note string) (Marker, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return Marker{}, ErrNotFound
	}
	s.markers[idx].Note = note
	m := s.markers[idx]
	projectID := s.projectID
	s.mu.Unlock()

	s.enqueue(opUpdate, projectID, m)
	m.X = s.viewport.TimeToX(m.Timestamp)
	return m, nil
}

// Remove deletes a marker
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	m := s.markers[idx]
	s.markers = append(s.markers[:idx], s.markers[idx+1:]...)
	projectID := s.projectID
	s.mu.Unlock()

	s.enqueue(opDelete, projectID, m)
	return nil
}

// Get returns one marker with its position re-projected
func (s *Store) Get(id string) (Marker, bool) {
	s.mu.RLock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.RUnlock()
		return Marker{}, false
	}
	m := s.markers[idx]
	s.mu.RUnlock()

	m.X = s.viewport.TimeToX(m.Timestamp)
	return m, true
}

// List returns the markers ordered by timestamp, each positioned through
// the current viewport
func (s *Store) List() []Marker {
	vs := s.viewport.State()

	s.mu.RLock()
	out := make([]Marker, len(s.markers))
	copy(out, s.markers)
	s.mu.RUnlock()

	for i := range out {
		out[i].X = vs.TimeToX(out[i].Timestamp)
	}
	return out
}

// Len returns the number of markers
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markers)
}

// Flush waits until every queued save has been attempted
func (s *Store) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !s.push(op{kind: opFlush, done: done}) {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the save queue and stops the background worker
func (s *Store) Close() {
	s.queueMu.Lock()
	s.closed = true
	s.queueMu.Unlock()
	s.signal()
	<-s.stopped
}

// push appends o to the save queue without blocking. It reports false
// once the store is closed.
func (s *Store) push(o op) bool {
	s.queueMu.Lock()
	if s.closed {
		s.queueMu.Unlock()
		return false
	}
	s.pending = append(s.pending, o)
	s.queueMu.Unlock()
	s.signal()
	return true
}

func (s *Store) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next blocks until an op is queued. It returns false when the store is
// closed and the queue drained.
func (s *Store) next() (op, bool) {
	for {
		s.queueMu.Lock()
		if len(s.pending) > 0 {
			o := s.pending[0]
			s.pending[0] = op{}
			s.pending = s.pending[1:]
			s.queueMu.Unlock()
			return o, true
		}
		closed := s.closed
		s.queueMu.Unlock()
		if closed {
			return op{}, false
		}
		<-s.wake
	}
}

func (s *Store) indexLocked(id string) int {
	for i, m := range s.markers {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) enqueue(kind opKind, projectID string, m Marker) {
	if s.persister == nil || projectID == "" {
		return
	}

	record := storage.Marker{
		ID:        m.ID,
		ProjectID: projectID,
		Note:      m.Note,
		Timestamp: m.Timestamp,
	}

	if !s.push(op{kind: kind, projectID: projectID, marker: record}) {
		logger.Warnf("Dropped marker %s save for %s after close", kind, m.ID)
	}
}

// run applies queued saves one at a time so they reach storage in the
// order they were made
func (s *Store) run() {
	defer close(s.stopped)

	for {
		o, ok := s.next()
		if !ok {
			return
		}
		if o.kind == opFlush {
			close(o.done)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err := s.apply(ctx, o)
		cancel()

		if err != nil {
			perr := &PersistenceError{Op: o.kind.String(), MarkerID: o.marker.ID, Err: err}
			logger.Warnf("%v", perr)

			s.mu.RLock()
			notify := s.onError
			s.mu.RUnlock()
			if notify != nil {
				notify(perr)
			}
		}
	}
}

func (s *Store) apply(ctx context.Context, o op) error {
	m := o.marker
	switch o.kind {
	case opCreate:
		return s.persister.CreateMarker(ctx, &m)
	case opUpdate:
		return s.persister.UpdateMarker(ctx, &m)
	case opDelete:
		return s.persister.DeleteMarker(ctx, m.ID)
	}
	return nil
}

func (k opKind) String() string {
	switch k {
	case opCreate:
		return "create"
	case opUpdate:
		return "update"
	case opDelete:
		return "delete"
	}
	return "flush"
}

func sortMarkers(markers []Marker) {
	sort.SliceStable(markers, func(i, j int) bool {
		return markers[i].Timestamp < markers[j].Timestamp
	})
}
