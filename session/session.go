// Package session holds the state of one open transcription view: the
// playback clock, the viewport, markers, the loop selection and the frame
// loops that publish seeker and spectrum frames.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"waveanalyzer/audio"
	"waveanalyzer/config"
	"waveanalyzer/freqmap"
	"waveanalyzer/frameloop"
	"waveanalyzer/logger"
	"waveanalyzer/markers"
	"waveanalyzer/spectral"
	"waveanalyzer/storage"
	"waveanalyzer/timeline"
	"waveanalyzer/types"
)

// ErrStale is returned when a newer track replaced the one being loaded
// before its results arrived
var ErrStale = errors.New("track load superseded by a newer track")

// ErrClosed is returned for operations on a closed session
var ErrClosed = errors.New("session closed")

// Decoder turns uploaded bytes into PCM
type Decoder interface {
	Decode(ctx context.Context, name string, r io.Reader) (*audio.Track, error)
}

// Analyzer fetches the spectral matrix of a file
type Analyzer interface {
	SubmitBytes(ctx context.Context, filename string, data []byte) (*spectral.Matrix, error)
}

// Options configures a new session
type Options struct {
	ID        string
	ProjectID string
	Width     float64
	Height    float64
	Settings  config.Settings
	Chunks    int

	Scheduler frameloop.Scheduler
	Now       func() time.Time
	Decoder   Decoder
	Analyzer  Analyzer
	Store     storage.Store
	Publisher frameloop.Publisher
}

// Session is the injected application state shared by every component of a
// view. A track and everything derived from it are replaced together.
type Session struct {
	id        string
	createdAt time.Time
	now       func() time.Time

	clock      *timeline.Clock
	viewport   *timeline.Viewport
	selection  *timeline.Selection
	markers    *markers.Store
	guard      *frameloop.LoopGuard
	seeker     *frameloop.SeekerSync
	visualizer *frameloop.Visualizer

	decoder  Decoder
	analyzer Analyzer
	store    storage.Store
	pub      frameloop.Publisher
	chunks   int

	mu          sync.RWMutex
	projectID   string
	generation  uint64
	reserved    uint64
	begun       uint64
	cancelLoad  context.CancelFunc
	track       *audio.Track
	envelope    audio.Envelope
	matrix      *spectral.Matrix
	status      types.SessionStatus
	restoreSeek *float64
	restoreLoop *timeline.Range
	closed      bool
}

// New creates a session and starts its frame loops. The loop guard is
// registered first so the seeker and visualizer read the enforced time.
func New(opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	if opts.Chunks <= 0 {
		opts.Chunks = audio.DefaultChunkCount
	}
	if opts.Scheduler == nil {
		opts.Scheduler = frameloop.NewManualScheduler()
	}
	if opts.Decoder == nil {
		opts.Decoder = audio.NewDecoder()
	}
	if err := opts.Settings.Validate(); err != nil {
		opts.Settings = config.DefaultSettings()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		id:        opts.ID,
		createdAt: time.Now(),
		now:       opts.Now,
		decoder:   opts.Decoder,
		analyzer:  opts.Analyzer,
		store:     opts.Store,
		pub:       opts.Publisher,
		chunks:    opts.Chunks,
		projectID: opts.ProjectID,
		status: types.SessionStatus{
			Track:    types.TrackNone,
			Spectral: types.SpectralAbsent,
		},
	}

	s.clock = timeline.NewClock(opts.Now)
	s.viewport = timeline.NewViewport(opts.Width)
	s.selection = timeline.NewSelection(s.viewport, time.Duration(opts.Settings.DragDebounceMs)*time.Millisecond)

	var persister markers.Persister
	if opts.Store != nil {
		persister = opts.Store
	}
	s.markers = markers.NewStore(s.viewport, persister)
	s.markers.OnError(s.notifyPersistence)

	s.guard = frameloop.NewLoopGuard(opts.Scheduler, s.selection, s.clock)
	s.seeker = frameloop.NewSeekerSync(s.id, opts.Scheduler, s.clock, s.viewport, s)
	// a range rewind is a cut, not a seek to animate
	s.guard.OnRewind(func(time.Time) { s.seeker.Snap() })
	s.visualizer = frameloop.NewVisualizer(s.id, opts.Scheduler, s.clock, s.Matrix, s, ParamsFromSettings(opts.Settings), opts.Width, opts.Height)
	s.ApplySettings(opts.Settings)

	s.guard.Start()
	s.seeker.Start()
	s.visualizer.Start()
	return s
}

// ParamsFromSettings builds the point transform for the given settings
func ParamsFromSettings(st config.Settings) freqmap.Params {
	p := freqmap.DefaultParams()
	p.Headroom = st.Headroom
	p.HeightFraction = st.HeightFraction
	p.Exponent = st.Exponent
	p.Sigma = st.Sigma
	p.PlotSmoothed = st.PlotSmoothed
	return p
}

// ApplySettings pushes visualization settings into the running components
func (s *Session) ApplySettings(st config.Settings) {
	if err := st.Validate(); err != nil {
		logger.Warnf("Session %s ignoring invalid settings: %v", s.id, err)
		return
	}
	s.viewport.SetZoomBounds(st.MinZoom, st.MaxZoom)
	s.seeker.SetEase(time.Duration(st.SeekerEaseMs) * time.Millisecond)
	s.visualizer.SetParams(ParamsFromSettings(st))
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was opened
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Clock returns the playback clock
func (s *Session) Clock() *timeline.Clock { return s.clock }

// Viewport returns the timeline viewport
func (s *Session) Viewport() *timeline.Viewport { return s.viewport }

// Selection returns the loop tool
func (s *Session) Selection() *timeline.Selection { return s.selection }

// Markers returns the marker store
func (s *Session) Markers() *markers.Store { return s.markers }

// Seeker returns the seeker loop
func (s *Session) Seeker() *frameloop.SeekerSync { return s.seeker }

// Visualizer returns the frequency visualization loop
func (s *Session) Visualizer() *frameloop.Visualizer { return s.visualizer }

// ProjectID returns the project the session is bound to, if any
func (s *Session) ProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectID
}

// Matrix returns the spectral matrix of the current track, or nil
func (s *Session) Matrix() *spectral.Matrix {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matrix
}

// Track returns the decoded track, or nil
func (s *Session) Track() *audio.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.track
}

// Envelope returns the waveform envelope of the current track
func (s *Session) Envelope() audio.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.envelope
}

// Status returns the track and spectral layer state
func (s *Session) Status() types.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Generation returns the current track generation
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Publish stamps frames with the session id and forwards them
func (s *Session) Publish(msg types.FrameMessage) {
	if s.pub == nil {
		return
	}
	msg.SessionID = s.id
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.pub.Publish(msg)
}

func (s *Session) publishStatus(status types.SessionStatus) {
	s.Publish(types.FrameMessage{Type: types.MessageStatus, Status: &status})
}

func (s *Session) notifyPersistence(err *markers.PersistenceError) {
	logger.Warnf("Session %s: %v", s.id, err)
	s.Publish(types.FrameMessage{Type: types.MessageNotification, Message: err.Error()})
}

// Restore binds the session to a saved project: markers are loaded and
// the saved zoom applied. The saved seeker position and loop range are
// applied once the project's track has been decoded.
func (s *Session) Restore(ctx context.Context, p *storage.Project) error {
	if p == nil {
		return nil
	}
	if err := s.markers.Load(ctx, p.ID); err != nil {
		return err
	}

	if p.ZoomFactor > 0 {
		s.viewport.SetZoom(p.ZoomFactor)
	}

	s.mu.Lock()
	s.projectID = p.ID
	if p.SeekerPosition > 0 {
		pos := p.SeekerPosition
		s.restoreSeek = &pos
	}
	if p.LoopStart != nil && p.LoopEnd != nil {
		s.restoreLoop = &timeline.Range{Start: *p.LoopStart, End: *p.LoopEnd}
	}
	s.mu.Unlock()
	return nil
}

// View captures the state saved back to the project
func (s *Session) View() storage.ProjectView {
	view := storage.ProjectView{
		SeekerPosition: s.clock.CurrentTime(),
		ZoomFactor:     s.viewport.State().Zoom,
	}
	if r, ok := s.selection.Range(); ok {
		start, end := r.Start, r.End
		view.LoopStart = &start
		view.LoopEnd = &end
	}
	return view
}

// ReserveLoad takes a load ticket. Tickets order loads by request rather
// than by the moment they start: a load never replaces one holding a
// newer ticket.
func (s *Session) ReserveLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserved++
	return s.reserved
}

// LoadTrack replaces the current track with a freshly reserved ticket
func (s *Session) LoadTrack(ctx context.Context, name string, data []byte) error {
	return s.LoadReserved(ctx, s.ReserveLoad(), name, data)
}

// LoadReserved replaces the current track. Decoding and spectral analysis
// run in parallel; results of a load that has been superseded by a newer
// one are dropped. A spectral failure only flags the spectral layer; the
// returned error is the decode error, or ErrStale.
func (s *Session) LoadReserved(ctx context.Context, ticket uint64, name string, data []byte) error {
	gen, ctx, err := s.beginLoad(ctx, ticket, name)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		track, err := s.decoder.Decode(ctx, name, bytes.NewReader(data))
		return s.commitTrack(gen, track, err)
	})
	if s.analyzer != nil {
		g.Go(func() error {
			m, err := s.analyzer.SubmitBytes(ctx, name, data)
			if cerr := s.commitSpectral(gen, m, err); errors.Is(cerr, ErrStale) {
				logger.Debugf("Session %s dropped spectral result of %s", s.id, name)
			}
			return nil
		})
	}
	err = g.Wait()
	s.endLoad(gen)
	if err == nil && s.Generation() != gen {
		return ErrStale
	}
	return err
}

// beginLoad discards the old track and its derived state and returns the
// new generation with a context cancelled by the next load. A ticket older
// than one already begun is stale.
func (s *Session) beginLoad(ctx context.Context, ticket uint64, name string) (uint64, context.Context, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, nil, ErrClosed
	}
	if ticket < s.begun {
		s.mu.Unlock()
		logger.Infof("Session %s skipped %s: a newer track is loading", s.id, name)
		return 0, nil, ErrStale
	}
	s.begun = ticket
	if ticket > s.reserved {
		s.reserved = ticket
	}
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancelLoad = cancel

	s.generation++
	gen := s.generation
	s.track = nil
	s.envelope = nil
	s.matrix = nil
	spectralState := types.SpectralAbsent
	if s.analyzer != nil {
		spectralState = types.SpectralLoading
	}
	s.status = types.SessionStatus{
		Generation: gen,
		Track:      types.TrackDecoding,
		TrackName:  name,
		Spectral:   spectralState,
	}
	status := s.status
	// the shared timeline changes with the generation
	s.clock.Unload()
	s.viewport.SetDuration(0)
	s.selection.Clear()
	s.mu.Unlock()

	s.visualizer.Reset()
	s.publishStatus(status)

	logger.Infof("Session %s loading %s (generation %d)", s.id, name, gen)
	return gen, ctx, nil
}

func (s *Session) endLoad(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen && s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
}

func (s *Session) commitTrack(gen uint64, track *audio.Track, decodeErr error) error {
	s.mu.Lock()
	if gen != s.generation || s.closed {
		s.mu.Unlock()
		return ErrStale
	}

	if decodeErr != nil {
		s.status.Track = types.TrackError
		s.status.TrackError = decodeErr.Error()
		status := s.status
		s.mu.Unlock()
		s.publishStatus(status)
		return decodeErr
	}

	s.track = track
	s.envelope = audio.Reduce(track, s.chunks)
	s.status.Track = types.TrackReady
	s.status.Duration = track.Duration
	seek, loop := s.restoreSeek, s.restoreLoop
	s.restoreSeek, s.restoreLoop = nil, nil
	status := s.status
	s.clock.Load(track.Duration)
	s.viewport.SetDuration(track.Duration)
	if seek != nil {
		s.clock.Seek(*seek)
	}
	if loop != nil {
		s.selection.Set(*loop)
	}
	s.mu.Unlock()

	s.publishStatus(status)

	logger.Infof("Session %s decoded %s: %.2fs at %d Hz", s.id, track.Name, track.Duration, track.SampleRate)
	return nil
}

func (s *Session) commitSpectral(gen uint64, m *spectral.Matrix, fetchErr error) error {
	s.mu.Lock()
	if gen != s.generation || s.closed {
		s.mu.Unlock()
		return ErrStale
	}

	if fetchErr != nil {
		s.status.Spectral = types.SpectralError
		s.status.SpectralError = fetchErr.Error()
	} else {
		s.matrix = m
		s.status.Spectral = types.SpectralReady
		s.status.FrameCount = m.FrameCount()
		s.status.BinCount = m.BinCount()
	}
	status := s.status
	s.mu.Unlock()

	if fetchErr != nil {
		logger.Warnf("Session %s spectral analysis failed: %v", s.id, fetchErr)
	}
	s.publishStatus(status)
	return nil
}

// SeekX seeks to the time under timeline pixel x
func (s *Session) SeekX(x float64) float64 {
	vs := s.viewport.State()
	return s.clock.Seek(vs.XToTime(vs.ClampX(x)))
}

// MoveSelection extends the drag in progress to pixel x
func (s *Session) MoveSelection(x float64) bool {
	return s.selection.Move(x, s.now())
}

// Rewind seeks back to the beginning of the track. The loop range is kept.
func (s *Session) Rewind() float64 {
	return s.clock.Seek(0)
}

// Resize records the measured size of the timeline and frequency panel
func (s *Session) Resize(width, height float64) {
	s.viewport.SetPixelWidth(width)
	s.visualizer.SetSize(width, height)
}

// AddMarker adds a marker at timestamp, or at the playhead when nil
func (s *Session) AddMarker(timestamp *float64, note string) (markers.Marker, error) {
	t := s.clock.CurrentTime()
	if timestamp != nil {
		t = *timestamp
	}
	m, err := s.markers.Add(t)
	if err != nil {
		return markers.Marker{}, err
	}
	if note != "" {
		return s.markers.UpdateNote(m.ID, note)
	}
	return m, nil
}

// Grid returns the second ticks for the current view
func (s *Session) Grid() []timeline.GridTick {
	return timeline.GridTicks(s.viewport.State())
}

// KeyGrid returns the piano key grid for the frequency panel
func (s *Session) KeyGrid() freqmap.KeyGrid {
	w, _ := s.visualizer.Size()
	return freqmap.BuildKeyGrid(s.visualizer.Params(), w)
}

// Info is the JSON view of a session
type Info struct {
	ID        string              `json:"id"`
	ProjectID string              `json:"projectId,omitempty"`
	Status    types.SessionStatus `json:"status"`
	Playback  timeline.Snapshot   `json:"playback"`
	View      timeline.ViewState  `json:"view"`
	Selection *timeline.Range     `json:"selection,omitempty"`
	Seeker    types.SeekerFrame   `json:"seeker"`
	Spectrum  types.SpectrumFrame `json:"spectrum"`
	Keys      float64             `json:"visibleKeys"`
	Markers   []markers.Marker    `json:"markers"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Info returns the current state of the session
func (s *Session) Info() Info {
	info := Info{
		ID:        s.id,
		ProjectID: s.ProjectID(),
		Status:    s.Status(),
		Playback:  s.clock.Snapshot(s.now()),
		View:      s.viewport.State(),
		Seeker:    s.seeker.Last(),
		Spectrum:  s.visualizer.LastFrame(),
		Keys:      s.visualizer.Keys().VisibleKeys(),
		Markers:   s.markers.List(),
		CreatedAt: s.createdAt,
	}
	if r, ok := s.selection.Range(); ok {
		info.Selection = &r
	}
	return info
}

// Close stops the frame loops, waits for pending marker saves and writes
// the view back to the project
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	projectID := s.projectID
	s.mu.Unlock()

	s.guard.Stop()
	s.seeker.Stop()
	s.visualizer.Stop()

	var errs []error
	if err := s.markers.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush markers: %w", err))
	}
	s.markers.Close()

	if projectID != "" && s.store != nil {
		if err := s.store.UpdateProjectView(ctx, projectID, s.View()); err != nil {
			errs = append(errs, fmt.Errorf("failed to save project view: %w", err))
		}
	}
	s.clock.Unload()

	logger.Infof("Session %s closed", s.id)
	return errors.Join(errs...)
}
