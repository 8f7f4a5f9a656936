package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"waveanalyzer/logger"
	"waveanalyzer/session"
	"waveanalyzer/types"
)

// Queue errors
var (
	ErrQueueFull    = errors.New("analysis queue is full")
	ErrQueueStopped = errors.New("analysis queue stopped")
)

// TrackLoader is the part of a session a job drives. The ticket is taken
// when the job is queued so uploads replace each other in upload order.
type TrackLoader interface {
	ID() string
	ReserveLoad() uint64
	LoadReserved(ctx context.Context, ticket uint64, name string, data []byte) error
}

// Publisher receives job status updates
type Publisher interface {
	Publish(msg types.FrameMessage)
}

// JobQueue interface defines the methods for managing analysis jobs
type JobQueue interface {
	Start()
	Stop()
	AddJob(loader TrackLoader, filename, path string) (*types.AnalysisJob, error)
	GetJob(id string) (*types.AnalysisJob, bool)
	GetAllJobs() []*types.AnalysisJob
	CancelJob(id string) bool
	SetJobStatus(id string, status types.JobStatus, errorMsg string)
}

type queuedJob struct {
	id     string
	loader TrackLoader
	ticket uint64
	path   string
}

// jobQueue loads uploaded tracks into sessions on a small worker pool
type jobQueue struct {
	jobs       map[string]*types.AnalysisJob
	queue      chan queuedJob
	activeJobs map[string]*types.AnalysisJob
	mu         sync.RWMutex
	maxWorkers int
	timeout    time.Duration
	hub        Publisher

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// NewJobQueue creates a new job queue. Each job is bounded by timeout.
func NewJobQueue(maxWorkers int, timeout time.Duration, hub Publisher) JobQueue {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &jobQueue{
		jobs:       make(map[string]*types.AnalysisJob),
		queue:      make(chan queuedJob, 100), // Buffer for 100 jobs
		activeJobs: make(map[string]*types.AnalysisJob),
		maxWorkers: maxWorkers,
		timeout:    timeout,
		hub:        hub,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// AddJob queues loading the file at path into loader
func (jq *jobQueue) AddJob(loader TrackLoader, filename, path string) (*types.AnalysisJob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", filename, err)
	}

	jq.mu.Lock()
	if jq.stopped {
		jq.mu.Unlock()
		return nil, ErrQueueStopped
	}

	job := &types.AnalysisJob{
		ID:        uuid.New().String(),
		SessionID: loader.ID(),
		Filename:  filename,
		Size:      info.Size(),
		Status:    types.JobStatusQueued,
		CreatedAt: time.Now(),
	}
	qj := queuedJob{id: job.ID, loader: loader, ticket: loader.ReserveLoad(), path: path}
	select {
	case jq.queue <- qj:
	default:
		jq.mu.Unlock()
		return nil, ErrQueueFull
	}
	jq.jobs[job.ID] = job
	snapshot := *job
	jq.mu.Unlock()

	jq.broadcast(snapshot)
	return &snapshot, nil
}

// GetJob retrieves a copy of a job by ID
func (jq *jobQueue) GetJob(id string) (*types.AnalysisJob, bool) {
	jq.mu.RLock()
	defer jq.mu.RUnlock()
	job, exists := jq.jobs[id]
	if !exists {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// GetAllJobs returns all jobs, newest first
func (jq *jobQueue) GetAllJobs() []*types.AnalysisJob {
	jq.mu.RLock()
	jobs := make([]*types.AnalysisJob, 0, len(jq.jobs))
	for _, job := range jq.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	jq.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs
}

// CancelJob cancels a queued job
func (jq *jobQueue) CancelJob(id string) bool {
	jq.mu.RLock()
	job, exists := jq.jobs[id]
	queued := exists && job.Status == types.JobStatusQueued
	jq.mu.RUnlock()

	if !queued {
		return false
	}
	jq.SetJobStatus(id, types.JobStatusCancelled, "")
	return true
}

// SetJobStatus updates job status and broadcasts it to the job's session
func (jq *jobQueue) SetJobStatus(id string, status types.JobStatus, errorMsg string) {
	jq.mu.Lock()
	job, exists := jq.jobs[id]
	if !exists {
		jq.mu.Unlock()
		return
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}

	now := time.Now()
	if status == types.JobStatusDecoding && job.StartedAt == nil {
		job.StartedAt = &now
		jq.activeJobs[id] = job
	} else if job.Finished() {
		job.CompletedAt = &now
		delete(jq.activeJobs, id)
	}
	snapshot := *job
	jq.mu.Unlock()

	jq.broadcast(snapshot)
}

func (jq *jobQueue) broadcast(job types.AnalysisJob) {
	if jq.hub == nil {
		return
	}
	jq.hub.Publish(types.FrameMessage{
		SessionID: job.SessionID,
		Type:      types.MessageJob,
		Job:       &job,
		Message:   string(job.Status),
		Timestamp: time.Now(),
	})
}

// Start begins processing jobs
func (jq *jobQueue) Start() {
	for i := 0; i < jq.maxWorkers; i++ {
		jq.wg.Add(1)
		go jq.worker()
	}
}

// Stop cancels running jobs and waits for the workers
func (jq *jobQueue) Stop() {
	jq.mu.Lock()
	if !jq.stopped {
		jq.stopped = true
		jq.cancel()
		close(jq.queue)
	}
	jq.mu.Unlock()
	jq.wg.Wait()
}

// worker processes jobs from the queue
func (jq *jobQueue) worker() {
	defer jq.wg.Done()

	for qj := range jq.queue {
		job, ok := jq.GetJob(qj.id)
		if !ok || job.Status == types.JobStatusCancelled {
			continue
		}
		if jq.ctx.Err() != nil {
			jq.SetJobStatus(qj.id, types.JobStatusCancelled, "")
			continue
		}

		jq.SetJobStatus(qj.id, types.JobStatusDecoding, "")
		err := jq.process(qj)

		switch {
		case err == nil:
			jq.SetJobStatus(qj.id, types.JobStatusReady, "")
			logger.Infof("Job %s completed successfully", qj.id)
		case errors.Is(err, session.ErrStale):
			jq.SetJobStatus(qj.id, types.JobStatusStale, "superseded by a newer track")
			logger.Infof("Job %s superseded", qj.id)
		case errors.Is(err, session.ErrClosed), errors.Is(err, context.Canceled):
			jq.SetJobStatus(qj.id, types.JobStatusCancelled, err.Error())
		default:
			jq.SetJobStatus(qj.id, types.JobStatusFailed, err.Error())
			logger.Warnf("Job %s failed: %v", qj.id, err)
		}
	}
}

// process reads the stored upload and loads it into the session
func (jq *jobQueue) process(qj queuedJob) error {
	data, err := os.ReadFile(qj.path)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	ctx := jq.ctx
	if jq.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, jq.timeout)
		defer cancel()
	}

	job, _ := jq.GetJob(qj.id)
	return qj.loader.LoadReserved(ctx, qj.ticket, job.Filename, data)
}
