package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/image-scraper/pkg/models"
)

// JobStatus represents the current state of an import job
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job represents a background import job
type Job struct {
	ID          string               `json:"id"`
	Status      JobStatus            `json:"status"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at,omitempty"`
	TotalCount  int                  `json:"total_count"`
	Result      *models.ImportResult `json:"result,omitempty"`

	// Internal fields
	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager tracks background import jobs
type JobManager struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]*Job)}
}

// CreateJob registers a running job for a batch of total images
func (m *JobManager) CreateJob(total int) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:         uuid.New().String(),
		Status:     JobStatusRunning,
		StartedAt:  time.Now(),
		TotalCount: total,
		ctx:        ctx,
		cancel:     cancel,
	}
	m.jobs[job.ID] = job
	return job.snapshot()
}

// GetJob returns a copy of the job, or nil if unknown
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, exists := m.jobs[jobID]; exists {
		return job.snapshot()
	}
	return nil
}

// Finish records the batch result. A cancelled job keeps its status but still gets the partial result.
func (m *JobManager) Finish(jobID string, result models.ImportResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		job.Result = &result
		if job.Status == JobStatusRunning {
			job.Status = JobStatusCompleted
			job.CompletedAt = time.Now()
		}
		job.cancel()
	}
}

// CancelJob cancels a running job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists && job.Status == JobStatusRunning {
		job.cancel()
		job.Status = JobStatusCancelled
		job.CompletedAt = time.Now()
		return true
	}
	return false
}

// CancelAll cancels all running jobs
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Status == JobStatusRunning {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
}

// ListJobs returns copies of all jobs
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.snapshot())
	}
	return jobs
}

// GetContext returns the context the job's import runs under
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, exists := m.jobs[jobID]; exists {
		return job.ctx
	}
	return context.Background()
}

// snapshot copies the exported fields; callers must hold the lock
func (j *Job) snapshot() *Job {
	cp := *j
	cp.ctx, cp.cancel = nil, nil
	if j.Result != nil {
		r := *j.Result
		cp.Result = &r
	}
	return &cp
}
