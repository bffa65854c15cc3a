package server

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guiyumin/streamscribe/internal/core/extractor"
	"github.com/guiyumin/streamscribe/internal/core/logging"
	"github.com/guiyumin/streamscribe/internal/core/pipeline"
)

// JobStatus represents the current state of a transcription job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

const (
	maxJobLog       = 50
	defaultMaxQueue = 100
	jobRetention    = time.Hour
	cleanupInterval = 10 * time.Minute
)

var (
	// ErrQueueFull is returned by AddJob when no more jobs can wait.
	ErrQueueFull = errors.New("job queue is full")
	// ErrQueueStopped is returned by AddJob after Stop.
	ErrQueueStopped = errors.New("job queue is stopped")
)

// Job is one batch of inputs submitted over the API. A job completes even
// when some of its items fail; Failed status means the batch itself could
// not run.
type Job struct {
	ID        string              `json:"id"`
	Inputs    []string            `json:"inputs"`
	Status    JobStatus           `json:"status"`
	Log       []string            `json:"log"`
	Results   []*extractor.Result `json:"results,omitempty"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Error     string              `json:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`

	// Internal fields (not serialized)
	cancel context.CancelFunc `json:"-"`
	ctx    context.Context    `json:"-"`
}

func (j *Job) finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCancelled
}

// RunFunc processes a job's inputs, reporting progress lines to sink.
type RunFunc func(ctx context.Context, reqs []extractor.Request, sink pipeline.Sink) (*pipeline.Summary, error)

// JobQueue runs jobs one at a time, in submission order.
type JobQueue struct {
	jobs          map[string]*Job
	mu            sync.RWMutex
	queue         chan *Job
	runFn         RunFunc
	log           *logging.Logger
	wg            sync.WaitGroup
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopped       bool
	now           func() time.Time
}

// NewJobQueue creates a queue holding at most maxQueued waiting jobs.
func NewJobQueue(maxQueued int, runFn RunFunc, log *logging.Logger) *JobQueue {
	if maxQueued <= 0 {
		maxQueued = defaultMaxQueue
	}
	if log == nil {
		log = logging.Discard()
	}
	return &JobQueue{
		jobs:        make(map[string]*Job),
		queue:       make(chan *Job, maxQueued),
		runFn:       runFn,
		log:         log,
		stopCleanup: make(chan struct{}),
		now:         time.Now,
	}
}

// Start begins the worker and the cleanup routine
func (jq *JobQueue) Start() {
	jq.wg.Add(1)
	go jq.worker()

	jq.cleanupTicker = time.NewTicker(cleanupInterval)
	go jq.cleanupLoop()
}

// Stop cancels queued and running jobs and waits for the worker to exit.
func (jq *JobQueue) Stop() {
	jq.mu.Lock()
	if jq.stopped {
		jq.mu.Unlock()
		return
	}
	jq.stopped = true
	for _, job := range jq.jobs {
		if !job.finished() {
			job.cancel()
		}
	}
	// AddJob sends under mu, so nothing is sending once stopped is set
	close(jq.queue)
	jq.mu.Unlock()

	close(jq.stopCleanup)
	if jq.cleanupTicker != nil {
		jq.cleanupTicker.Stop()
	}
	jq.wg.Wait()
}

func (jq *JobQueue) worker() {
	defer jq.wg.Done()

	for job := range jq.queue {
		jq.processJob(job)
	}
}

func (jq *JobQueue) processJob(job *Job) {
	if job.ctx.Err() != nil {
		// cancelled while waiting
		return
	}
	jq.setStatus(job.ID, JobStatusRunning, "")

	reqs := make([]extractor.Request, len(job.Inputs))
	for i, in := range job.Inputs {
		reqs[i] = extractor.ParseInput(in)
	}
	sink := func(msg string) { jq.appendLog(job.ID, msg) }

	sum, err := jq.runFn(job.ctx, reqs, sink)
	jq.mu.Lock()
	defer jq.mu.Unlock()
	if sum != nil {
		job.Results = sum.Items
		job.Succeeded = sum.Succeeded
		job.Failed = sum.Failed
	}
	job.UpdatedAt = jq.now()
	switch {
	case job.ctx.Err() != nil:
		job.Status = JobStatusCancelled
		job.Error = "cancelled by user"
	case err != nil:
		job.Status = JobStatusFailed
		job.Error = err.Error()
		jq.log.Error("job failed", "id", job.ID, "err", err)
	default:
		job.Status = JobStatusCompleted
		jq.log.Info("job completed", "id", job.ID, "succeeded", job.Succeeded, "failed", job.Failed)
	}
}

func (jq *JobQueue) cleanupLoop() {
	for {
		select {
		case <-jq.cleanupTicker.C:
			jq.cleanupOldJobs()
		case <-jq.stopCleanup:
			return
		}
	}
}

func (jq *JobQueue) cleanupOldJobs() {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	cutoff := jq.now().Add(-jobRetention)
	for id, job := range jq.jobs {
		if job.finished() && job.UpdatedAt.Before(cutoff) {
			delete(jq.jobs, id)
		}
	}
}

// ClearHistory removes all completed, failed, and cancelled jobs
func (jq *JobQueue) ClearHistory() int {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	count := 0
	for id, job := range jq.jobs {
		if job.finished() {
			delete(jq.jobs, id)
			count++
		}
	}
	return count
}

// RemoveJob removes a single finished job by ID
func (jq *JobQueue) RemoveJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok || !job.finished() {
		return false
	}
	delete(jq.jobs, id)
	return true
}

// AddJob creates and queues a job for inputs
func (jq *JobQueue) AddJob(inputs []string) (*Job, error) {
	ctx, cancel := context.WithCancel(context.Background())
	now := jq.now()
	job := &Job{
		ID:        uuid.NewString(),
		Inputs:    append([]string(nil), inputs...),
		Status:    JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		ctx:       ctx,
		cancel:    cancel,
	}

	jq.mu.Lock()
	defer jq.mu.Unlock()
	if jq.stopped {
		cancel()
		return nil, ErrQueueStopped
	}

	select {
	case jq.queue <- job:
		jq.jobs[job.ID] = job
		jq.log.Info("job queued", "id", job.ID, "inputs", len(inputs))
		return job.copy(), nil
	default:
		cancel()
		return nil, ErrQueueFull
	}
}

// GetJob returns a copy of the job, or nil
func (jq *JobQueue) GetJob(id string) *Job {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	if job, ok := jq.jobs[id]; ok {
		return job.copy()
	}
	return nil
}

// GetAllJobs returns copies of every job, oldest first
func (jq *JobQueue) GetAllJobs() []*Job {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	jobs := make([]*Job, 0, len(jq.jobs))
	for _, job := range jq.jobs {
		jobs = append(jobs, job.copy())
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].CreatedAt.Before(jobs[k].CreatedAt) })
	return jobs
}

// CancelJob cancels a queued or running job
func (jq *JobQueue) CancelJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok || job.finished() {
		return false
	}

	job.cancel()
	if job.Status == JobStatusQueued {
		job.Status = JobStatusCancelled
		job.Error = "cancelled by user"
	}
	job.UpdatedAt = jq.now()
	return true
}

func (jq *JobQueue) setStatus(id string, status JobStatus, errMsg string) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if job, ok := jq.jobs[id]; ok {
		job.Status = status
		if errMsg != "" {
			job.Error = errMsg
		}
		job.UpdatedAt = jq.now()
	}
}

func (jq *JobQueue) appendLog(id, msg string) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if job, ok := jq.jobs[id]; ok {
		job.Log = append(job.Log, msg)
		if len(job.Log) > maxJobLog {
			job.Log = job.Log[len(job.Log)-maxJobLog:]
		}
		job.UpdatedAt = jq.now()
	}
}

func (j *Job) copy() *Job {
	c := *j
	c.Inputs = append([]string(nil), j.Inputs...)
	c.Log = append([]string(nil), j.Log...)
	c.Results = append([]*extractor.Result(nil), j.Results...)
	return &c
}
