package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/JuniperCAM/internal/logging"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job represents an asynchronous program normalization job.
type Job struct {
	ID          string             `json:"id"`
	Status      JobStatus          `json:"status"`
	Progress    int                `json:"progress"` // 0-100
	Result      *ProgramResult     `json:"result,omitempty"`
	Error       *APIError          `json:"error,omitempty"`
	CreatedAt   string             `json:"created_at"`
	UpdatedAt   string             `json:"updated_at"`
	CompletedAt string             `json:"completed_at,omitempty"`
	Request     NormalizeRequest   `json:"request"`
	ctx         context.Context    `json:"-"`
	cancel      context.CancelFunc `json:"-"`
}

// JobStore manages normalization jobs in memory. Accessors return
// snapshots so callers never observe a job mid-update.
type JobStore struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewJobStore creates a new job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
	}
}

// Create registers a pending job for a request.
func (s *JobStore) Create(req NormalizeRequest) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC().Format(time.RFC3339)

	job := &Job{
		ID:        uuid.New().String(),
		Status:    JobStatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
		Request:   req,
		ctx:       ctx,
		cancel:    cancel,
	}

	s.jobs[job.ID] = job
	return *job
}

// Get retrieves a snapshot of a job by ID.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return Job{}, false
	}
	return *job, true
}

// Update advances a job's status and progress. Updates against a job
// already in a terminal state are rejected, so a cancellation cannot be
// overwritten by the worker finishing afterwards.
func (s *JobStore) Update(id string, status JobStatus, progress int, result *ProgramResult, apiErr *APIError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.Status.terminal() {
		return fmt.Errorf("job %s already %s", id, job.Status)
	}

	job.Status = status
	job.Progress = progress
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	if result != nil {
		job.Result = result
	}
	if apiErr != nil {
		job.Error = apiErr
	}
	if status.terminal() {
		job.CompletedAt = job.UpdatedAt
	}

	return nil
}

// Cancel cancels a pending or running job.
func (s *JobStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.Status.terminal() {
		return fmt.Errorf("job cannot be cancelled (status: %s)", job.Status)
	}

	if job.cancel != nil {
		job.cancel()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	job.Status = JobStatusCancelled
	job.UpdatedAt = now
	job.CompletedAt = now

	return nil
}

// List returns snapshots of all jobs, newest first.
func (s *JobStore) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt != jobs[j].CreatedAt {
			return jobs[i].CreatedAt > jobs[j].CreatedAt
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// executeJob runs one normalization job to completion. Runs on its own
// goroutine; every state change is pushed to WebSocket subscribers.
func (s *Server) executeJob(id string) {
	job, ok := s.jobs.Get(id)
	if !ok {
		return
	}
	req := job.Request

	update := func(status JobStatus, progress int, result *ProgramResult, apiErr *APIError, message string) {
		if err := s.jobs.Update(id, status, progress, result, apiErr); err != nil {
			return
		}
		s.broadcastJob(id, status, progress, message)
		logging.JobEvent(id, string(status), "progress", progress)
	}

	update(JobStatusRunning, 10, nil, nil, "resolving dialect")

	n, err := s.normalizer(req.Dialect, req.Strict)
	if err != nil {
		update(JobStatusFailed, 100, nil, &APIError{Code: "UNKNOWN_DIALECT", Message: err.Error()}, err.Error())
		return
	}

	select {
	case <-job.ctx.Done():
		s.broadcastJob(id, JobStatusCancelled, job.Progress, "job cancelled")
		return
	default:
	}

	update(JobStatusRunning, 40, nil, nil, "normalizing program")

	result, err := s.normalizeProgram(n, req)
	s.recordRun(context.Background(), "api:job:"+id, req, result, err)
	if err != nil {
		update(JobStatusFailed, 100, nil, &APIError{
			Code:    normalizeErrorCode(err),
			Message: err.Error(),
			Details: errorDetails(err),
		}, err.Error())
		return
	}

	select {
	case <-job.ctx.Done():
		s.broadcastJob(id, JobStatusCancelled, job.Progress, "job cancelled")
		return
	default:
	}

	update(JobStatusCompleted, 100, result, nil, "completed")
}

// handleJobs handles GET /v1/jobs and POST /v1/jobs.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listJobsHandler(w, r)
	case http.MethodPost:
		s.createJobHandler(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
	}
}

func (s *Server) listJobsHandler(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobs.List()
	respondList(w, jobs, len(jobs))
}

func (s *Server) createJobHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNormalizeRequest(w, r, s.cfg.MaxRequestBytes)
	if !ok {
		return
	}
	if req.Program == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMS", "jobs normalize programs; use /v1/normalize for single blocks")
		return
	}
	if _, err := s.resolveDialect(req.Dialect); err != nil {
		respondError(w, http.StatusBadRequest, "UNKNOWN_DIALECT", err.Error())
		return
	}

	job := s.jobs.Create(req)
	logging.JobEvent(job.ID, "created")
	s.broadcastJob(job.ID, JobStatusPending, 0, "queued")

	go s.executeJob(job.ID)

	respond(w, http.StatusCreated, job)
}

// handleJobByID handles GET /v1/jobs/{id} and DELETE /v1/jobs/{id}.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Job ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getJobHandler(w, r, id)
	case http.MethodDelete:
		s.cancelJobHandler(w, r, id)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
	}
}

func (s *Server) getJobHandler(w http.ResponseWriter, r *http.Request, id string) {
	job, exists := s.jobs.Get(id)
	if !exists {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
		return
	}

	respond(w, http.StatusOK, job)
}

func (s *Server) cancelJobHandler(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.jobs.Cancel(id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "CANCEL_FAILED", err.Error())
		return
	}

	logging.JobEvent(id, string(JobStatusCancelled))
	s.broadcastJob(id, JobStatusCancelled, 0, "job cancelled")
	respond(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
}
