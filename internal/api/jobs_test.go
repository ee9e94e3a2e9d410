package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// waitForJob polls until the job reaches a terminal state.
func waitForJob(t *testing.T, s *Server, id string) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, ok := s.jobs.Get(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		if job.Status.terminal() {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s still %s after 5s", id, job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestJobStoreCreateAndGet(t *testing.T) {
	store := NewJobStore()

	job := store.Create(NormalizeRequest{Program: "G21\n"})
	if job.ID == "" {
		t.Fatal("expected a job ID")
	}
	if job.Status != JobStatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}
	if job.Progress != 0 {
		t.Errorf("expected progress 0, got %d", job.Progress)
	}

	got, exists := store.Get(job.ID)
	if !exists {
		t.Fatal("expected job to exist")
	}
	if got.ID != job.ID || got.Request.Program != "G21\n" {
		t.Errorf("unexpected job: %+v", got)
	}

	if _, exists := store.Get("nonexistent"); exists {
		t.Error("expected nonexistent job to not exist")
	}
}

func TestJobStoreGetReturnsSnapshot(t *testing.T) {
	store := NewJobStore()
	job := store.Create(NormalizeRequest{Program: "G21\n"})

	snap, _ := store.Get(job.ID)
	if err := store.Update(job.ID, JobStatusRunning, 40, nil, nil); err != nil {
		t.Fatal(err)
	}

	if snap.Status != JobStatusPending {
		t.Error("snapshot mutated by a later update")
	}
	current, _ := store.Get(job.ID)
	if current.Status != JobStatusRunning || current.Progress != 40 {
		t.Errorf("update not applied: %+v", current)
	}
}

func TestJobStoreUpdateRejectsTerminal(t *testing.T) {
	store := NewJobStore()
	job := store.Create(NormalizeRequest{Program: "G21\n"})

	if err := store.Update(job.ID, JobStatusCompleted, 100, nil, nil); err != nil {
		t.Fatal(err)
	}

	// A worker finishing after cancellation must not resurrect the job.
	if err := store.Update(job.ID, JobStatusRunning, 50, nil, nil); err == nil {
		t.Error("expected update against a terminal job to fail")
	}
	if err := store.Cancel(job.ID); err == nil {
		t.Error("expected cancel of a completed job to fail")
	}

	got, _ := store.Get(job.ID)
	if got.Status != JobStatusCompleted {
		t.Errorf("terminal status overwritten: %s", got.Status)
	}
	if got.CompletedAt == "" {
		t.Error("expected a completion timestamp")
	}
}

func TestJobStoreCancel(t *testing.T) {
	store := NewJobStore()
	job := store.Create(NormalizeRequest{Program: "G21\n"})

	if err := store.Cancel(job.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, _ := store.Get(job.ID)
	if got.Status != JobStatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if got.CompletedAt == "" {
		t.Error("expected a completion timestamp")
	}

	if err := store.Cancel("nonexistent"); err == nil {
		t.Error("expected cancel of unknown job to fail")
	}
}

func TestJobStoreListOrdering(t *testing.T) {
	store := NewJobStore()
	for i := 0; i < 3; i++ {
		store.Create(NormalizeRequest{Program: "G21\n"})
	}

	jobs := store.List()
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	for i := 1; i < len(jobs); i++ {
		prev, cur := jobs[i-1], jobs[i]
		if prev.CreatedAt < cur.CreatedAt {
			t.Fatalf("jobs not newest-first: %s before %s", prev.CreatedAt, cur.CreatedAt)
		}
		if prev.CreatedAt == cur.CreatedAt && prev.ID >= cur.ID {
			t.Fatalf("equal-time jobs not ID-ordered: %s before %s", prev.ID, cur.ID)
		}
	}
	if store.Len() != 3 {
		t.Errorf("expected Len 3, got %d", store.Len())
	}
}

func TestCreateJobRunsToCompletion(t *testing.T) {
	s := newTestServer(t, Config{})

	req := postJSON(t, "/v1/jobs", NormalizeRequest{Program: "G21\nG1 X1 F5\n"})
	w := httptest.NewRecorder()
	s.handleJobs(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var created Job
	decodeInto(t, decodeResponse(t, w), &created)
	if created.Status != JobStatusPending {
		t.Errorf("expected pending in the create response, got %s", created.Status)
	}

	job := waitForJob(t, s, created.ID)
	if job.Status != JobStatusCompleted {
		t.Fatalf("expected completed, got %s (error: %+v)", job.Status, job.Error)
	}
	if job.Progress != 100 {
		t.Errorf("expected progress 100, got %d", job.Progress)
	}
	if job.Result == nil {
		t.Fatal("expected a result")
	}
	if job.Result.Commands != 2 || len(job.Result.Blocks) != 2 {
		t.Errorf("unexpected result: %d commands, %d blocks",
			job.Result.Commands, len(job.Result.Blocks))
	}

	// The completed job is also served over GET.
	getReq := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+created.ID, nil)
	getW := httptest.NewRecorder()
	s.handleJobByID(getW, getReq)
	if getW.Code != http.StatusOK {
		t.Errorf("get job: expected status 200, got %d", getW.Code)
	}
}

func TestCreateJobFailureReportsTypedError(t *testing.T) {
	s := newTestServer(t, Config{})

	req := postJSON(t, "/v1/jobs", NormalizeRequest{Program: "G2 G3 X1 F5\n"})
	w := httptest.NewRecorder()
	s.handleJobs(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}
	var created Job
	decodeInto(t, decodeResponse(t, w), &created)

	job := waitForJob(t, s, created.ID)
	if job.Status != JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.Error == nil || job.Error.Code != "MODAL_CONFLICT" {
		t.Errorf("expected MODAL_CONFLICT, got %+v", job.Error)
	}
	if job.Error.Details["line"] != 1 {
		t.Errorf("expected failing line in details, got %v", job.Error.Details)
	}
}

func TestCreateJobRequiresProgram(t *testing.T) {
	s := newTestServer(t, Config{})

	req := postJSON(t, "/v1/jobs", NormalizeRequest{Block: "G1 X1 F5"})
	w := httptest.NewRecorder()
	s.handleJobs(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	apiResp := decodeResponse(t, w)
	if apiResp.Error == nil || apiResp.Error.Code != "MISSING_PARAMS" {
		t.Errorf("expected MISSING_PARAMS, got %+v", apiResp.Error)
	}
	if s.jobs.Len() != 0 {
		t.Error("no job should be created for a rejected request")
	}
}

func TestCreateJobUnknownDialect(t *testing.T) {
	s := newTestServer(t, Config{})

	req := postJSON(t, "/v1/jobs", NormalizeRequest{Program: "G21\n", Dialect: "fanuc"})
	w := httptest.NewRecorder()
	s.handleJobs(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	apiResp := decodeResponse(t, w)
	if apiResp.Error == nil || apiResp.Error.Code != "UNKNOWN_DIALECT" {
		t.Errorf("expected UNKNOWN_DIALECT, got %+v", apiResp.Error)
	}
}

func TestListJobs(t *testing.T) {
	s := newTestServer(t, Config{})

	req := postJSON(t, "/v1/jobs", NormalizeRequest{Program: "G21\n"})
	w := httptest.NewRecorder()
	s.handleJobs(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", w.Code)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	listW := httptest.NewRecorder()
	s.handleJobs(listW, listReq)

	if listW.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", listW.Code)
	}
	apiResp := decodeResponse(t, listW)
	var jobs []Job
	decodeInto(t, apiResp, &jobs)
	if len(jobs) != 1 {
		t.Errorf("expected 1 job, got %d", len(jobs))
	}
	if apiResp.Meta == nil || apiResp.Meta.Total != 1 {
		t.Errorf("expected meta total 1, got %+v", apiResp.Meta)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/no-such-job", nil)
	w := httptest.NewRecorder()
	s.handleJobByID(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestJobByIDMissingID(t *testing.T) {
	s := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/", nil)
	w := httptest.NewRecorder()
	s.handleJobByID(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestCancelJob(t *testing.T) {
	s := newTestServer(t, Config{})

	// Created directly in the store, so no worker is racing the cancel.
	job := s.jobs.Create(NormalizeRequest{Program: "G21\n"})

	req := httptest.NewRequest(http.MethodDelete, "/v1/jobs/"+job.ID, nil)
	w := httptest.NewRecorder()
	s.handleJobByID(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	got, _ := s.jobs.Get(job.ID)
	if got.Status != JobStatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
}

func TestCancelJobNotFound(t *testing.T) {
	s := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodDelete, "/v1/jobs/no-such-job", nil)
	w := httptest.NewRecorder()
	s.handleJobByID(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestCancelCompletedJobFails(t *testing.T) {
	s := newTestServer(t, Config{})

	req := postJSON(t, "/v1/jobs", NormalizeRequest{Program: "G21\n"})
	w := httptest.NewRecorder()
	s.handleJobs(w, req)
	var created Job
	decodeInto(t, decodeResponse(t, w), &created)
	waitForJob(t, s, created.ID)

	delReq := httptest.NewRequest(http.MethodDelete, "/v1/jobs/"+created.ID, nil)
	delW := httptest.NewRecorder()
	s.handleJobByID(delW, delReq)

	if delW.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", delW.Code)
	}
	apiResp := decodeResponse(t, delW)
	if apiResp.Error == nil || apiResp.Error.Code != "CANCEL_FAILED" {
		t.Errorf("expected CANCEL_FAILED, got %+v", apiResp.Error)
	}
}

func TestJobsMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, Config{})

	req := httptest.NewRequest(http.MethodPut, "/v1/jobs", nil)
	w := httptest.NewRecorder()
	s.handleJobs(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/v1/jobs/some-id", nil)
	w = httptest.NewRecorder()
	s.handleJobByID(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}
