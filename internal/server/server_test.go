package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guiyumin/streamscribe/internal/core/config"
	"github.com/guiyumin/streamscribe/internal/core/errs"
	"github.com/guiyumin/streamscribe/internal/core/extractor"
	"github.com/guiyumin/streamscribe/internal/core/pipeline"
)

// fakeRun succeeds for URLs and fails for everything else.
func fakeRun(ctx context.Context, reqs []extractor.Request, sink pipeline.Sink) (*pipeline.Summary, error) {
	sum := &pipeline.Summary{Total: len(reqs)}
	for _, r := range reqs {
		sink("processing " + r.Input())
		if r.URL != "" {
			sum.Add(&extractor.Result{Success: true, Input: r.Input(), Platform: extractor.KindYouTube,
				Method: extractor.MethodSubtitle, TranscriptPath: "/out/a.txt"})
		} else {
			sum.Add(extractor.Failed(r, extractor.KindLocal, "", "",
				errs.New(errs.KindUnsupportedInput, "local", "file does not exist: %s", r.Path)))
		}
	}
	return sum, nil
}

type apiResponse struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func do(t *testing.T, h http.Handler, method, path string, body any, header map[string]string) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func newTestServer(t *testing.T, apiKey string, run RunFunc) *Server {
	cfg := config.DefaultConfig()
	cfg.Language = "en"
	cfg.Server.APIKey = apiKey
	s := NewServer(cfg, run, nil)
	s.jobQueue.Start()
	t.Cleanup(s.jobQueue.Stop)
	return s
}

func waitForStatus(t *testing.T, jq *JobQueue, id string, want JobStatus) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		job = jq.GetJob(id)
		return job != nil && job.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "secret", fakeRun)
	code, resp := do(t, s.Handler(), http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"status":"ok"`)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, "secret", fakeRun)
	code, _ := do(t, s.Handler(), http.MethodGet, "/api/jobs", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = do(t, s.Handler(), http.MethodGet, "/api/jobs", nil, map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, code)
}

func TestCreateJobRunsAndReportsItems(t *testing.T) {
	s := newTestServer(t, "", fakeRun)
	code, resp := do(t, s.Handler(), http.MethodPost, "/api/jobs",
		JobRequest{Inputs: []string{"https://youtu.be/dQw4w9WgXcQ", "/missing.mp3"}}, nil)
	require.Equal(t, http.StatusAccepted, code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	require.NotEmpty(t, created.ID)

	job := waitForStatus(t, s.jobQueue, created.ID, JobStatusCompleted)
	assert.Equal(t, 1, job.Succeeded)
	assert.Equal(t, 1, job.Failed)
	assert.Equal(t, []string{"processing https://youtu.be/dQw4w9WgXcQ", "processing /missing.mp3"}, job.Log)

	code, resp = do(t, s.Handler(), http.MethodGet, "/api/jobs/"+created.ID, nil, nil)
	require.Equal(t, http.StatusOK, code)
	var view struct {
		Results []struct {
			Success   bool   `json:"success"`
			Error     string `json:"error"`
			ErrorKind string `json:"error_kind"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	require.Len(t, view.Results, 2)
	assert.True(t, view.Results[0].Success)
	assert.Equal(t, "unsupported_input", view.Results[1].ErrorKind)
	assert.Contains(t, view.Results[1].Error, "/missing.mp3")
}

func TestCreateJobRejectsEmptyInputs(t *testing.T) {
	s := newTestServer(t, "", fakeRun)
	code, _ := do(t, s.Handler(), http.MethodPost, "/api/jobs", JobRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnknownJob(t *testing.T) {
	s := newTestServer(t, "", fakeRun)
	code, resp := do(t, s.Handler(), http.MethodGet, "/api/jobs/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "job not found", resp.Message)

	code, _ = do(t, s.Handler(), http.MethodDelete, "/api/jobs/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCancelRunningJob(t *testing.T) {
	started := make(chan struct{})
	blocking := func(ctx context.Context, reqs []extractor.Request, sink pipeline.Sink) (*pipeline.Summary, error) {
		close(started)
		<-ctx.Done()
		return &pipeline.Summary{Total: len(reqs)}, nil
	}
	s := newTestServer(t, "", blocking)

	job, err := s.jobQueue.AddJob([]string{"https://youtu.be/dQw4w9WgXcQ"})
	require.NoError(t, err)
	<-started

	code, _ := do(t, s.Handler(), http.MethodDelete, "/api/jobs/"+job.ID, nil, nil)
	assert.Equal(t, http.StatusOK, code)
	waitForStatus(t, s.jobQueue, job.ID, JobStatusCancelled)

	code, resp := do(t, s.Handler(), http.MethodDelete, "/api/jobs/"+job.ID, nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "job removed", resp.Message)
	assert.Nil(t, s.jobQueue.GetJob(job.ID))
}

func TestJobFailsOnConfigError(t *testing.T) {
	broken := func(ctx context.Context, reqs []extractor.Request, sink pipeline.Sink) (*pipeline.Summary, error) {
		return &pipeline.Summary{Total: len(reqs)}, errs.New(errs.KindConfig, "whisper executable", "whisper-ctranslate2 not found in PATH")
	}
	s := newTestServer(t, "", broken)
	job, err := s.jobQueue.AddJob([]string{"/a.mp3"})
	require.NoError(t, err)

	done := waitForStatus(t, s.jobQueue, job.ID, JobStatusFailed)
	assert.Contains(t, done.Error, "not found in PATH")
	assert.Equal(t, 1, s.jobQueue.ClearHistory())
}

func TestQueueFull(t *testing.T) {
	jq := NewJobQueue(1, fakeRun, nil)
	// worker not started, so the single slot stays taken
	_, err := jq.AddJob([]string{"a"})
	require.NoError(t, err)
	_, err = jq.AddJob([]string{"b"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Len(t, jq.GetAllJobs(), 1)
}

func TestAddJobAfterStop(t *testing.T) {
	jq := NewJobQueue(1, fakeRun, nil)
	jq.Start()
	jq.Stop()
	jq.Stop()

	var err error
	require.NotPanics(t, func() {
		_, err = jq.AddJob([]string{"https://youtu.be/dQw4w9WgXcQ"})
	})
	assert.ErrorIs(t, err, ErrQueueStopped)
	assert.Empty(t, jq.GetAllJobs())
}

func TestCreateJobDuringShutdown(t *testing.T) {
	s := NewServer(config.DefaultConfig(), fakeRun, nil)
	s.jobQueue.Start()
	require.NoError(t, s.Stop(context.Background()))

	code, resp := do(t, s.Handler(), http.MethodPost, "/api/jobs",
		JobRequest{Inputs: []string{"https://youtu.be/dQw4w9WgXcQ"}}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, ErrQueueStopped.Error(), resp.Message)
}
