package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/curation-backend/internal/domain"
	curationmod "github.com/yungbote/curation-backend/internal/modules/curation"
	"github.com/yungbote/curation-backend/internal/platform/apierr"
	"github.com/yungbote/curation-backend/internal/platform/dbctx"
	"github.com/yungbote/curation-backend/internal/platform/logger"
	"github.com/yungbote/curation-backend/internal/services"
)

type fakeCuration struct {
	triggerErr error
	lastReq    services.TriggerRequest
	lastWait   bool
}

func (f *fakeCuration) Trigger(_ context.Context, req services.TriggerRequest, wait bool) (*services.TriggerResult, error) {
	f.lastReq, f.lastWait = req, wait
	if f.triggerErr != nil {
		return nil, f.triggerErr
	}
	if wait {
		return &services.TriggerResult{Success: true, TotalInserted: 3, TotalComponents: 4}, nil
	}
	return &services.TriggerResult{Success: true, JobID: "job-1", TotalComponents: 4}, nil
}

func (f *fakeCuration) Validate(_ context.Context, id uuid.UUID, req services.ValidateRequest, wait bool) (*services.ValidateResult, error) {
	return &services.ValidateResult{Success: true, JobID: id.String(), Summary: &curationmod.ValidationSummary{Total: req.Concurrency}}, nil
}

type fakeJobs struct {
	services.JobService
	job *types.JobRun
}

func (f *fakeJobs) GetByIDForRequestUser(_ dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	if f.job == nil || f.job.ID != id {
		return nil, fmt.Errorf("job %s: %w", id, apierr.ErrNotFound)
	}
	return f.job, nil
}

func newEngine(cur services.CurationService, jobs services.JobService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ch := NewCurationHandler(logger.NewNop(), cur)
	jh := NewJobHandler(jobs)
	r.POST("/api/curations/generate", ch.Generate)
	r.POST("/api/curations/:id/validate", ch.Validate)
	r.GET("/api/jobs/:id", jh.GetJob)
	r.GET("/healthcheck", NewHealthHandler(nil).HealthCheck)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const triggerBody = `{"curationId":"6f1c1a8e-6a8b-4a53-9d1e-1f1f7d0b0a11","components":[{"lessonId":"L1","componentType":"lectura"}]}`

func TestGenerateStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		path   string
		body   string
		status int
		code   string
	}{
		{name: "queued", path: "/api/curations/generate", body: triggerBody, status: http.StatusAccepted},
		{name: "inline", path: "/api/curations/generate?wait=true", body: triggerBody, status: http.StatusOK},
		{name: "malformed json", path: "/api/curations/generate", body: `{`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "invalid", err: fmt.Errorf("bad: %w", apierr.ErrInvalidArgument), path: "/api/curations/generate", body: triggerBody, status: http.StatusBadRequest, code: "invalid_argument"},
		{name: "locked", err: curationmod.ErrRunInProgress, path: "/api/curations/generate", body: triggerBody, status: http.StatusConflict, code: "conflict"},
		{name: "internal", err: fmt.Errorf("db down"), path: "/api/curations/generate", body: triggerBody, status: http.StatusInternalServerError, code: "generate_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cur := &fakeCuration{triggerErr: tc.err}
			rec := do(newEngine(cur, &fakeJobs{}), http.MethodPost, tc.path, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status: got %d want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if tc.code == "" {
				return
			}
			var env struct {
				Error struct {
					Message string `json:"message"`
					Code    string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if env.Error.Code != tc.code || env.Error.Message == "" {
				t.Fatalf("unexpected envelope: %+v", env)
			}
		})
	}
}

func TestGenerateResponseBody(t *testing.T) {
	cur := &fakeCuration{}
	rec := do(newEngine(cur, &fakeJobs{}), http.MethodPost, "/api/curations/generate", triggerBody)
	var res services.TriggerResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success || res.JobID != "job-1" || res.TotalInserted != 0 || res.TotalComponents != 4 {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if cur.lastWait || len(cur.lastReq.Components) != 1 || cur.lastReq.Components[0].ComponentType != "lectura" {
		t.Fatalf("request not forwarded: %+v wait=%v", cur.lastReq, cur.lastWait)
	}
}

func TestValidateAcceptsEmptyBody(t *testing.T) {
	r := newEngine(&fakeCuration{}, &fakeJobs{})
	id := uuid.New()
	rec := do(r, http.MethodPost, "/api/curations/"+id.String()+"/validate", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(r, http.MethodPost, "/api/curations/nope/validate", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/curations/"+id.String()+"/validate?wait=1", `{"concurrency":2}`); rec.Code != http.StatusOK {
		t.Fatalf("inline validate: status %d", rec.Code)
	}
}

func TestGetJob(t *testing.T) {
	job := &types.JobRun{ID: uuid.New(), JobType: curationmod.JobTypeGenerate, Status: types.JobStatusRunning, Progress: 40}
	r := newEngine(&fakeCuration{}, &fakeJobs{job: job})

	rec := do(r, http.MethodGet, "/api/jobs/"+job.ID.String(), "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"progress":40`) {
		t.Fatalf("get job: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(r, http.MethodGet, "/api/jobs/"+uuid.NewString(), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing job: status %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/jobs/x", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/healthcheck", ""); rec.Body.String() != "ok" {
		t.Fatalf("health: %q", rec.Body.String())
	}
}
