package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/redis-bulk-actions/internal/domain/bulk"
	"github.com/target/redis-bulk-actions/internal/domain/model"
	apperrors "github.com/target/redis-bulk-actions/internal/errors"
)

const testJobID = "5d1f4f8e-7a43-4c2b-9e61-0d7c4b0f6a11"

type fakeBulkActions struct {
	mu        sync.Mutex
	created   model.CreateBulkActionRequest
	createErr error
	overviews map[string]model.Overview
	jobs      map[string]*bulk.Job
	nodes     []model.NodeInfo
	nodesErr  error
	subscribe chan bulk.Channel
	unsubbed  chan struct{}
}

func newFakeBulkActions() *fakeBulkActions {
	return &fakeBulkActions{
		overviews: map[string]model.Overview{},
		jobs:      map[string]*bulk.Job{},
		subscribe: make(chan bulk.Channel, 1),
		unsubbed:  make(chan struct{}, 1),
	}
}

func (f *fakeBulkActions) Create(_ context.Context, req model.CreateBulkActionRequest) (model.Overview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = req
	if f.createErr != nil {
		return model.Overview{}, f.createErr
	}
	return model.Overview{ID: testJobID, DatabaseID: req.DatabaseID, Type: req.Type, Status: model.StatusRunning}, nil
}

func (f *fakeBulkActions) Overview(id string) (model.Overview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok {
		return job.Overview(), nil
	}
	ov, ok := f.overviews[id]
	if !ok {
		return model.Overview{}, apperrors.NotFoundf("bulk action %s not found", id)
	}
	return ov, nil
}

func (f *fakeBulkActions) List() []model.Overview {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Overview, 0, len(f.overviews))
	for _, ov := range f.overviews {
		out = append(out, ov)
	}
	return out
}

func (f *fakeBulkActions) Abort(_ context.Context, id string) (model.Overview, error) {
	ov, err := f.Overview(id)
	if err != nil {
		return model.Overview{}, err
	}
	if ov.Status.IsTerminal() {
		return model.Overview{}, apperrors.InvalidStatef("bulk action %s is already %s", id, ov.Status)
	}
	ov.Status = model.StatusAborted
	return ov, nil
}

func (f *fakeBulkActions) SubscribeToReport(id string, ch bulk.Channel) (*bulk.Job, error) {
	f.mu.Lock()
	job, ok := f.jobs[id]
	f.mu.Unlock()
	if !ok {
		return nil, apperrors.NotFoundf("bulk action %s not found", id)
	}
	job.SubscribeToReport(ch)
	f.subscribe <- ch
	return job, nil
}

func (f *fakeBulkActions) UnsubscribeFromReport(id string, ch bulk.Channel) {
	f.mu.Lock()
	job, ok := f.jobs[id]
	f.mu.Unlock()
	if ok {
		job.UnsubscribeFromReport(ch)
	}
	f.unsubbed <- struct{}{}
}

func (f *fakeBulkActions) NodeInfo(context.Context, string) ([]model.NodeInfo, error) {
	return f.nodes, f.nodesErr
}

func newTestJob(t *testing.T) *bulk.Job {
	t.Helper()
	job, err := bulk.NewJob(bulk.JobOptions{
		ID:             testJobID,
		DatabaseID:     "cache",
		Type:           model.ActionTypeDelete,
		ReportEnabled:  true,
		DebounceWindow: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(job.Close)
	return job
}

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestBulkActionHandlers_Create(t *testing.T) {
	svc := newFakeBulkActions()
	router := NewRouter(RouterServices{BulkActions: svc})

	rec := serve(t, router, http.MethodPost, "/api/databases/cache/bulk-actions",
		`{"type":"unlink","filter":{"match":"session:*","count":100},"generateReport":true}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "cache", svc.created.DatabaseID, "database comes from the path")
	assert.Equal(t, model.ActionTypeUnlink, svc.created.Type)
	assert.Equal(t, "session:*", svc.created.Filter.Match)
	assert.True(t, svc.created.GenerateReport)

	body := decodeBody(t, rec)
	assert.Equal(t, testJobID, body["id"])
	assert.Equal(t, "running", body["status"])
}

func TestBulkActionHandlers_CreateErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{name: "malformed json", body: `{"type":`, wantStatus: http.StatusBadRequest, wantCode: "invalid_json"},
		{name: "unknown field", body: `{"kind":"delete"}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_json"},
		{name: "unknown action type", body: `{"type":"flush"}`, wantStatus: http.StatusBadRequest, wantCode: "invalid_json"},
		{
			name:       "validation",
			body:       `{"type":"delete","id":"nope"}`,
			svcErr:     apperrors.ValidationField("id", "bulk action id must be a valid UUID"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation",
			wantField:  "id",
		},
		{
			name:       "duplicate id",
			body:       `{"type":"delete"}`,
			svcErr:     apperrors.Conflictf("bulk action %s already exists", testJobID),
			wantStatus: http.StatusConflict,
			wantCode:   "conflict",
		},
		{
			name:       "unknown database",
			body:       `{"type":"delete"}`,
			svcErr:     apperrors.NotFound("database cache is not configured"),
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "prepare failure",
			body:       `{"type":"delete"}`,
			svcErr:     apperrors.Wrapf(assert.AnError, apperrors.ErrCodeUnprocessable, "bulk action could not be prepared"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "unprocessable",
		},
		{
			name:       "database unreachable",
			body:       `{"type":"delete"}`,
			svcErr:     apperrors.Unavailablef("database %s is unreachable", "cache"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "unavailable",
		},
		{
			name:       "plain error is internal",
			body:       `{"type":"delete"}`,
			svcErr:     assert.AnError,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeBulkActions()
			svc.createErr = tt.svcErr
			router := NewRouter(RouterServices{BulkActions: svc})

			rec := serve(t, router, http.MethodPost, "/api/databases/cache/bulk-actions", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantCode, body["error"])
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, body["field"])
			} else {
				assert.NotContains(t, body, "field")
			}
			if tt.wantCode == "internal" {
				assert.NotContains(t, body["message"], assert.AnError.Error())
			}
		})
	}
}

func TestBulkActionHandlers_GetAndProjection(t *testing.T) {
	svc := newFakeBulkActions()
	svc.overviews[testJobID] = model.Overview{
		ID:       testJobID,
		Status:   model.StatusRunning,
		Progress: model.Progress{Total: 100, Scanned: 40},
		Summary:  model.SummaryOverview{Processed: 40, Succeeded: 38, Failed: 2},
	}
	router := NewRouter(RouterServices{BulkActions: svc})

	tests := []struct {
		name       string
		target     string
		wantStatus int
		check      func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:       "full overview",
			target:     "/api/bulk-actions/" + testJobID,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decodeBody(t, rec)
				assert.Equal(t, testJobID, body["id"])
			},
		},
		{
			name:       "projected field",
			target:     "/api/bulk-actions/" + testJobID + "?query=summary.failed",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.JSONEq(t, `2`, rec.Body.String())
			},
		},
		{
			name:       "projected object",
			target:     "/api/bulk-actions/" + testJobID + "?query=" + "%7Bstatus%3A+status%2C+scanned%3A+progress.scanned%7D",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.JSONEq(t, `{"status":"running","scanned":40}`, rec.Body.String())
			},
		},
		{
			name:       "invalid expression",
			target:     "/api/bulk-actions/" + testJobID + "?query=summary.%5B",
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "invalid_query", decodeBody(t, rec)["error"])
			},
		},
		{
			name:       "unknown id",
			target:     "/api/bulk-actions/missing",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, router, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.check != nil {
				tt.check(t, rec)
			}
		})
	}
}

func TestBulkActionHandlers_ListAbortNodes(t *testing.T) {
	svc := newFakeBulkActions()
	svc.overviews[testJobID] = model.Overview{ID: testJobID, Status: model.StatusRunning}
	svc.overviews["done"] = model.Overview{ID: "done", Status: model.StatusCompleted}
	svc.nodes = []model.NodeInfo{{Addr: "10.0.0.1:6379", Keys: 12}}
	router := NewRouter(RouterServices{BulkActions: svc})

	rec := serve(t, router, http.MethodGet, "/api/bulk-actions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["items"], 2)

	rec = serve(t, router, http.MethodDelete, "/api/bulk-actions/"+testJobID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aborted", decodeBody(t, rec)["status"])

	rec = serve(t, router, http.MethodDelete, "/api/bulk-actions/done", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", decodeBody(t, rec)["error"])

	rec = serve(t, router, http.MethodGet, "/api/databases/cache/nodes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[{"addr":"10.0.0.1:6379","keys":12}]}`, rec.Body.String())

	svc.nodesErr = apperrors.Unavailablef("database %s is unreachable", "cache")
	rec = serve(t, router, http.MethodGet, "/api/databases/cache/nodes", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBulkActionHandlers_ReportStream(t *testing.T) {
	svc := newFakeBulkActions()
	job := newTestJob(t)
	svc.jobs[testJobID] = job
	router := NewRouter(RouterServices{BulkActions: svc})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/bulk-actions/"+testJobID+"/report", nil)

	served := make(chan struct{})
	go func() {
		defer close(served)
		router.ServeHTTP(rec, req)
	}()

	select {
	case <-svc.subscribe:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not subscribe")
	}

	job.Abort()

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("report stream did not end on report:complete")
	}
	<-svc.unsubbed

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: report:complete\n")
	assert.Contains(t, rec.Body.String(), `"status":"aborted"`)
}

func TestBulkActionHandlers_ReportStreamFinishedJob(t *testing.T) {
	svc := newFakeBulkActions()
	job := newTestJob(t)
	job.Abort()
	svc.jobs[testJobID] = job
	router := NewRouter(RouterServices{BulkActions: svc})

	rec := serve(t, router, http.MethodGet, "/api/bulk-actions/"+testJobID+"/report", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "event: report:complete"))
}

func TestBulkActionHandlers_ReportStreamUnknown(t *testing.T) {
	router := NewRouter(RouterServices{BulkActions: newFakeBulkActions()})
	rec := serve(t, router, http.MethodGet, "/api/bulk-actions/missing/report", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeOverviewSubscriber struct {
	ch         chan model.Overview
	unsubbed   chan struct{}
	subscribed chan struct{}
}

func (f *fakeOverviewSubscriber) Subscribe(string) (func(), <-chan model.Overview) {
	close(f.subscribed)
	return func() { close(f.unsubbed) }, f.ch
}

func TestBulkActionHandlers_OverviewStream(t *testing.T) {
	svc := newFakeBulkActions()
	svc.overviews[testJobID] = model.Overview{ID: testJobID, Status: model.StatusRunning}
	subs := &fakeOverviewSubscriber{
		ch:         make(chan model.Overview, 2),
		unsubbed:   make(chan struct{}),
		subscribed: make(chan struct{}),
	}
	router := NewRouter(RouterServices{BulkActions: svc, Overviews: subs})

	subs.ch <- model.Overview{ID: testJobID, Status: model.StatusRunning, Progress: model.Progress{Scanned: 5}}
	subs.ch <- model.Overview{ID: testJobID, Status: model.StatusCompleted}

	rec := serve(t, router, http.MethodGet, "/api/bulk-actions/"+testJobID+"/overview/stream", "")

	<-subs.unsubbed
	assert.Equal(t, 3, strings.Count(rec.Body.String(), "event: overview\n"))
	events := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	assert.Contains(t, events[len(events)-1], `"status":"completed"`)
}

func TestBulkActionHandlers_OverviewStreamTerminal(t *testing.T) {
	svc := newFakeBulkActions()
	svc.overviews[testJobID] = model.Overview{ID: testJobID, Status: model.StatusFailed, Error: "boom"}
	subs := &fakeOverviewSubscriber{
		ch:         make(chan model.Overview),
		unsubbed:   make(chan struct{}),
		subscribed: make(chan struct{}),
	}
	router := NewRouter(RouterServices{BulkActions: svc, Overviews: subs})

	rec := serve(t, router, http.MethodGet, "/api/bulk-actions/"+testJobID+"/overview/stream", "")

	assert.Equal(t, 1, strings.Count(rec.Body.String(), "event: overview\n"))
	assert.Contains(t, rec.Body.String(), `"error":"boom"`)
}

func TestBulkActionHandlers_OverviewStreamDisabled(t *testing.T) {
	svc := newFakeBulkActions()
	svc.overviews[testJobID] = model.Overview{ID: testJobID, Status: model.StatusRunning}
	router := NewRouter(RouterServices{BulkActions: svc})

	rec := serve(t, router, http.MethodGet, "/api/bulk-actions/"+testJobID+"/overview/stream", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("bulk_actions_running 0\n"))
	})
	router := NewRouter(RouterServices{Metrics: metrics})

	rec := serve(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, router, http.MethodHead, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, "bulk_actions_running 0\n", rec.Body.String())

	rec = serve(t, router, http.MethodGet, "/api/bulk-actions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "api is not mounted without a service")
}
