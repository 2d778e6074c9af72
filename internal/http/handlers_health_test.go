package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		method   string
		wantBody string
	}{
		{method: http.MethodGet, wantBody: healthResponse},
		{method: http.MethodHead, wantBody: ""},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			healthHandler(rec, httptest.NewRequest(tt.method, "/healthz", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected content-type application/json, got %q", ct)
			}
			if got := rec.Body.String(); got != tt.wantBody {
				t.Fatalf("unexpected body: %q", got)
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name       string
		check      ReadinessCheck
		wantStatus int
		wantBody   string
	}{
		{name: "no check", wantStatus: http.StatusOK, wantBody: healthResponse},
		{
			name:       "check passes",
			check:      func(context.Context) error { return nil },
			wantStatus: http.StatusOK,
			wantBody:   healthResponse,
		},
		{
			name:       "check fails",
			check:      func(context.Context) error { return errors.New("ping service redis: connection refused") },
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"unavailable","error":"ping service redis: connection refused"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			readyHandler(tt.check, nil)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestReadyHandlerHasDeadline(t *testing.T) {
	var hadDeadline bool
	check := func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	}
	readyHandler(check, nil)(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.True(t, hadDeadline)
}
