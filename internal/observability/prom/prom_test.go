package prom

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_ObserveLifecycle(t *testing.T) {
	m := New()

	m.ObserveStarted()
	m.ObserveStarted()
	assert.Contains(t, scrape(t, m), "bulk_actions_running 2")

	m.ObserveFinished("delete", "completed", 1.5, 40)
	m.ObserveFinished("delete", "aborted", 0, 0)

	body := scrape(t, m)
	assert.Contains(t, body, "bulk_actions_running 0")
	assert.Contains(t, body, `bulk_actions_total{status="completed",type="delete"} 1`)
	assert.Contains(t, body, `bulk_actions_total{status="aborted",type="delete"} 1`)
	assert.Contains(t, body, `bulk_action_keys_processed_total{type="delete"} 40`)
	assert.Contains(t, body, `bulk_action_duration_seconds_count{type="delete"} 1`)
}

func TestMetrics_NilSafe(_ *testing.T) {
	var m *Metrics
	m.ObserveStarted()
	m.ObserveFinished("delete", "failed", 1, 1)
}
