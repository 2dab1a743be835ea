package telemetry

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/braidworks/braid/core"
)

func TestMetricsCounters(t *testing.T) {
	m := New()

	m.RunStarted()
	m.RunStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.activeRuns))

	m.RunFinished("completed")
	m.RunFinished("failed")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("failed")))

	m.EventAdmitted(core.KindTaskBegin)
	m.EventAdmitted(core.KindContentDelta)
	m.EventAdmitted(core.KindContentDelta)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsTotal.WithLabelValues(string(core.KindContentDelta))))

	m.AddUsage("mock-1", core.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15})
	assert.Equal(t, 10.0, testutil.ToFloat64(m.tokensTotal.WithLabelValues("mock-1", "input")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.tokensTotal.WithLabelValues("mock-1", "output")))
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.RunStarted()
	m.ObserveStep("research", 50*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "braid_active_runs 1")
	assert.Contains(t, body, "braid_step_duration_seconds_count")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	m.RunStarted()
	m.RunFinished("completed")
	m.EventAdmitted(core.KindTaskEnd)
	m.ObserveStep("x", time.Second)
	m.AddUsage("m", core.Usage{})
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}
