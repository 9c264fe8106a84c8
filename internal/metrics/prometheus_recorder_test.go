package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStepDuration("stats", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncStepResult("stats", ResultSuccess)
	pr.IncStepResult("stats", ResultSuccess)
	pr.IncBuildOutcome(BuildOutcomeFailed)
	pr.AddPagesRendered(3)
	pr.AddPagesRendered(0)
	pr.SetDirtyPages(2)
	pr.IncEventApplied("page.changed")

	assert.InDelta(t, 2, testutil.ToFloat64(pr.stepResults.WithLabelValues("stats", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.buildOutcome.WithLabelValues("failed")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(pr.pagesRendered), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(pr.dirtyPages), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.events.WithLabelValues("page.changed")), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveStepDuration("x", time.Second)
		pr.IncBuildOutcome(BuildOutcomeSuccess)
		pr.SetDirtyPages(1)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncEventApplied("data.added")

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "press_events_applied_total")
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncBuildOutcome(BuildOutcomeSuccess)
	r.AddPagesRendered(1)
}
