package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics("pw_test")

	m.ObserveCommand("click", "succeeded", 120*time.Millisecond)
	m.ObserveCommand("click", "succeeded", 80*time.Millisecond)
	m.ObserveCommand("type", "failed", time.Second)
	m.ObserveResolution("cached-analysis")
	m.ObserveResolution("")
	m.ObserveScan(true, 0)
	m.ObserveScan(false, 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("click", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("type", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutionsTotal.WithLabelValues("none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scansTotal.WithLabelValues("cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scansTotal.WithLabelValues("fresh")))

	t.Run("handler exposes namespaced series", func(t *testing.T) {
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		body, err := io.ReadAll(rec.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "pw_test_commands_total")
		assert.Contains(t, string(body), `strategy="cached-analysis"`)
	})
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCommand("click", "failed", time.Second)
		m.ObserveResolution("x")
		m.ObserveScan(false, time.Second)
		m.ObserveStep("locate", time.Second)
		m.ObserveReadiness("ready")
		m.ObservePlanner("ok")
	})
	assert.Nil(t, m.Registry())
}
