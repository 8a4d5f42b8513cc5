package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPricing(t *testing.T) {
	r := NewRecorder()

	r.RecordPricing("asian", "montecarlo", 1000, 20*time.Millisecond)
	r.RecordPricing("asian", "montecarlo", 500, 10*time.Millisecond)
	r.RecordPricing("vanilla", "analytic", 0, time.Microsecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.pricingRuns.WithLabelValues("asian", "montecarlo")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(r.pathsSimulated.WithLabelValues("asian")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.pricingRuns.WithLabelValues("vanilla", "analytic")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.pricingDuration))
}

func TestRecordHedgeAndErrors(t *testing.T) {
	r := NewRecorder()

	r.RecordHedge("barrier", 99, 1.25)
	r.RecordHedge("barrier", 49, -0.5)
	r.RecordError("numeric_degeneracy")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.hedgeRuns.WithLabelValues("barrier")))
	assert.Equal(t, 148.0, testutil.ToFloat64(r.hedgeRebalances.WithLabelValues("barrier")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errors.WithLabelValues("numeric_degeneracy")))
}

func TestRecordersAreIsolated(t *testing.T) {
	a := NewRecorder()
	b := NewRecorder()

	a.RecordError("invalid_configuration")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.errors.WithLabelValues("invalid_configuration")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.errors))
}

func TestWriteText(t *testing.T) {
	r := NewRecorder()
	r.RecordPricing("lookback", "montecarlo", 10, time.Millisecond)
	r.UpdateRuntimeMetrics()

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, `pricer_pricing_runs_total{engine="montecarlo",variant="lookback"} 1`)
	assert.Contains(t, out, "# TYPE pricer_pricing_duration_seconds histogram")
	assert.Contains(t, out, "pricer_goroutine_count")
}
