package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrometheusMetricsDefaults(t *testing.T) {
	pm, err := NewPrometheusMetrics(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "esrnn", pm.GetConfig().Namespace)
	assert.Equal(t, "model", pm.GetConfig().Subsystem)
	assert.NotNil(t, pm.GetRegistry())
}

func TestRecordForward(t *testing.T) {
	pm, err := NewPrometheusMetrics(&PrometheusConfig{Namespace: "test"}, logrus.New())
	require.NoError(t, err)

	pm.RecordForward("train", 13, 4, 3*time.Millisecond)
	pm.RecordForward("train", 13, 2, time.Millisecond)
	pm.RecordForward("predict", 1, 4, time.Millisecond)

	assert.Equal(t, 2.0, promtestutil.ToFloat64(pm.forwardPassesTotal.WithLabelValues("train", StatusSuccess)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(pm.forwardPassesTotal.WithLabelValues("predict", StatusSuccess)))
	assert.Equal(t, 6.0, promtestutil.ToFloat64(pm.seriesTotal.WithLabelValues("train")))
	assert.Equal(t, 2, promtestutil.CollectAndCount(pm.windowsPerPass))
}

func TestRecordFailure(t *testing.T) {
	pm, err := NewPrometheusMetrics(nil, nil)
	require.NoError(t, err)

	pm.RecordFailure("train", "precondition", time.Millisecond)

	assert.Equal(t, 1.0, promtestutil.ToFloat64(pm.forwardPassesTotal.WithLabelValues("train", StatusError)))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(pm.errorsTotal.WithLabelValues("train", "precondition")))

	expected := `
# HELP esrnn_model_errors_total Total number of aborted forward passes by error type
# TYPE esrnn_model_errors_total counter
esrnn_model_errors_total{mode="train",type="precondition"} 1
`
	require.NoError(t, promtestutil.CollectAndCompare(pm.errorsTotal, strings.NewReader(expected)))
}

func TestRecordSnapshot(t *testing.T) {
	pm, err := NewPrometheusMetrics(nil, nil)
	require.NoError(t, err)

	pm.RecordSnapshot()
	pm.RecordSnapshot()
	assert.Equal(t, 2.0, promtestutil.ToFloat64(pm.parameterSnapshots))
}

func TestWriteToTextfile(t *testing.T) {
	pm, err := NewPrometheusMetrics(nil, nil)
	require.NoError(t, err)
	pm.RecordForward("predict", 1, 3, time.Millisecond)

	path := filepath.Join(t.TempDir(), "esrnn.prom")
	require.NoError(t, pm.WriteToTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `esrnn_model_forward_passes_total{mode="predict",status="success"} 1`)
}
