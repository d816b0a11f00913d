package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Submitted("internship")
	m.Submitted("internship")
	m.CheckIn("ok")
	m.Notification("failed")
	m.SubmitFailed("validation")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues("internship")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckIns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmitFailures.WithLabelValues("validation")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Submitted("job")
		m.CheckIn("not_found")
		m.Notification("sent")
		m.SubmitFailed("upload")
	})
}
