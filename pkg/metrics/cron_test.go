package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsSeparatesOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	m.ObserveDuration("stale-order-expiry", 250*time.Millisecond)
	m.IncSuccess("stale-order-expiry")
	m.IncSuccess("stale-order-expiry")
	m.IncFailure("stale-order-expiry")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	success, err := fetchCounter(mfs, "checkout_cron_job_runs_total", map[string]string{"job": "stale-order-expiry", "outcome": "success"})
	require.NoError(t, err)
	require.Equal(t, float64(2), success)

	failure, err := fetchCounter(mfs, "checkout_cron_job_runs_total", map[string]string{"job": "stale-order-expiry", "outcome": "failure"})
	require.NoError(t, err)
	require.Equal(t, float64(1), failure)

	hist, err := findMetric(mfs, "checkout_cron_job_duration_seconds", map[string]string{"job": "stale-order-expiry"})
	require.NoError(t, err)
	require.InDelta(t, 0.25, hist.GetHistogram().GetSampleSum(), 1e-9)

	last, err := findMetric(mfs, "checkout_cron_job_last_success_timestamp_seconds", map[string]string{"job": "stale-order-expiry"})
	require.NoError(t, err)
	require.Equal(t, float64(1_700_000_000), last.GetGauge().GetValue())
}

func TestCronJobMetricsEmptyJobName(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.IncFailure("")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	got, err := fetchCounter(mfs, "checkout_cron_job_runs_total", map[string]string{"job": "unknown", "outcome": "failure"})
	require.NoError(t, err)
	require.Equal(t, float64(1), got)
}

func TestCronJobMetricsNilRegisterer(t *testing.T) {
	m := NewCronJobMetrics(nil)
	require.Nil(t, m)
	require.NotPanics(t, func() {
		m.ObserveDuration("job", time.Second)
		m.IncSuccess("job")
		m.IncFailure("job")
	})
}
