// Package metrics Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 采集周期结果
const (
	ResultSuccess           = "success"
	ResultNoSession         = "no_session"
	ResultWindowUnavailable = "window_unavailable"
	ResultLeaseExpired      = "lease_expired"
	ResultTransmitFailed    = "transmit_failed"
	ResultError             = "error"
)

var (
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_cycles_total",
			Help: "The total number of collection cycles by result",
		},
		[]string{"result"},
	)
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "healthsync_cycle_duration_seconds",
			Help:    "Duration of collection cycles",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	MetricFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_metric_fetch_failures_total",
			Help: "The total number of failed per-metric fetches",
		},
		[]string{"metric"},
	)
	SchedulerPhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "healthsync_scheduler_phase",
			Help: "Current scheduler phase (1 for the active phase)",
		},
		[]string{"phase"},
	)
	LeasesAcquired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsync_leases_acquired_total",
			Help: "The total number of acquired execution leases",
		},
	)
	LeasesReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsync_leases_released_total",
			Help: "The total number of released execution leases",
		},
	)
	LeasesExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsync_leases_expired_total",
			Help: "The total number of execution leases that reached their budget",
		},
	)
	LeaseHeld = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healthsync_lease_held",
			Help: "Whether an execution lease is currently held",
		},
	)
)

// SetPhase 标记当前阶段
func SetPhase(phase string, all []string) {
	for _, p := range all {
		if p == phase {
			SchedulerPhase.WithLabelValues(p).Set(1)
		} else {
			SchedulerPhase.WithLabelValues(p).Set(0)
		}
	}
}
