package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/ecotrack-console/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation of the console's
// outbound API calls and provides lightweight snapshots. A nil *MetricsService
// is valid and records nothing.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	forcedLogouts   prometheus.Counter
	refreshTotal    *prometheus.CounterVec

	requestCount         uint64
	requestErrorCount    uint64
	requestDurationTotal uint64
	forcedLogoutCount    uint64
	refreshCount         uint64
	refreshFailureCount  uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ecotrack_api_request_duration_seconds",
		Help:    "Duration of EcoTrack API requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecotrack_api_requests_total",
		Help: "Total number of EcoTrack API requests",
	}, []string{"method", "route", "status"})

	forcedLogouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ecotrack_forced_logouts_total",
		Help: "Sessions terminated by a 401 response",
	})

	refreshTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ecotrack_refreshes_total",
		Help: "Scheduled tab refreshes by outcome",
	}, []string{"tab", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, forcedLogouts, refreshTotal, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		forcedLogouts:   forcedLogouts,
		refreshTotal:    refreshTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one completed API round trip.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
	if status >= http.StatusBadRequest {
		atomic.AddUint64(&m.requestErrorCount, 1)
	}
}

// RecordForcedLogout counts a session ended by the server.
func (m *MetricsService) RecordForcedLogout() {
	if m == nil {
		return
	}
	m.forcedLogouts.Inc()
	atomic.AddUint64(&m.forcedLogoutCount, 1)
}

// RecordRefresh counts a scheduled refresh of tab.
func (m *MetricsService) RecordRefresh(tab models.Tab, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		atomic.AddUint64(&m.refreshFailureCount, 1)
	}
	m.refreshTotal.WithLabelValues(string(tab), outcome).Inc()
	atomic.AddUint64(&m.refreshCount, 1)
}

// Snapshot returns aggregated metrics for the status endpoint.
func (m *MetricsService) Snapshot() models.ClientMetrics {
	if m == nil {
		return models.ClientMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.ClientMetrics{
		RequestsTotal:            requests,
		RequestErrors:            atomic.LoadUint64(&m.requestErrorCount),
		AverageRequestDurationMs: avgRequestMs,
		ForcedLogouts:            atomic.LoadUint64(&m.forcedLogoutCount),
		Refreshes:                atomic.LoadUint64(&m.refreshCount),
		FailedRefreshes:          atomic.LoadUint64(&m.refreshFailureCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
