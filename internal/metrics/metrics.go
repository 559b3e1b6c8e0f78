// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	prometheus.MustRegister(HTTPTotalRequests)
	prometheus.MustRegister(HTTPResponseDuration)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(CacheLookups)
	prometheus.MustRegister(Reloads)
	prometheus.MustRegister(CatalogServices)
	prometheus.MustRegister(SSEClients)
}

const (
	LabelPath   = "path"
	LabelCode   = "code"
	LabelMethod = "method"
	LabelStage  = "stage"
	LabelResult = "result"
	LabelSource = "source"
)

// Stage label values.
const (
	StageBuild     = "build"
	StageHops      = "hops"
	StageHierarchy = "hierarchy"
	StageFlow      = "flow"
	StageFilter    = "filter"
)

var (
	histogramBuckets = []float64{.001, .005, .01, .05, .1, .5, 1}

	// HTTPTotalRequests counts API requests by path, method and status.
	HTTPTotalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vyuha",
			Subsystem: "catalog",
			Name:      "http_requests_total",
			Help:      "Number of total requests.",
		},
		[]string{LabelPath, LabelMethod, LabelCode})

	HTTPResponseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vyuha",
		Subsystem: "catalog",
		Name:      "http_response_time_seconds",
		Help:      "Duration of HTTP response.",
		Buckets:   histogramBuckets,
	}, []string{LabelPath, LabelMethod})

	// StageDuration tracks how long graph builds, hop computations and view
	// projections take when they miss the cache.
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vyuha",
		Subsystem: "catalog",
		Name:      "stage_duration_seconds",
		Help:      "Duration of uncached engine stages.",
		Buckets:   histogramBuckets,
	}, []string{LabelStage})

	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vyuha",
		Subsystem: "catalog",
		Name:      "cache_lookups_total",
		Help:      "Engine cache lookups by stage and result (hit or miss).",
	}, []string{LabelStage, LabelResult})

	// Reloads counts record set replacements by source (file, import) and
	// result (ok or error).
	Reloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vyuha",
		Subsystem: "catalog",
		Name:      "reloads_total",
		Help:      "Number of catalog reloads.",
	}, []string{LabelSource, LabelResult})

	CatalogServices = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vyuha",
		Subsystem: "catalog",
		Name:      "services",
		Help:      "Number of service records currently loaded.",
	})

	SSEClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vyuha",
		Subsystem: "catalog",
		Name:      "sse_clients",
		Help:      "Number of connected event stream clients.",
	})
)

// ObserveStage records the time elapsed since start for stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// CacheResult records one cache lookup.
func CacheResult(stage string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(stage, result).Inc()
}

// Reloaded records one reload attempt.
func Reloaded(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Reloads.WithLabelValues(source, result).Inc()
}
