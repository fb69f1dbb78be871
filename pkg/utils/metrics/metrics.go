package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "osnit"

var (
	ingestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "candidates_total",
		Help:      "Ingested candidates by source and outcome (inserted, duplicate, rejected).",
	}, []string{"source", "outcome"})

	collectErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "collector_errors_total",
		Help:      "Collector runs that returned an error.",
	}, []string{"source"})

	enrichTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "enrich",
		Name:      "records_total",
		Help:      "Enrichment outcomes per record (succeeded, failed, flagged).",
	}, []string{"outcome"})

	capabilityDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "enrich",
		Name:      "capability_duration_seconds",
		Help:      "Latency of model capability calls including retries.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"capability", "status"})

	clusters = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "correlate",
		Name:      "clusters",
		Help:      "Number of clusters produced by the last correlation run.",
	})

	alertsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "alert",
		Name:      "created_total",
		Help:      "Alerts created by rule.",
	}, []string{"rule"})
)

func init() {
	prometheus.MustRegister(
		ingestTotal,
		collectErrors,
		enrichTotal,
		capabilityDuration,
		clusters,
		alertsCreated,
	)
}

// Handler serves the default registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.Handler()
}

func IngestOutcome(source, outcome string) {
	ingestTotal.WithLabelValues(source, outcome).Inc()
}

func CollectorError(source string) {
	collectErrors.WithLabelValues(source).Inc()
}

func EnrichOutcome(outcome string) {
	enrichTotal.WithLabelValues(outcome).Inc()
}

// ObserveCapability records the duration of a capability call started at begin
func ObserveCapability(capability string, begin time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	capabilityDuration.WithLabelValues(capability, status).Observe(time.Since(begin).Seconds())
}

func SetClusters(n int) {
	clusters.Set(float64(n))
}

func AlertCreated(rule string) {
	alertsCreated.WithLabelValues(rule).Inc()
}
