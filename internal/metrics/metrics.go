package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "tasknotify_"

	ResultAccepted  = "accepted"
	ResultMalformed = "malformed"

	resultSuccess = "success"
	resultFailure = "failure"
)

var (
	registerOnce sync.Once
	registry     *prometheus.Registry

	eventsTotal       *prometheus.CounterVec
	deliveriesTotal   *prometheus.CounterVec
	enrichmentMissing *prometheus.CounterVec
	dispatchSeconds   prometheus.Histogram
)

// Init registers the collectors. It is safe to call more than once; the
// observe functions call it themselves.
func Init() {
	registerOnce.Do(func() {
		registry = prometheus.NewRegistry()
		eventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_total",
				Help: "Inbound events by result",
			},
			[]string{"result"},
		)
		deliveriesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "deliveries_total",
				Help: "Notification deliveries by provider and result",
			},
			[]string{"provider", "result"},
		)
		enrichmentMissing = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "enrichment_missing_total",
				Help: "Enrichment lookups that came back absent",
			},
			[]string{"lookup"},
		)
		dispatchSeconds = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "dispatch_seconds",
				Help:    "Time from canonical event to last delivery result",
				Buckets: prometheus.DefBuckets,
			},
		)
		registry.MustRegister(
			eventsTotal,
			deliveriesTotal,
			enrichmentMissing,
			dispatchSeconds,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveEvent counts one inbound event.
func ObserveEvent(result string) {
	Init()
	eventsTotal.WithLabelValues(result).Inc()
}

// ObserveDelivery counts one NotificationResult.
func ObserveDelivery(provider string, success bool) {
	Init()
	result := resultFailure
	if success {
		result = resultSuccess
	}
	deliveriesTotal.WithLabelValues(provider, result).Inc()
}

// ObserveMissing counts the absent lookups of one enrichment.
func ObserveMissing(lookups []string) {
	Init()
	for _, l := range lookups {
		enrichmentMissing.WithLabelValues(l).Inc()
	}
}

// ObserveDispatch records how long one event took to dispatch.
func ObserveDispatch(d time.Duration) {
	Init()
	dispatchSeconds.Observe(d.Seconds())
}
