package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the report service.
type Metrics struct {
	// Report lifecycle metrics.
	ReportsSubmitted prometheus.Counter
	ReportsDeleted   prometheus.Counter
	ReportsEvicted   prometheus.Counter
	StatusChanges    *prometheus.CounterVec // labels: status
	ReportsByStatus  *prometheus.GaugeVec   // labels: status
	StoreBytes       prometheus.Gauge
	PersistErrors    *prometheus.CounterVec // labels: kind={quota-exceeded,serialization-failure,backend}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={reverse,search}, outcome={success,error,empty,rate_limited}
	GeocodeCache       *prometheus.CounterVec   // labels: method={reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={reverse,search}
	OfficeLookups      *prometheus.CounterVec   // labels: outcome={found,none,rate_limited,error}

	// Location metrics.
	LocationResolutions *prometheus.CounterVec // labels: source={device,ip,failed}
	IPProviderFailures  *prometheus.CounterVec // labels: provider

	// Event publication metrics.
	EventsPublished prometheus.Counter
	EventsDropped   prometheus.Counter
	PublishErrors   prometheus.Counter
	PublisherActive prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.ReportsSubmitted,
		m.ReportsDeleted,
		m.ReportsEvicted,
		m.StatusChanges,
		m.ReportsByStatus,
		m.StoreBytes,
		m.PersistErrors,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.OfficeLookups,
		m.LocationResolutions,
		m.IPProviderFailures,
		m.EventsPublished,
		m.EventsDropped,
		m.PublishErrors,
		m.PublisherActive,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		ReportsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecosphere",
			Name:      "reports_submitted_total",
			Help:      help("Total reports accepted by the lifecycle."),
		}),
		ReportsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecosphere",
			Name:      "reports_deleted_total",
			Help:      help("Total reports removed by explicit delete."),
		}),
		ReportsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecosphere",
			Name:      "reports_evicted_total",
			Help:      help("Total reports evicted to stay within the storage budget."),
		}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecosphere",
			Name:      "report_status_changes_total",
			Help:      help("Status transitions by target status."),
		}, []string{"status"}),
		ReportsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ecosphere",
			Name:      "reports",
			Help:      help("Stored reports by status."),
		}, []string{"status"}),
		StoreBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ecosphere",
			Name:      "store_bytes",
			Help:      help("Serialized size of the report collection."),
		}),
		PersistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecosphere",
			Name:      "store_persist_errors_total",
			Help:      help("Failed collection writes by kind."),
		}, []string{"kind"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecosphere",
			Name:      "geocode_requests_total",
			Help:      help("Geocoding API requests by method and outcome."),
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecosphere",
			Name:      "geocode_cache_total",
			Help:      help("Geocoding cache lookups by method and result."),
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ecosphere",
			Name:      "geocode_api_duration_seconds",
			Help:      help("Geocoding API request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		OfficeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecosphere",
			Name:      "office_lookups_total",
			Help:      help("Nearest municipal office lookups by outcome."),
		}, []string{"outcome"}),
		LocationResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecosphere",
			Name:      "location_resolutions_total",
			Help:      help("User location resolutions by winning source."),
		}, []string{"source"}),
		IPProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecosphere",
			Name:      "ip_provider_failures_total",
			Help:      help("IP geolocation provider failures by provider."),
		}, []string{"provider"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecosphere",
			Name:      "events_published_total",
			Help:      help("Report events written to the event stream."),
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecosphere",
			Name:      "events_dropped_total",
			Help:      help("Report events dropped because the publish queue was full."),
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecosphere",
			Name:      "event_publish_errors_total",
			Help:      help("Failed event batch writes."),
		}),
		PublisherActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ecosphere",
			Name:      "event_publisher_running",
			Help:      help("1 when the event publisher is active, 0 when shut down."),
		}),
	}
}
