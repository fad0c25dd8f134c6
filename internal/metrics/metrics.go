package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ImportsStarted  prometheus.Counter
	ImportsFailed   prometheus.Counter
	RecordsParsed   *prometheus.CounterVec // kind label
	SegmentsSkipped prometheus.Counter

	GeocodeLookups  prometheus.Counter
	GeocodeHits     prometheus.Counter
	GeocodeFailures prometheus.Counter

	TripsBuilt    prometheus.Counter
	TripsFiltered *prometheus.CounterVec // stage label

	ReportsBuilt   prometheus.Counter
	QueueDepth     prometheus.Gauge
	ImportDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ImportsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripledger_imports_started_total",
			Help: "Total export files picked up for import.",
		}),
		ImportsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripledger_imports_failed_total",
			Help: "Total imports that ended in failure.",
		}),
		RecordsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripledger_records_parsed_total",
			Help: "Total timeline records parsed from exports.",
		}, []string{"kind"}),
		SegmentsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripledger_segments_skipped_total",
			Help: "Total segments that matched no known shape.",
		}),
		GeocodeLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripledger_geocode_lookups_total",
			Help: "Total address lookups sent through the cache.",
		}),
		GeocodeHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripledger_geocode_cache_hits_total",
			Help: "Total address lookups answered from the cache.",
		}),
		GeocodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripledger_geocode_failures_total",
			Help: "Total lookups that fell back to a placeholder.",
		}),
		TripsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripledger_trips_built_total",
			Help: "Total vehicle trips associated from records.",
		}),
		TripsFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripledger_trips_filtered_total",
			Help: "Trips dropped by the report filters.",
		}, []string{"stage"}),
		ReportsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripledger_reports_built_total",
			Help: "Total final reports assembled.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripledger_queue_depth",
			Help: "Import jobs waiting in the queue.",
		}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripledger_import_duration_seconds",
			Help:    "Wall time of one export import.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
	}

	reg.MustRegister(
		c.ImportsStarted, c.ImportsFailed, c.RecordsParsed, c.SegmentsSkipped,
		c.GeocodeLookups, c.GeocodeHits, c.GeocodeFailures,
		c.TripsBuilt, c.TripsFiltered, c.ReportsBuilt,
		c.QueueDepth, c.ImportDuration,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
