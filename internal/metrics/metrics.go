package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Lines      prometheus.Gauge
	GraphNodes prometheus.Gauge
	GraphEdges prometheus.Gauge

	Searches       *prometheus.CounterVec // objective, outcome: found|no_route|error
	SearchDuration *prometheus.HistogramVec
	SettledNodes   *prometheus.HistogramVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	SearchTimeout prometheus.Gauge // seconds
}

func NewCollector(searchTimeout time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Lines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_lines",
			Help: "Number of lines in the loaded schedule.",
		}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_graph_nodes",
			Help: "Line nodes in the loaded schedule's transit graph.",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_graph_edges",
			Help: "In-line and transfer edges in the loaded schedule's transit graph.",
		}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_searches_total",
			Help: "Route searches by objective and outcome.",
		}, []string{"objective", "outcome"}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "router_search_duration_seconds",
			Help:    "Duration of a single route search.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 16),
		}, []string{"objective"}),
		SettledNodes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "router_search_settled_nodes",
			Help:    "Nodes settled before a search stopped.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"objective"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_cache_hits_total",
			Help: "Plans served from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_cache_misses_total",
			Help: "Plans not found in the cache.",
		}),
		CacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_cache_errors_total",
			Help: "Cache reads or writes that failed.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		SearchTimeout: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_search_timeout_seconds",
			Help: "Configured deadline for one plan.",
		}),
	}

	reg.MustRegister(
		c.Lines, c.GraphNodes, c.GraphEdges,
		c.Searches, c.SearchDuration, c.SettledNodes,
		c.CacheHits, c.CacheMisses, c.CacheErrors,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.SearchTimeout,
	)

	c.SearchTimeout.Set(searchTimeout.Seconds())

	return c
}

// ObserveSearch records one finished search.
func (c *Collector) ObserveSearch(objective, outcome string, d time.Duration, settled int) {
	c.Searches.WithLabelValues(objective, outcome).Inc()
	c.SearchDuration.WithLabelValues(objective).Observe(d.Seconds())
	if settled > 0 {
		c.SettledNodes.WithLabelValues(objective).Observe(float64(settled))
	}
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

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
