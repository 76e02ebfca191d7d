package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// LiveStats provides the metrics collector access to server state.
type LiveStats interface {
	WordCount() int
	SubscriberCount() int
	EventsPublished() int64
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool  *pgxpool.Pool
	stats LiveStats

	words           *prometheus.Desc
	subscribers     *prometheus.Desc
	eventsPublished *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool may be nil when no snapshot database is configured.
func NewCollector(pool *pgxpool.Pool, stats LiveStats) *Collector {
	return &Collector{
		pool:  pool,
		stats: stats,
		words: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "words"),
			"Number of words held by the store.",
			nil, nil,
		),
		subscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "stream_subscribers"),
			"Current number of SSE and WebSocket subscribers.",
			nil, nil,
		),
		eventsPublished: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "events_published_total"),
			"Total change events published.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.words
	ch <- c.subscribers
	ch <- c.eventsPublished
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var words, subs, published float64
	if c.stats != nil {
		words = float64(c.stats.WordCount())
		subs = float64(c.stats.SubscriberCount())
		published = float64(c.stats.EventsPublished())
	}
	ch <- prometheus.MustNewConstMetric(c.words, prometheus.GaugeValue, words)
	ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, subs)
	ch <- prometheus.MustNewConstMetric(c.eventsPublished, prometheus.CounterValue, published)

	var total, acquired, idle float64
	if c.pool != nil {
		stat := c.pool.Stat()
		total = float64(stat.TotalConns())
		acquired = float64(stat.AcquiredConns())
		idle = float64(stat.IdleConns())
	}
	ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, total)
	ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, acquired)
	ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, idle)
}
