package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "footprint_service",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted to Postgres.",
	})
	cacheRefreshGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "footprint_service",
		Subsystem: "cache",
		Name:      "last_refresh_timestamp_seconds",
		Help:      "Unix timestamp of the most recent footprint cache refresh.",
	})
	cacheRefreshFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "footprint_service",
		Subsystem: "cache",
		Name:      "refresh_failures_total",
		Help:      "Count of footprint cache refreshes that failed after a successful append.",
	})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, cacheRefreshGauge, cacheRefreshFailures)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordCacheRefreshed updates the cache refresh watermark gauge.
func RecordCacheRefreshed(ts time.Time) {
	if ts.IsZero() {
		return
	}
	cacheRefreshGauge.Set(float64(ts.Unix()))
}

// RecordCacheRefreshFailure counts a refresh that left the cache stale.
func RecordCacheRefreshFailure() {
	cacheRefreshFailures.Inc()
}
