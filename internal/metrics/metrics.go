// Package metrics holds the Prometheus collectors of the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the domain counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	spansGranted      *prometheus.CounterVec
	spanDuplicates    *prometheus.CounterVec
	transactions      *prometheus.CounterVec
	actionsShipped    *prometheus.CounterVec
	catalogCacheReads *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		spansGranted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "makeradmin",
			Name:      "spans_granted_total",
			Help:      "Spans created by granting days, by span type.",
		}, []string{"type"}),
		spanDuplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "makeradmin",
			Name:      "span_grant_duplicates_total",
			Help:      "Grants skipped because their creation reason was already applied, by span type.",
		}, []string{"type"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "makeradmin",
			Name:      "shop_transactions_total",
			Help:      "Shop transactions by resulting status.",
		}, []string{"status"}),
		actionsShipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "makeradmin",
			Name:      "shop_actions_shipped_total",
			Help:      "Pending transaction actions performed, by action.",
		}, []string{"action"}),
		catalogCacheReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "makeradmin",
			Name:      "catalog_cache_reads_total",
			Help:      "Product catalog reads by cache result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.spansGranted, m.spanDuplicates, m.transactions, m.actionsShipped, m.catalogCacheReads)
	return m
}

// SpanGranted counts a newly created span.
func (m *Metrics) SpanGranted(spanType string) {
	if m == nil {
		return
	}
	m.spansGranted.WithLabelValues(spanType).Inc()
}

// SpanDuplicate counts a grant that matched an existing span.
func (m *Metrics) SpanDuplicate(spanType string) {
	if m == nil {
		return
	}
	m.spanDuplicates.WithLabelValues(spanType).Inc()
}

// Transaction counts a transaction reaching status.
func (m *Metrics) Transaction(status string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(status).Inc()
}

// ActionShipped counts a performed transaction action.
func (m *Metrics) ActionShipped(action string) {
	if m == nil {
		return
	}
	m.actionsShipped.WithLabelValues(action).Inc()
}

// CatalogRead counts a catalog lookup; hit tells whether it was served from cache.
func (m *Metrics) CatalogRead(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.catalogCacheReads.WithLabelValues(result).Inc()
}
