package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteCreatedTotal counts quote sessions created.
	QuoteCreatedTotal prometheus.Counter
	// QuoteItemEventsTotal counts selection mutations by operation and outcome.
	QuoteItemEventsTotal *prometheus.CounterVec
	// SearchTotal counts catalog searches by outcome.
	SearchTotal *prometheus.CounterVec
	// DocumentBuildTotal counts generated documents by kind.
	DocumentBuildTotal *prometheus.CounterVec
	// CatalogTestsLoaded reports the number of tests held by the catalog.
	CatalogTestsLoaded prometheus.Gauge
	// CatalogStateGauge reports the catalog load state (0 loading, 1 ready, 2 degraded).
	CatalogStateGauge prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers domain-specific
// Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_created_total",
			Help:      "Total number of quote sessions created.",
		})
		QuoteItemEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_item_events_total",
			Help:      "Count of selection mutations by operation and outcome.",
		}, []string{"op", "outcome"})
		SearchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_search_total",
			Help:      "Count of catalog searches by outcome.",
		}, []string{"outcome"})
		DocumentBuildTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_built_total",
			Help:      "Count of generated documents by kind.",
		}, []string{"kind"})
		CatalogTestsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_tests_loaded",
			Help:      "Number of lab tests currently held by the catalog.",
		})
		CatalogStateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_state",
			Help:      "Catalog load state: 0 loading, 1 ready, 2 degraded.",
		})

		mustRegisterCollector(reg, QuoteCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				QuoteCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteItemEventsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteItemEventsTotal = v
			}
		})
		mustRegisterCollector(reg, SearchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SearchTotal = v
			}
		})
		mustRegisterCollector(reg, DocumentBuildTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DocumentBuildTotal = v
			}
		})
		mustRegisterCollector(reg, CatalogTestsLoaded, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				CatalogTestsLoaded = v
			}
		})
		mustRegisterCollector(reg, CatalogStateGauge, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				CatalogStateGauge = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
