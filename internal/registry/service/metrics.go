package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for registry operations.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	CacheLookups      *prometheus.CounterVec
	AssetsCreated     prometheus.Counter
	CustodyTransfers  prometheus.Counter
}

// NewMetrics registers registry metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_registry_operations_total",
			Help: "Registry operations by name and result code",
		}, []string{"operation", "result"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provenance_registry_operation_duration_seconds",
			Help:    "Registry operation latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}, []string{"operation"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_registry_asset_cache_lookups_total",
			Help: "Asset cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		AssetsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "provenance_registry_assets_created_total",
			Help: "Total number of assets minted",
		}),
		CustodyTransfers: factory.NewCounter(prometheus.CounterOpts{
			Name: "provenance_registry_custody_transfers_total",
			Help: "Total number of completed custody transfers",
		}),
	}
}

func (m *Metrics) ObserveOperation(operation, result string, seconds float64) {
	m.Operations.WithLabelValues(operation, result).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) IncCacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}
