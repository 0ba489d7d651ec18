package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics Prometheus 指标集
type PromMetrics struct {
	SnapshotsApplied prometheus.Counter
	ReadingsDropped  prometheus.Counter
	ViewModelsBuilt  prometheus.Counter
	NodesActive      prometheus.Gauge
	WatchesActive    prometheus.Gauge
	WSClients        prometheus.Gauge
}

// NewPromMetrics 创建并注册 Prometheus 指标
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	m := &PromMetrics{
		SnapshotsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Name:      "snapshots_applied_total",
			Help:      "Total node snapshots applied",
		}),
		ReadingsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Name:      "readings_dropped_total",
			Help:      "Malformed reading payloads dropped at decode",
		}),
		ViewModelsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Name:      "view_models_built_total",
			Help:      "View models assembled on demand",
		}),
		NodesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Name:      "nodes_active",
			Help:      "Nodes currently cached",
		}),
		WatchesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Name:      "watches_active",
			Help:      "Per-node subscriptions currently registered",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dashboard",
			Name:      "ws_clients",
			Help:      "Connected websocket clients",
		}),
	}

	reg.MustRegister(
		m.SnapshotsApplied,
		m.ReadingsDropped,
		m.ViewModelsBuilt,
		m.NodesActive,
		m.WatchesActive,
		m.WSClients,
	)
	return m
}
