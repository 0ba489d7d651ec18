package model

// DashboardMetrics 服务指标
type DashboardMetrics struct {
	SnapshotsApplied   int64   `json:"snapshots_applied"`
	SnapshotsEmpty     int64   `json:"snapshots_empty"`
	ReadingsDropped    int64   `json:"readings_dropped"`
	ViewModelsBuilt    int64   `json:"view_models_built"`
	NodesActive        int     `json:"nodes_active"`
	WatchesActive      int     `json:"watches_active"`
	SnapshotsPerSecond float64 `json:"snapshots_per_second"`
}

// HealthStatus 健康状态
// Status 取 healthy / cannot_connect 两值，数据源不可达与"暂无数据"语义分离
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  int64             `json:"timestamp"`
	Components map[string]string `json:"components"`
	Metrics    DashboardMetrics  `json:"metrics"`
}

const (
	// StatusHealthy 数据源可达
	StatusHealthy = "healthy"
	// StatusCannotConnect 数据源不可达（区别于节点无数据）
	StatusCannotConnect = "cannot_connect"
)

// NodeSetEvent 节点集合变更通知
type NodeSetEvent struct {
	NodeID  string `json:"node_id"`
	Removed bool   `json:"removed"`
}
