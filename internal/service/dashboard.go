package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xilian/telemetry-dashboard/internal/config"
	"github.com/xilian/telemetry-dashboard/internal/model"
)

// NodeUpdate 节点视图需要刷新的通知
type NodeUpdate struct {
	NodeID  string
	Removed bool
}

// DashboardService 看板服务
// 持有各节点的快照缓存与订阅登记，按需组装视图模型
type DashboardService struct {
	config   *config.Config
	logger   *zap.Logger
	profiles map[string]model.ThresholdProfile
	nodes    sync.Map // map[string]*nodeState
	watches  sync.Map // map[string]context.CancelFunc
	metrics  *Metrics
	prom     *PromMetrics
	updates  chan NodeUpdate
	// 数据源连通状态；断连时与"暂无数据"语义分离
	connected int32
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// nodeState 单节点缓存状态
type nodeState struct {
	mu        sync.RWMutex
	snapshot  model.NodeSnapshot
	updatedAt int64
}

// Metrics 服务指标
type Metrics struct {
	snapshotsApplied   int64
	snapshotsEmpty     int64
	readingsDropped    int64
	viewModelsBuilt    int64
	watchesActive      int64
	snapshotsPerSecond float64
	mu                 sync.RWMutex
}

// NewDashboardService 创建看板服务
func NewDashboardService(cfg *config.Config, logger *zap.Logger, prom *PromMetrics) *DashboardService {
	ctx, cancel := context.WithCancel(context.Background())

	return &DashboardService{
		config:   cfg,
		logger:   logger,
		profiles: model.BuiltinProfiles(),
		metrics:  &Metrics{},
		prom:     prom,
		updates:  make(chan NodeUpdate, cfg.Performance.UpdateBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 启动服务
func (s *DashboardService) Start() {
	s.wg.Add(1)
	go s.metricsCalculator()

	s.logger.Info("Dashboard service started",
		zap.String("profile", s.config.Dashboard.ProfileName),
		zap.String("default_view", s.config.Dashboard.DefaultView),
	)
}

// Stop 停止服务
func (s *DashboardService) Stop() {
	s.cancel()
	// 注销全部节点订阅
	s.watches.Range(func(key, value interface{}) bool {
		value.(context.CancelFunc)()
		s.watches.Delete(key)
		return true
	})
	s.wg.Wait()
	close(s.updates)
	s.logger.Info("Dashboard service stopped")
}

// Updates 节点刷新通知流（推送层消费）
func (s *DashboardService) Updates() <-chan NodeUpdate {
	return s.updates
}

// ApplySnapshot 应用节点快照（全量替换）
// 空快照把节点重置为空态而非保留陈旧派生值
func (s *DashboardService) ApplySnapshot(nodeID string, snap model.NodeSnapshot) {
	stateI, _ := s.nodes.LoadOrStore(nodeID, &nodeState{})
	state := stateI.(*nodeState)

	state.mu.Lock()
	state.snapshot = snap
	state.updatedAt = time.Now().UnixMilli()
	state.mu.Unlock()

	atomic.AddInt64(&s.metrics.snapshotsApplied, 1)
	if snap.Empty() {
		atomic.AddInt64(&s.metrics.snapshotsEmpty, 1)
	}
	if s.prom != nil {
		s.prom.SnapshotsApplied.Inc()
		s.prom.NodesActive.Set(float64(s.nodeCount()))
	}

	s.notify(NodeUpdate{NodeID: nodeID})
}

// RemoveNode 移除节点：撤销订阅并逐出缓存状态
func (s *DashboardService) RemoveNode(nodeID string) {
	s.Unwatch(nodeID)
	if _, loaded := s.nodes.LoadAndDelete(nodeID); !loaded {
		return
	}
	if s.prom != nil {
		s.prom.NodesActive.Set(float64(s.nodeCount()))
	}
	s.logger.Debug("Node removed", zap.String("node_id", nodeID))
	s.notify(NodeUpdate{NodeID: nodeID, Removed: true})
}

// Watch 登记节点订阅（缺席才登记）
// start 在派生的可撤销上下文里运行；已登记时返回 false 且不重复启动
func (s *DashboardService) Watch(nodeID string, start func(ctx context.Context)) bool {
	ctx, cancel := context.WithCancel(s.ctx)
	if _, loaded := s.watches.LoadOrStore(nodeID, context.CancelFunc(cancel)); loaded {
		cancel()
		return false
	}
	atomic.AddInt64(&s.metrics.watchesActive, 1)
	if s.prom != nil {
		s.prom.WatchesActive.Inc()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start(ctx)
	}()

	s.logger.Debug("Watch registered", zap.String("node_id", nodeID))
	return true
}

// Unwatch 注销节点订阅并触发其取消句柄
func (s *DashboardService) Unwatch(nodeID string) {
	if cancelI, loaded := s.watches.LoadAndDelete(nodeID); loaded {
		cancelI.(context.CancelFunc)()
		atomic.AddInt64(&s.metrics.watchesActive, -1)
		if s.prom != nil {
			s.prom.WatchesActive.Dec()
		}
		s.logger.Debug("Watch released", zap.String("node_id", nodeID))
	}
}

// Watching 节点是否已登记订阅
func (s *DashboardService) Watching(nodeID string) bool {
	_, ok := s.watches.Load(nodeID)
	return ok
}

// RecordDropped 记录被丢弃的畸形读数
func (s *DashboardService) RecordDropped(n int64) {
	atomic.AddInt64(&s.metrics.readingsDropped, n)
	if s.prom != nil {
		s.prom.ReadingsDropped.Add(float64(n))
	}
}

// SetConnected 设置数据源连通状态
func (s *DashboardService) SetConnected(connected bool) {
	var v int32
	if connected {
		v = 1
	}
	if atomic.SwapInt32(&s.connected, v) != v {
		s.logger.Info("Live source connectivity changed", zap.Bool("connected", connected))
	}
}

// Connected 数据源是否可达
func (s *DashboardService) Connected() bool {
	return atomic.LoadInt32(&s.connected) == 1
}

// ResolveProfile 解析阈值配置名，未知名称回退到配置默认
func (s *DashboardService) ResolveProfile(name string) model.ThresholdProfile {
	if profile, ok := s.profiles[name]; ok {
		return profile
	}
	if profile, ok := s.profiles[s.config.Dashboard.ProfileName]; ok {
		return profile
	}
	return s.profiles["level-4"]
}

// Profiles 内置阈值配置（按名排序）
func (s *DashboardService) Profiles() []model.ThresholdProfile {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	profiles := make([]model.ThresholdProfile, 0, len(names))
	for _, name := range names {
		profiles = append(profiles, s.profiles[name])
	}
	return profiles
}

// DefaultView 配置的默认视图粒度
func (s *DashboardService) DefaultView() model.ViewMode {
	return model.ParseViewMode(s.config.Dashboard.DefaultView, model.ViewRaw)
}

// ViewModel 组装单节点视图模型
func (s *DashboardService) ViewModel(nodeID string, view model.ViewMode, profile model.ThresholdProfile) (model.NodeViewModel, bool) {
	stateI, ok := s.nodes.Load(nodeID)
	if !ok {
		return model.NodeViewModel{}, false
	}
	state := stateI.(*nodeState)

	state.mu.RLock()
	snap := state.snapshot
	state.mu.RUnlock()

	atomic.AddInt64(&s.metrics.viewModelsBuilt, 1)
	if s.prom != nil {
		s.prom.ViewModelsBuilt.Inc()
	}

	return AssembleViewModel(nodeID, snap, AssembleOptions{
		Profile:   profile,
		View:      view,
		TrendRise: s.config.Dashboard.TrendRise,
		TrendFall: s.config.Dashboard.TrendFall,
		Staleness: s.config.Dashboard.StalenessWindow,
	}), true
}

// ViewModels 组装全部节点视图模型（按节点 id 排序）
func (s *DashboardService) ViewModels(view model.ViewMode, profile model.ThresholdProfile) []model.NodeViewModel {
	var ids []string
	s.nodes.Range(func(key, _ interface{}) bool {
		ids = append(ids, key.(string))
		return true
	})
	sort.Strings(ids)

	models := make([]model.NodeViewModel, 0, len(ids))
	for _, id := range ids {
		if vm, ok := s.ViewModel(id, view, profile); ok {
			models = append(models, vm)
		}
	}
	return models
}

// GetMetrics 获取指标
func (s *DashboardService) GetMetrics() model.DashboardMetrics {
	s.metrics.mu.RLock()
	sps := s.metrics.snapshotsPerSecond
	s.metrics.mu.RUnlock()

	return model.DashboardMetrics{
		SnapshotsApplied:   atomic.LoadInt64(&s.metrics.snapshotsApplied),
		SnapshotsEmpty:     atomic.LoadInt64(&s.metrics.snapshotsEmpty),
		ReadingsDropped:    atomic.LoadInt64(&s.metrics.readingsDropped),
		ViewModelsBuilt:    atomic.LoadInt64(&s.metrics.viewModelsBuilt),
		NodesActive:        s.nodeCount(),
		WatchesActive:      int(atomic.LoadInt64(&s.metrics.watchesActive)),
		SnapshotsPerSecond: sps,
	}
}

// GetHealthStatus 获取健康状态
func (s *DashboardService) GetHealthStatus() model.HealthStatus {
	status := model.StatusHealthy
	source := "ok"
	if !s.Connected() {
		status = model.StatusCannotConnect
		source = "unreachable"
	}

	return model.HealthStatus{
		Status:    status,
		Timestamp: time.Now().UnixMilli(),
		Components: map[string]string{
			"source":  source,
			"updates": "ok",
		},
		Metrics: s.GetMetrics(),
	}
}

// notify 投递刷新通知；推送层落后时丢弃而非阻塞核心
func (s *DashboardService) notify(update NodeUpdate) {
	select {
	case s.updates <- update:
	default:
		s.logger.Warn("Update buffer full, dropping notification",
			zap.String("node_id", update.NodeID),
		)
	}
}

func (s *DashboardService) nodeCount() int {
	count := 0
	s.nodes.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// metricsCalculator 指标计算协程
func (s *DashboardService) metricsCalculator() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastSnapshots int64
	var lastTime = time.Now()

	for {
		select {
		case <-ticker.C:
			current := atomic.LoadInt64(&s.metrics.snapshotsApplied)
			now := time.Now()

			elapsed := now.Sub(lastTime).Seconds()
			if elapsed > 0 {
				s.metrics.mu.Lock()
				s.metrics.snapshotsPerSecond = float64(current-lastSnapshots) / elapsed
				s.metrics.mu.Unlock()
			}

			lastSnapshots = current
			lastTime = now

		case <-s.ctx.Done():
			return
		}
	}
}
