package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xilian/telemetry-dashboard/internal/model"
)

// LiveSource 实时数据源接口
// 核心不关心订阅如何实现，只要求能取全量快照并收到变更信号
type LiveSource interface {
	Ping(ctx context.Context) error
	Nodes(ctx context.Context) ([]string, error)
	Snapshot(ctx context.Context, nodeID string) (model.NodeSnapshot, int64, error)
	// SubscribeNode 返回节点更新信号流与取消句柄
	SubscribeNode(ctx context.Context, nodeID string) (<-chan struct{}, func(), error)
	// SubscribeNodeSet 返回节点集合增删事件流与取消句柄
	SubscribeNodeSet(ctx context.Context) (<-chan model.NodeSetEvent, func(), error)
}

// Syncer 把实时数据源同步进看板服务
// 发现节点即登记订阅，移除节点即撤销订阅并逐出缓存
type Syncer struct {
	source    LiveSource
	dashboard *DashboardService
	logger    *zap.Logger
	resync    time.Duration
}

// NewSyncer 创建同步器
func NewSyncer(source LiveSource, dashboard *DashboardService, logger *zap.Logger, resync time.Duration) *Syncer {
	return &Syncer{
		source:    source,
		dashboard: dashboard,
		logger:    logger,
		resync:    resync,
	}
}

// Run 运行同步循环直至上下文取消
func (s *Syncer) Run(ctx context.Context) error {
	s.probe(ctx)
	s.reconcile(ctx)

	events, cancelSet, err := s.source.SubscribeNodeSet(ctx)
	if err != nil {
		s.logger.Warn("Node set subscription unavailable, relying on resync", zap.Error(err))
		s.dashboard.SetConnected(false)
	} else {
		defer cancelSet()
	}

	ticker := time.NewTicker(s.resync)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Removed {
				s.dashboard.RemoveNode(event.NodeID)
				continue
			}
			s.adopt(ctx, event.NodeID)

		case <-ticker.C:
			// 周期对账：兜底订阅丢失并刷新连通状态
			s.probe(ctx)
			s.reconcile(ctx)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// probe 探测数据源连通性
func (s *Syncer) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	s.dashboard.SetConnected(s.source.Ping(pingCtx) == nil)
}

// reconcile 全量对账节点集合
func (s *Syncer) reconcile(ctx context.Context) {
	if !s.dashboard.Connected() {
		return
	}
	ids, err := s.source.Nodes(ctx)
	if err != nil {
		s.logger.Warn("Node listing failed", zap.Error(err))
		s.dashboard.SetConnected(false)
		return
	}
	for _, id := range ids {
		s.adopt(ctx, id)
	}
}

// adopt 纳管节点：取初始快照并登记订阅（幂等）
func (s *Syncer) adopt(ctx context.Context, nodeID string) {
	if s.dashboard.Watching(nodeID) {
		return
	}
	s.refresh(ctx, nodeID)
	s.dashboard.Watch(nodeID, func(watchCtx context.Context) {
		s.watchNode(watchCtx, nodeID)
	})
}

// watchNode 单节点订阅循环：收到信号即重取全量快照
func (s *Syncer) watchNode(ctx context.Context, nodeID string) {
	signals, cancel, err := s.source.SubscribeNode(ctx, nodeID)
	if err != nil {
		s.logger.Warn("Node subscription failed",
			zap.String("node_id", nodeID),
			zap.Error(err),
		)
		return
	}
	defer cancel()

	for {
		select {
		case _, ok := <-signals:
			if !ok {
				return
			}
			s.refresh(ctx, nodeID)

		case <-ctx.Done():
			return
		}
	}
}

// refresh 重取节点快照并交给看板
func (s *Syncer) refresh(ctx context.Context, nodeID string) {
	snap, dropped, err := s.source.Snapshot(ctx, nodeID)
	if err != nil {
		s.logger.Warn("Snapshot fetch failed",
			zap.String("node_id", nodeID),
			zap.Error(err),
		)
		s.dashboard.SetConnected(false)
		return
	}
	s.dashboard.SetConnected(true)
	if dropped > 0 {
		s.dashboard.RecordDropped(dropped)
	}
	s.dashboard.ApplySnapshot(nodeID, snap)
}
