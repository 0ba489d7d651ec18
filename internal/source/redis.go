// Package source 对接实时数据源与读数摄入
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/xilian/telemetry-dashboard/internal/config"
	"github.com/xilian/telemetry-dashboard/internal/model"
)

// RedisSource Redis 实时库
// 键布局：
//
//	{prefix}:nodes                节点 id 集合
//	{prefix}:node:{id}:latest     最新读数 JSON
//	{prefix}:node:{id}:history    记录 id → 读数 JSON 的哈希
//	{prefix}:updates:{id}         节点更新通知频道
//	{prefix}:nodeset              节点集合变更频道（add:{id} / remove:{id}）
type RedisSource struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
}

// NewRedisSource 创建 Redis 数据源
func NewRedisSource(cfg config.RedisConfig, logger *zap.Logger) *RedisSource {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	return &RedisSource{
		client: client,
		logger: logger,
		prefix: cfg.KeyPrefix,
	}
}

// Close 关闭连接
func (s *RedisSource) Close() error {
	return s.client.Close()
}

// Ping 探测连通性
func (s *RedisSource) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Nodes 列出全部节点 id
func (s *RedisSource) Nodes(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.nodesKey()).Result()
}

// Snapshot 取节点全量快照
// 畸形载荷按条丢弃并计数，不向上抛出；latest 畸形等同缺失
func (s *RedisSource) Snapshot(ctx context.Context, nodeID string) (model.NodeSnapshot, int64, error) {
	snap := model.NodeSnapshot{History: map[string]model.Reading{}}
	var dropped int64

	latestRaw, err := s.client.Get(ctx, s.latestKey(nodeID)).Result()
	switch {
	case err == redis.Nil:
		// 无最新读数是合法状态
	case err != nil:
		return model.NodeSnapshot{}, 0, err
	default:
		if reading, perr := model.ParseReading([]byte(latestRaw)); perr == nil {
			snap.Latest = reading
		} else {
			dropped++
			s.logger.Debug("Malformed latest payload dropped",
				zap.String("node_id", nodeID),
				zap.Error(perr),
			)
		}
	}

	entries, err := s.client.HGetAll(ctx, s.historyKey(nodeID)).Result()
	if err != nil {
		return model.NodeSnapshot{}, 0, err
	}
	for recordID, raw := range entries {
		reading, perr := model.ParseReading([]byte(raw))
		if perr != nil {
			dropped++
			s.logger.Debug("Malformed history payload dropped",
				zap.String("node_id", nodeID),
				zap.String("record_id", recordID),
				zap.Error(perr),
			)
			continue
		}
		snap.History[recordID] = *reading
	}

	return snap, dropped, nil
}

// Store 写入一条读数并广播更新
// 较新 epoch 的读数接替 latest，历史仅追加
func (s *RedisSource) Store(ctx context.Context, nodeID, recordID string, reading model.Reading) error {
	payload, err := reading.ToJSON()
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.nodesKey(), nodeID)
	pipe.HSet(ctx, s.historyKey(nodeID), recordID, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	// latest 仅在 epoch 不回退时接替
	current, err := s.client.Get(ctx, s.latestKey(nodeID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	supersede := err == redis.Nil
	if !supersede {
		if prev, perr := model.ParseReading([]byte(current)); perr != nil || reading.Timestamp >= prev.Timestamp {
			supersede = true
		}
	}
	if supersede {
		if err := s.client.Set(ctx, s.latestKey(nodeID), payload, 0).Err(); err != nil {
			return err
		}
	}

	pipe = s.client.TxPipeline()
	pipe.Publish(ctx, s.updatesChannel(nodeID), recordID)
	pipe.Publish(ctx, s.nodeSetChannel(), "add:"+nodeID)
	_, err = pipe.Exec(ctx)
	return err
}

// Remove 删除节点并广播移除
func (s *RedisSource) Remove(ctx context.Context, nodeID string) error {
	pipe := s.client.TxPipeline()
	pipe.SRem(ctx, s.nodesKey(), nodeID)
	pipe.Del(ctx, s.latestKey(nodeID), s.historyKey(nodeID))
	pipe.Publish(ctx, s.nodeSetChannel(), "remove:"+nodeID)
	_, err := pipe.Exec(ctx)
	return err
}

// SubscribeNode 订阅节点更新信号
func (s *RedisSource) SubscribeNode(ctx context.Context, nodeID string) (<-chan struct{}, func(), error) {
	pubsub := s.client.Subscribe(ctx, s.updatesChannel(nodeID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range pubsub.Channel() {
			// 信号合并：快照取的是全量，积压的通知无需逐条处理
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	return out, func() { _ = pubsub.Close() }, nil
}

// SubscribeNodeSet 订阅节点集合变更
func (s *RedisSource) SubscribeNodeSet(ctx context.Context) (<-chan model.NodeSetEvent, func(), error) {
	pubsub := s.client.Subscribe(ctx, s.nodeSetChannel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan model.NodeSetEvent, 16)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			event, ok := parseNodeSetEvent(msg.Payload)
			if !ok {
				s.logger.Debug("Unrecognized node set payload", zap.String("payload", msg.Payload))
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = pubsub.Close() }, nil
}

func parseNodeSetEvent(payload string) (model.NodeSetEvent, bool) {
	action, nodeID, found := strings.Cut(payload, ":")
	if !found || nodeID == "" {
		return model.NodeSetEvent{}, false
	}
	switch action {
	case "add":
		return model.NodeSetEvent{NodeID: nodeID}, true
	case "remove":
		return model.NodeSetEvent{NodeID: nodeID, Removed: true}, true
	}
	return model.NodeSetEvent{}, false
}

func (s *RedisSource) nodesKey() string {
	return s.prefix + ":nodes"
}

func (s *RedisSource) latestKey(nodeID string) string {
	return fmt.Sprintf("%s:node:%s:latest", s.prefix, nodeID)
}

func (s *RedisSource) historyKey(nodeID string) string {
	return fmt.Sprintf("%s:node:%s:history", s.prefix, nodeID)
}

func (s *RedisSource) updatesChannel(nodeID string) string {
	return fmt.Sprintf("%s:updates:%s", s.prefix, nodeID)
}

func (s *RedisSource) nodeSetChannel() string {
	return s.prefix + ":nodeset"
}
