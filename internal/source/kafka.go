package source

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/xilian/telemetry-dashboard/internal/config"
	"github.com/xilian/telemetry-dashboard/internal/model"
)

// kafkaEnvelope 传感器主题消息的路由字段
type kafkaEnvelope struct {
	NodeID   string `json:"node_id"`
	RecordID string `json:"record_id,omitempty"`
}

// KafkaFeed 从平台传感器主题消费读数并写入实时库
type KafkaFeed struct {
	reader *kafka.Reader
	store  *RedisSource
	logger *zap.Logger
}

// NewKafkaFeed 创建摄入通道
func NewKafkaFeed(cfg config.KafkaConfig, store *RedisSource, logger *zap.Logger) *KafkaFeed {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       cfg.MaxBytes,
		MaxWait:        cfg.MaxWait,
		CommitInterval: cfg.CommitInterval,
	})

	return &KafkaFeed{
		reader: reader,
		store:  store,
		logger: logger,
	}
}

// Run 消费循环直至上下文取消
func (f *KafkaFeed) Run(ctx context.Context) error {
	f.logger.Info("Kafka feed started", zap.String("topic", f.reader.Config().Topic))

	for {
		msg, err := f.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Error("Kafka read failed", zap.Error(err))
			continue
		}
		f.handle(ctx, msg)
	}
}

// handle 处理一条消息；畸形载荷丢弃不中断消费
func (f *KafkaFeed) handle(ctx context.Context, msg kafka.Message) {
	var envelope kafkaEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		f.logger.Warn("Malformed kafka payload dropped",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}
	reading, err := model.ParseReading(msg.Value)
	if err != nil {
		f.logger.Warn("Kafka payload rejected",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}

	nodeID := envelope.NodeID
	if nodeID == "" {
		nodeID = string(msg.Key)
	}
	if nodeID == "" {
		f.logger.Warn("Kafka payload missing node id", zap.Int64("offset", msg.Offset))
		return
	}

	recordID := envelope.RecordID
	if recordID == "" {
		recordID = uuid.New().String()
	}

	if err := f.store.Store(ctx, nodeID, recordID, *reading); err != nil {
		f.logger.Error("Reading store failed",
			zap.String("node_id", nodeID),
			zap.Error(err),
		)
	}
}

// Close 关闭消费者
func (f *KafkaFeed) Close() error {
	return f.reader.Close()
}
