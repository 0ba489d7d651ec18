// Package model 定义数据模型
package model

import (
	"encoding/json"
	"errors"
)

// Reading 一条传感器观测（不可变）
type Reading struct {
	// 主测量值（如水位，单位由部署决定）
	Value float64 `json:"value"`
	// epoch 秒，排序的唯一权威
	Timestamp int64 `json:"timestamp"`
	// 带时区的墙钟时间串（如 2026-02-26T04:52:57+07:00）
	// 存在时其内嵌的小时/日期对显示与分桶是权威的，不做时区换算
	TimestampISO string `json:"timestamp_iso,omitempty"`
	// 信号相关字段（rssi/snr 等），聚合不感知，透传给展示层
	Signal map[string]float64 `json:"signal,omitempty"`
	// 启动/包计数器，聚合不感知
	BootCount *int64 `json:"boot_count,omitempty"`
	// 测量单位（如 cm）
	Unit string `json:"unit,omitempty"`
}

// ToJSON 转换为 JSON
func (r *Reading) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// ErrMissingValue 载荷缺少主测量值
var ErrMissingValue = errors.New("reading payload missing value field")

// ParseReading 从 JSON 解析读数
// 缺少主测量值的载荷视为无效，与"无数据"同等处理，不向上抛出
func ParseReading(data []byte) (*Reading, error) {
	var raw struct {
		Value        *float64           `json:"value"`
		Timestamp    int64              `json:"timestamp"`
		TimestampISO string             `json:"timestamp_iso"`
		Signal       map[string]float64 `json:"signal"`
		BootCount    *int64             `json:"boot_count"`
		Unit         string             `json:"unit"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.Value == nil {
		return nil, ErrMissingValue
	}
	return &Reading{
		Value:        *raw.Value,
		Timestamp:    raw.Timestamp,
		TimestampISO: raw.TimestampISO,
		Signal:       raw.Signal,
		BootCount:    raw.BootCount,
		Unit:         raw.Unit,
	}, nil
}

// NodeSnapshot 节点快照（来自实时数据源的全量替换）
// Latest 为空与 History 为空是相互独立的合法状态
type NodeSnapshot struct {
	Latest  *Reading           `json:"latest,omitempty"`
	History map[string]Reading `json:"history,omitempty"`
}

// Empty 快照是否完全无数据
func (s NodeSnapshot) Empty() bool {
	return s.Latest == nil && len(s.History) == 0
}

// ViewMode 序列视图粒度
type ViewMode string

const (
	// ViewRaw 逐条读数视图
	ViewRaw ViewMode = "raw"
	// ViewHourly 小时桶视图
	ViewHourly ViewMode = "hourly"
)

// ParseViewMode 解析视图粒度，未知值回退到给定默认
func ParseViewMode(s string, fallback ViewMode) ViewMode {
	switch ViewMode(s) {
	case ViewRaw, ViewHourly:
		return ViewMode(s)
	}
	return fallback
}

// HourBucket 一个 (日期, 小时) 桶（派生，不持久化）
type HourBucket struct {
	// 形如 "2026-02-26-04"，零填充，字典序即时间序
	Key string `json:"key"`
	// 展示标签，形如 "26/02 04:00"
	Label   string  `json:"label"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Count   int64   `json:"count"`
}

// SeriesPoint 图表序列中的一个点
type SeriesPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// SummaryStats 序列汇总统计（各值保留一位小数）
type SummaryStats struct {
	Max  float64 `json:"max"`
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
}

// TrendDirection 趋势方向
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendFlat    TrendDirection = "flat"
)

// TrendInfo 趋势：后半段均值与前半段均值的带符号差
type TrendInfo struct {
	Value     float64        `json:"value"`
	Direction TrendDirection `json:"direction"`
}

// NodeViewModel 单节点展示模型（渲染层消费的契约）
type NodeViewModel struct {
	NodeID string `json:"node_id"`
	// 是否存在当前读数；false 时 Current/Tier/Signal 无意义
	HasData bool    `json:"has_data"`
	Current float64 `json:"current"`
	Unit    string  `json:"unit,omitempty"`
	Tier    *Tier   `json:"tier,omitempty"`
	// 透传的信号字段
	Signal map[string]float64 `json:"signal,omitempty"`
	// 当前视图下的趋势与统计
	Trend TrendInfo    `json:"trend"`
	Stats SummaryStats `json:"stats"`
	// 图表序列（标签/值对），与 View 对应
	Series []SeriesPoint `json:"series"`
	View   ViewMode      `json:"view"`
	// 历史条数（与 HasData 独立）
	HistoryCount int `json:"history_count"`
	// 最近一次更新的展示串，无数据时为哨兵 "—"
	LastUpdated string `json:"last_updated"`
	// 最近读数是否落在新鲜度窗口内
	Online bool `json:"online"`
}
