package service

import (
	"math"
	"sort"

	"github.com/xilian/telemetry-dashboard/internal/model"
)

// Aggregation 聚合结果：时间序与小时桶两种视图
type Aggregation struct {
	Chronological []model.Reading
	Hourly        []model.HourBucket
}

// Round1 保留一位小数，半数远离零舍入
// 桶统计与单条读数展示共用同一舍入路径
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Aggregate 把无序历史集合聚合为有序序列与小时桶
// 每次调用全量重算，不携带增量状态；空输入返回空结果
func Aggregate(history map[string]model.Reading) Aggregation {
	agg := Aggregation{
		Chronological: make([]model.Reading, 0, len(history)),
		Hourly:        []model.HourBucket{},
	}
	if len(history) == 0 {
		return agg
	}

	// map 迭代序不可依赖；先按记录 id 取出再稳定排序，
	// 同 epoch 读数在进程内得到确定的平局顺序
	recordIDs := make([]string, 0, len(history))
	for id := range history {
		recordIDs = append(recordIDs, id)
	}
	sort.Strings(recordIDs)
	for _, id := range recordIDs {
		agg.Chronological = append(agg.Chronological, history[id])
	}
	sort.SliceStable(agg.Chronological, func(i, j int) bool {
		return agg.Chronological[i].Timestamp < agg.Chronological[j].Timestamp
	})

	// 单趟累积小时桶
	type accum struct {
		label string
		sum   float64
		min   float64
		max   float64
		count int64
	}
	buckets := make(map[string]*accum)
	for _, r := range agg.Chronological {
		ref := NewTimeRef(r.TimestampISO, r.Timestamp)
		key := ref.BucketKey()
		b, ok := buckets[key]
		if !ok {
			b = &accum{label: ref.BucketLabel(), min: r.Value, max: r.Value}
			buckets[key] = b
		}
		b.sum += r.Value
		b.count++
		if r.Value < b.min {
			b.min = r.Value
		}
		if r.Value > b.max {
			b.max = r.Value
		}
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	// 键零填充，字典序即时间序
	sort.Strings(keys)

	for _, key := range keys {
		b := buckets[key]
		agg.Hourly = append(agg.Hourly, model.HourBucket{
			Key:     key,
			Label:   b.label,
			Average: Round1(b.sum / float64(b.count)),
			Min:     Round1(b.min),
			Max:     Round1(b.max),
			Count:   b.count,
		})
	}
	return agg
}

// Trend 后半段均值减前半段均值（中点 floor(n/2) 切分）
// 刻意的廉价双窗差值，不是回归；不足两点返回 0
func Trend(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	mid := len(series) / 2
	return mean(series[mid:]) - mean(series[:mid])
}

// Summarize 序列汇总统计，各值保留一位小数
// 空输入返回零值统计而非错误，展示层必须有东西可渲染
func Summarize(series []float64) model.SummaryStats {
	if len(series) == 0 {
		return model.SummaryStats{}
	}
	min, max := series[0], series[0]
	for _, v := range series[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return model.SummaryStats{
		Max:  Round1(max),
		Min:  Round1(min),
		Mean: Round1(mean(series)),
	}
}

func mean(series []float64) float64 {
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}
