package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xilian/telemetry-dashboard/internal/model"
)

func historyOf(readings ...model.Reading) map[string]model.Reading {
	history := make(map[string]model.Reading, len(readings))
	for i, r := range readings {
		history[fmt.Sprintf("rec-%03d", i)] = r
	}
	return history
}

func TestAggregateEmptyInput(t *testing.T) {
	agg := Aggregate(nil)
	assert.Empty(t, agg.Chronological)
	assert.Empty(t, agg.Hourly)

	agg = Aggregate(map[string]model.Reading{})
	assert.Empty(t, agg.Chronological)
	assert.Empty(t, agg.Hourly)
}

func TestAggregateChronologicalOrder(t *testing.T) {
	// 插入序不可泄漏进输出；输出只认 epoch
	history := historyOf(
		model.Reading{Value: 20, Timestamp: 7200},
		model.Reading{Value: 10, Timestamp: 0},
		model.Reading{Value: 30, Timestamp: 3600},
	)

	agg := Aggregate(history)
	require.Len(t, agg.Chronological, 3)
	assert.Equal(t, []int64{0, 3600, 7200}, []int64{
		agg.Chronological[0].Timestamp,
		agg.Chronological[1].Timestamp,
		agg.Chronological[2].Timestamp,
	})
	assert.Equal(t, []float64{10, 30, 20}, []float64{
		agg.Chronological[0].Value,
		agg.Chronological[1].Value,
		agg.Chronological[2].Value,
	})
}

func TestAggregateOrderIndependentOfRecordIDs(t *testing.T) {
	readings := []model.Reading{
		{Value: 1, Timestamp: 100},
		{Value: 2, Timestamp: 200},
		{Value: 3, Timestamp: 300},
		{Value: 4, Timestamp: 400},
	}

	// 同一组读数换不同记录 id 命名方式，时间序必须一致
	a := map[string]model.Reading{}
	b := map[string]model.Reading{}
	for i, r := range readings {
		a[fmt.Sprintf("a-%d", i)] = r
		b[fmt.Sprintf("z-%d", len(readings)-i)] = r
	}

	aggA := Aggregate(a)
	aggB := Aggregate(b)
	require.Equal(t, len(aggA.Chronological), len(aggB.Chronological))
	for i := range aggA.Chronological {
		assert.Equal(t, aggA.Chronological[i], aggB.Chronological[i])
	}
}

func TestAggregateEqualEpochsDeterministic(t *testing.T) {
	// 同 epoch 平局按记录 id 稳定，同进程内可复现
	history := map[string]model.Reading{
		"b": {Value: 2, Timestamp: 50},
		"a": {Value: 1, Timestamp: 50},
	}

	for i := 0; i < 10; i++ {
		agg := Aggregate(history)
		require.Len(t, agg.Chronological, 2)
		assert.Equal(t, 1.0, agg.Chronological[0].Value)
		assert.Equal(t, 2.0, agg.Chronological[1].Value)
	}
}

func TestAggregateHourlyBuckets(t *testing.T) {
	history := historyOf(
		model.Reading{Value: 10, TimestampISO: "2026-02-26T04:10:00+07:00", Timestamp: 1772053800},
		model.Reading{Value: 30, TimestampISO: "2026-02-26T04:40:00+07:00", Timestamp: 1772055600},
		model.Reading{Value: 20, TimestampISO: "2026-02-26T05:05:00+07:00", Timestamp: 1772057100},
	)

	agg := Aggregate(history)
	require.Len(t, agg.Hourly, 2)

	first := agg.Hourly[0]
	assert.Equal(t, "2026-02-26-04", first.Key)
	assert.Equal(t, "26/02 04:00", first.Label)
	assert.Equal(t, int64(2), first.Count)
	assert.Equal(t, 20.0, first.Average)
	assert.Equal(t, 10.0, first.Min)
	assert.Equal(t, 30.0, first.Max)

	second := agg.Hourly[1]
	assert.Equal(t, "2026-02-26-05", second.Key)
	assert.Equal(t, int64(1), second.Count)
	assert.Equal(t, 20.0, second.Average)
}

func TestAggregateBucketCompleteness(t *testing.T) {
	// 桶计数之和等于历史条数
	history := historyOf(
		model.Reading{Value: 1, Timestamp: 100},
		model.Reading{Value: 2, Timestamp: 3700},
		model.Reading{Value: 3, Timestamp: 3800},
		model.Reading{Value: 4, Timestamp: 90000},
		model.Reading{Value: 5, Timestamp: 90001},
	)

	agg := Aggregate(history)
	var total int64
	for _, b := range agg.Hourly {
		total += b.Count
		assert.LessOrEqual(t, b.Min, b.Max)
	}
	assert.Equal(t, int64(len(history)), total)
}

func TestAggregateBucketBounds(t *testing.T) {
	history := historyOf(
		model.Reading{Value: 12.34, Timestamp: 100},
		model.Reading{Value: 56.78, Timestamp: 200},
		model.Reading{Value: 33.33, Timestamp: 300},
	)

	agg := Aggregate(history)
	require.Len(t, agg.Hourly, 1)
	b := agg.Hourly[0]
	assert.Equal(t, Round1(12.34), b.Min)
	assert.Equal(t, Round1(56.78), b.Max)
	assert.Equal(t, Round1((12.34+56.78+33.33)/3), b.Average)
	for _, r := range agg.Chronological {
		assert.GreaterOrEqual(t, Round1(r.Value), b.Min-0.1)
		assert.LessOrEqual(t, Round1(r.Value), b.Max+0.1)
	}
}

func TestAggregateMixedISOAndEpochBucketing(t *testing.T) {
	// 无 ISO 的读数按固定 UTC 分桶
	history := historyOf(
		model.Reading{Value: 1, Timestamp: 0},
		model.Reading{Value: 2, Timestamp: 3600},
	)

	agg := Aggregate(history)
	require.Len(t, agg.Hourly, 2)
	assert.Equal(t, "1970-01-01-00", agg.Hourly[0].Key)
	assert.Equal(t, "1970-01-01-01", agg.Hourly[1].Key)
}

func TestRound1HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 1.3, Round1(1.25))
	assert.Equal(t, -1.3, Round1(-1.25))
	assert.Equal(t, 2.0, Round1(1.95))
	assert.Equal(t, 0.0, Round1(0))
}

func TestTrend(t *testing.T) {
	// 不足两点恒为 0
	assert.Equal(t, 0.0, Trend(nil))
	assert.Equal(t, 0.0, Trend([]float64{42}))

	// 中点 floor(n/2) 切分：[10] 与 [30,20] → 25 − 10
	assert.Equal(t, 15.0, Trend([]float64{10, 30, 20}))

	// 偶数长度对半
	assert.Equal(t, 2.0, Trend([]float64{1, 1, 3, 3}))

	// 下降为负
	assert.Equal(t, -15.0, Trend([]float64{20, 30, 10}))
}

func TestSummarize(t *testing.T) {
	// 空序列返回零值统计而非错误
	assert.Equal(t, model.SummaryStats{}, Summarize(nil))

	stats := Summarize([]float64{10, 30, 20})
	assert.Equal(t, 30.0, stats.Max)
	assert.Equal(t, 10.0, stats.Min)
	assert.Equal(t, 20.0, stats.Mean)

	// 与桶统计共用同一舍入路径
	stats = Summarize([]float64{1.11, 2.22})
	assert.Equal(t, Round1(2.22), stats.Max)
	assert.Equal(t, Round1(1.11), stats.Min)
	assert.Equal(t, Round1((1.11+2.22)/2), stats.Mean)
}
