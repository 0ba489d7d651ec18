package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xilian/telemetry-dashboard/internal/model"
)

func assembleOpts(view model.ViewMode) AssembleOptions {
	return AssembleOptions{
		Profile:   model.BuiltinProfiles()["level-4"],
		View:      view,
		TrendRise: 2,
		TrendFall: -2,
		Staleness: 10 * time.Minute,
		Now:       time.Unix(1772060000, 0),
	}
}

func TestAssembleEmptySnapshot(t *testing.T) {
	vm := AssembleViewModel("node-1", model.NodeSnapshot{}, assembleOpts(model.ViewRaw))

	assert.Equal(t, "node-1", vm.NodeID)
	assert.False(t, vm.HasData)
	assert.Nil(t, vm.Tier)
	assert.Equal(t, DisplaySentinel, vm.LastUpdated)
	assert.Empty(t, vm.Series)
	assert.Equal(t, 0, vm.HistoryCount)
	assert.Equal(t, model.SummaryStats{}, vm.Stats)
	assert.Equal(t, 0.0, vm.Trend.Value)
	assert.Equal(t, model.TrendFlat, vm.Trend.Direction)
	assert.False(t, vm.Online)
}

func TestAssembleLatestWithoutHistory(t *testing.T) {
	// latest 与 history 相互独立：只有当前读数也要正常渲染
	snap := model.NodeSnapshot{
		Latest: &model.Reading{
			Value:        150.26,
			Timestamp:    1772059900,
			TimestampISO: "2026-02-26T05:51:40+07:00",
			Unit:         "cm",
			Signal:       map[string]float64{"rssi": -97, "snr": 8.5},
		},
	}

	vm := AssembleViewModel("node-1", snap, assembleOpts(model.ViewRaw))
	assert.True(t, vm.HasData)
	assert.Equal(t, 150.3, vm.Current)
	assert.Equal(t, "cm", vm.Unit)
	require.NotNil(t, vm.Tier)
	assert.Equal(t, "MODERATE", vm.Tier.Label)
	assert.Equal(t, "26/02/2026, 05:51:40", vm.LastUpdated)
	assert.Equal(t, -97.0, vm.Signal["rssi"])
	assert.Empty(t, vm.Series)
	assert.Equal(t, model.SummaryStats{}, vm.Stats)
}

func TestAssembleHistoryWithoutLatest(t *testing.T) {
	snap := model.NodeSnapshot{
		History: map[string]model.Reading{
			"a": {Value: 10, Timestamp: 0},
			"b": {Value: 30, Timestamp: 3600},
			"c": {Value: 20, Timestamp: 7200},
		},
	}

	vm := AssembleViewModel("node-1", snap, assembleOpts(model.ViewRaw))
	assert.False(t, vm.HasData)
	assert.Nil(t, vm.Tier)
	assert.Equal(t, 3, vm.HistoryCount)
	require.Len(t, vm.Series, 3)
	assert.Equal(t, model.SummaryStats{Max: 30, Min: 10, Mean: 20}, vm.Stats)
	assert.Equal(t, 15.0, vm.Trend.Value)
	assert.Equal(t, model.TrendRising, vm.Trend.Direction)
}

func TestAssembleRawSeriesLabels(t *testing.T) {
	snap := model.NodeSnapshot{
		History: map[string]model.Reading{
			"a": {Value: 10.26, TimestampISO: "2026-02-26T04:10:00+07:00", Timestamp: 1772053800},
			"b": {Value: 20.14, TimestampISO: "2026-02-26T04:40:00+07:00", Timestamp: 1772055600},
		},
	}

	vm := AssembleViewModel("node-1", snap, assembleOpts(model.ViewRaw))
	require.Len(t, vm.Series, 2)
	assert.Equal(t, model.SeriesPoint{Label: "04:10", Value: 10.3}, vm.Series[0])
	assert.Equal(t, model.SeriesPoint{Label: "04:40", Value: 20.1}, vm.Series[1])
	assert.Equal(t, model.ViewRaw, vm.View)
}

func TestAssembleHourlyView(t *testing.T) {
	snap := model.NodeSnapshot{
		History: map[string]model.Reading{
			"a": {Value: 10, TimestampISO: "2026-02-26T04:10:00+07:00", Timestamp: 1772053800},
			"b": {Value: 30, TimestampISO: "2026-02-26T04:40:00+07:00", Timestamp: 1772055600},
			"c": {Value: 40, TimestampISO: "2026-02-26T05:05:00+07:00", Timestamp: 1772057100},
		},
	}

	vm := AssembleViewModel("node-1", snap, assembleOpts(model.ViewHourly))
	assert.Equal(t, model.ViewHourly, vm.View)
	require.Len(t, vm.Series, 2)
	assert.Equal(t, model.SeriesPoint{Label: "26/02 04:00", Value: 20}, vm.Series[0])
	assert.Equal(t, model.SeriesPoint{Label: "26/02 05:00", Value: 40}, vm.Series[1])

	// 小时视图的统计与趋势建立在桶均值序列上
	assert.Equal(t, model.SummaryStats{Max: 40, Min: 20, Mean: 30}, vm.Stats)
	assert.Equal(t, 20.0, vm.Trend.Value)
	assert.Equal(t, model.TrendRising, vm.Trend.Direction)
}

func TestAssembleTrendDirections(t *testing.T) {
	base := func(values ...float64) model.NodeSnapshot {
		history := map[string]model.Reading{}
		for i, v := range values {
			history[string(rune('a'+i))] = model.Reading{Value: v, Timestamp: int64(i * 60)}
		}
		return model.NodeSnapshot{History: history}
	}

	vm := AssembleViewModel("n", base(10, 10, 10, 10), assembleOpts(model.ViewRaw))
	assert.Equal(t, model.TrendFlat, vm.Trend.Direction)

	vm = AssembleViewModel("n", base(10, 10, 30, 30), assembleOpts(model.ViewRaw))
	assert.Equal(t, model.TrendRising, vm.Trend.Direction)

	vm = AssembleViewModel("n", base(30, 30, 10, 10), assembleOpts(model.ViewRaw))
	assert.Equal(t, model.TrendFalling, vm.Trend.Direction)

	// 阈值以内判平
	vm = AssembleViewModel("n", base(10, 10, 11, 11), assembleOpts(model.ViewRaw))
	assert.Equal(t, model.TrendFlat, vm.Trend.Direction)
}

func TestAssembleOnlineStaleness(t *testing.T) {
	opts := assembleOpts(model.ViewRaw)

	fresh := model.NodeSnapshot{Latest: &model.Reading{Value: 1, Timestamp: opts.Now.Unix() - 60}}
	assert.True(t, AssembleViewModel("n", fresh, opts).Online)

	stale := model.NodeSnapshot{Latest: &model.Reading{Value: 1, Timestamp: opts.Now.Unix() - 3600}}
	assert.False(t, AssembleViewModel("n", stale, opts).Online)

	// 未来时间戳不判在线
	future := model.NodeSnapshot{Latest: &model.Reading{Value: 1, Timestamp: opts.Now.Unix() + 600}}
	assert.False(t, AssembleViewModel("n", future, opts).Online)
}

func TestAssembleRoundingConsistency(t *testing.T) {
	// 单读数展示与桶统计走同一条舍入路径
	snap := model.NodeSnapshot{
		Latest:  &model.Reading{Value: 12.345, Timestamp: 100},
		History: map[string]model.Reading{"a": {Value: 12.345, Timestamp: 100}},
	}

	raw := AssembleViewModel("n", snap, assembleOpts(model.ViewRaw))
	hourly := AssembleViewModel("n", snap, assembleOpts(model.ViewHourly))

	require.Len(t, raw.Series, 1)
	require.Len(t, hourly.Series, 1)
	assert.Equal(t, raw.Current, raw.Series[0].Value)
	assert.Equal(t, raw.Series[0].Value, hourly.Series[0].Value)
}
