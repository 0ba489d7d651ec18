package service

import (
	"time"

	"github.com/xilian/telemetry-dashboard/internal/model"
)

// AssembleOptions 组装视图模型的运行期参数
// 粒度与阈值配置显式传入，核心不持有隐藏状态
type AssembleOptions struct {
	Profile model.ThresholdProfile
	View    model.ViewMode
	// 趋势标注阈值（展示层概念，叠加在估计值之上）
	TrendRise float64
	TrendFall float64
	// 最近读数判为在线的新鲜度窗口
	Staleness time.Duration
	// 测试注入用；零值取当前时间
	Now time.Time
}

// AssembleViewModel 组装单节点视图模型
// latest 为空与 history 为空相互独立，任一缺失都渲染为明确的空态，永不抛错
func AssembleViewModel(nodeID string, snap model.NodeSnapshot, opts AssembleOptions) model.NodeViewModel {
	vm := model.NodeViewModel{
		NodeID:      nodeID,
		View:        opts.View,
		Series:      []model.SeriesPoint{},
		LastUpdated: DisplaySentinel,
	}

	agg := Aggregate(snap.History)
	vm.HistoryCount = len(agg.Chronological)

	// 当前视图下的序列与统计输入
	var values []float64
	switch opts.View {
	case model.ViewHourly:
		values = make([]float64, 0, len(agg.Hourly))
		for _, b := range agg.Hourly {
			values = append(values, b.Average)
			vm.Series = append(vm.Series, model.SeriesPoint{Label: b.Label, Value: b.Average})
		}
	default:
		values = make([]float64, 0, len(agg.Chronological))
		for _, r := range agg.Chronological {
			values = append(values, r.Value)
			vm.Series = append(vm.Series, model.SeriesPoint{
				Label: NewTimeRef(r.TimestampISO, r.Timestamp).TimeOfDay(),
				Value: Round1(r.Value),
			})
		}
	}

	vm.Stats = Summarize(values)
	delta := Trend(values)
	vm.Trend = model.TrendInfo{Value: delta, Direction: trendDirection(delta, opts)}

	if snap.Latest != nil {
		latest := snap.Latest
		vm.HasData = true
		vm.Current = Round1(latest.Value)
		vm.Unit = latest.Unit
		vm.Signal = latest.Signal
		tier := Classify(latest.Value, opts.Profile)
		vm.Tier = &tier
		vm.LastUpdated = NewTimeRef(latest.TimestampISO, latest.Timestamp).DateTime()

		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		if opts.Staleness > 0 {
			age := now.Unix() - latest.Timestamp
			vm.Online = age >= 0 && time.Duration(age)*time.Second <= opts.Staleness
		}
	}
	return vm
}

func trendDirection(delta float64, opts AssembleOptions) model.TrendDirection {
	switch {
	case delta > opts.TrendRise:
		return model.TrendRising
	case delta < opts.TrendFall:
		return model.TrendFalling
	default:
		return model.TrendFlat
	}
}
