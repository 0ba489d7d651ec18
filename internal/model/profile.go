package model

// Tier 严重度层级
// Rank 仅用于排序与着色，不参与业务判断
type Tier struct {
	Label string `json:"label"`
	Rank  int    `json:"rank"`
	Color string `json:"color"`
}

// ThresholdRule 一条阈值规则
// 规则按序求值，首个命中生效；边界为 nil 表示该侧无界
type ThresholdRule struct {
	Low           *float64 `json:"low,omitempty"`
	High          *float64 `json:"high,omitempty"`
	LowInclusive  bool     `json:"low_inclusive,omitempty"`
	HighInclusive bool     `json:"high_inclusive,omitempty"`
	Tier          Tier     `json:"tier"`
}

// Match 值是否落入规则区间
func (r ThresholdRule) Match(value float64) bool {
	if r.Low != nil {
		if r.LowInclusive {
			if value < *r.Low {
				return false
			}
		} else if value <= *r.Low {
			return false
		}
	}
	if r.High != nil {
		if r.HighInclusive {
			if value > *r.High {
				return false
			}
		} else if value >= *r.High {
			return false
		}
	}
	return true
}

// ProfileDirection 阈值危险方向
type ProfileDirection string

const (
	// DirectionAscending 值越高越危险
	DirectionAscending ProfileDirection = "ascending"
	// DirectionDescending 值越低越危险
	DirectionDescending ProfileDirection = "descending"
	// DirectionBanded 安全中间带，两端皆危险
	DirectionBanded ProfileDirection = "banded"
)

// ThresholdProfile 阈值配置：有序规则表 + 危险方向
// 最后一条规则必须两侧无界，保证任意有限实数都有归属
type ThresholdProfile struct {
	Name      string           `json:"name"`
	Direction ProfileDirection `json:"direction"`
	Unit      string           `json:"unit,omitempty"`
	Rules     []ThresholdRule  `json:"rules"`
}

func ptr(v float64) *float64 { return &v }

// BuiltinProfiles 观测到的三种部署阈值配置
// 各配置保留自己文档化的边界开闭方向，不做统一归一化
func BuiltinProfiles() map[string]ThresholdProfile {
	return map[string]ThresholdProfile{
		// 4 级上行：NORMAL < 100 ≤ MODERATE < 200 ≤ WARNING < 300 ≤ CRITICAL
		"level-4": {
			Name:      "level-4",
			Direction: DirectionAscending,
			Unit:      "cm",
			Rules: []ThresholdRule{
				{High: ptr(100), Tier: Tier{Label: "NORMAL", Rank: 0, Color: "green"}},
				{High: ptr(200), Tier: Tier{Label: "MODERATE", Rank: 1, Color: "yellow"}},
				{High: ptr(300), Tier: Tier{Label: "WARNING", Rank: 2, Color: "orange"}},
				{Tier: Tier{Label: "CRITICAL", Rank: 3, Color: "red"}},
			},
		},
		// 3 级下行：BAHAYA ≤ 20 < SIAGA ≤ 40 < AMAN
		"siaga-3": {
			Name:      "siaga-3",
			Direction: DirectionDescending,
			Unit:      "cm",
			Rules: []ThresholdRule{
				{High: ptr(20), HighInclusive: true, Tier: Tier{Label: "BAHAYA", Rank: 2, Color: "red"}},
				{High: ptr(40), HighInclusive: true, Tier: Tier{Label: "SIAGA", Rank: 1, Color: "orange"}},
				{Tier: Tier{Label: "AMAN", Rank: 0, Color: "green"}},
			},
		},
		// 4 级带状：安全中间带，过低与过高分别标为 MODERATE/CRITICAL
		"banded-4": {
			Name:      "banded-4",
			Direction: DirectionBanded,
			Unit:      "cm",
			Rules: []ThresholdRule{
				{High: ptr(5), Tier: Tier{Label: "CRITICAL", Rank: 3, Color: "red"}},
				{High: ptr(20), Tier: Tier{Label: "MODERATE", Rank: 1, Color: "yellow"}},
				{Low: ptr(95), LowInclusive: true, Tier: Tier{Label: "CRITICAL", Rank: 3, Color: "red"}},
				{Low: ptr(80), LowInclusive: true, Tier: Tier{Label: "MODERATE", Rank: 1, Color: "yellow"}},
				{Tier: Tier{Label: "NORMAL", Rank: 0, Color: "green"}},
			},
		},
	}
}
