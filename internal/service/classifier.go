package service

import "github.com/xilian/telemetry-dashboard/internal/model"

// Classify 按配置的有序规则表归类测量值，首个命中生效
// 内置配置的末条规则两侧无界，任意有限实数恰好命中一层
func Classify(value float64, profile model.ThresholdProfile) model.Tier {
	for _, rule := range profile.Rules {
		if rule.Match(value) {
			return rule.Tier
		}
	}
	// 自定义配置漏写兜底规则时取末条，避免无归属
	if n := len(profile.Rules); n > 0 {
		return profile.Rules[n-1].Tier
	}
	return model.Tier{}
}
