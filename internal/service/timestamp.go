// Package service 提供核心业务逻辑
package service

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DisplaySentinel 时间字段完全不可用时的展示哨兵
const DisplaySentinel = "—"

// 兜底桶键：epoch 日 / 0 时
const (
	fallbackDate = "1970-01-01"
	fallbackHour = 0
)

var (
	// 墙钟时分，T 后两位小时两位分钟
	clockRe = regexp.MustCompile(`T(\d{2}):(\d{2})`)
	// 完整墙钟时间，逐字段提取，不做日历校验（13 月原样通过）
	dateTimeRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})T(\d{2}):(\d{2}):(\d{2})`)
	// 日历日期
	dateRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
)

// TimeRef 一条读数的时间引用
// ISO 串存在且合式时其内嵌墙钟字段权威（不换算时区）；
// 否则回退到 epoch 的固定 UTC 解释。回退链永不出错。
type TimeRef struct {
	ISO   string
	Epoch int64
}

// NewTimeRef 创建时间引用
func NewTimeRef(iso string, epoch int64) TimeRef {
	return TimeRef{ISO: iso, Epoch: epoch}
}

// TimeOfDay 墙钟时分，形如 "04:52"
func (t TimeRef) TimeOfDay() string {
	if m := clockRe.FindStringSubmatch(t.ISO); m != nil {
		return m[1] + ":" + m[2]
	}
	if t.Epoch > 0 {
		return time.Unix(t.Epoch, 0).UTC().Format("15:04")
	}
	return DisplaySentinel
}

// DateTime 完整展示串，形如 "26/02/2026, 04:52:57"
func (t TimeRef) DateTime() string {
	if m := dateTimeRe.FindStringSubmatch(t.ISO); m != nil {
		return fmt.Sprintf("%s/%s/%s, %s:%s:%s", m[3], m[2], m[1], m[4], m[5], m[6])
	}
	if t.Epoch > 0 {
		return time.Unix(t.Epoch, 0).UTC().Format("02/01/2006, 15:04:05")
	}
	return DisplaySentinel
}

// HourOfDay 桶键用的小时（0–23）
func (t TimeRef) HourOfDay() int {
	if m := clockRe.FindStringSubmatch(t.ISO); m != nil {
		if hour, err := strconv.Atoi(m[1]); err == nil && hour <= 23 {
			return hour
		}
	}
	if t.Epoch > 0 {
		return time.Unix(t.Epoch, 0).UTC().Hour()
	}
	return fallbackHour
}

// CalendarDate 桶键用的日历日期，形如 "2026-02-26"
func (t TimeRef) CalendarDate() string {
	if m := dateRe.FindStringSubmatch(t.ISO); m != nil {
		return m[0]
	}
	if t.Epoch > 0 {
		return time.Unix(t.Epoch, 0).UTC().Format("2006-01-02")
	}
	return fallbackDate
}

// BucketKey 小时桶键，形如 "2026-02-26-04"
// 零填充保证字典序即时间序
func (t TimeRef) BucketKey() string {
	return fmt.Sprintf("%s-%02d", t.CalendarDate(), t.HourOfDay())
}

// BucketLabel 小时桶展示标签，形如 "26/02 04:00"
func (t TimeRef) BucketLabel() string {
	date := t.CalendarDate()
	// CalendarDate 恒为 YYYY-MM-DD
	return fmt.Sprintf("%s/%s %02d:00", date[8:10], date[5:7], t.HourOfDay())
}
