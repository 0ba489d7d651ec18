package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReading(t *testing.T) {
	payload := []byte(`{
		"value": 150.26,
		"timestamp": 1772056377,
		"timestamp_iso": "2026-02-26T04:52:57+07:00",
		"signal": {"rssi": -97, "snr": 8.5},
		"boot_count": 12,
		"unit": "cm"
	}`)

	reading, err := ParseReading(payload)
	require.NoError(t, err)
	assert.Equal(t, 150.26, reading.Value)
	assert.Equal(t, int64(1772056377), reading.Timestamp)
	assert.Equal(t, "2026-02-26T04:52:57+07:00", reading.TimestampISO)
	assert.Equal(t, -97.0, reading.Signal["rssi"])
	require.NotNil(t, reading.BootCount)
	assert.Equal(t, int64(12), *reading.BootCount)
	assert.Equal(t, "cm", reading.Unit)
}

func TestParseReadingMissingValue(t *testing.T) {
	// 缺主测量值的载荷与"无数据"同等处理
	_, err := ParseReading([]byte(`{"timestamp": 100}`))
	assert.ErrorIs(t, err, ErrMissingValue)
}

func TestParseReadingMalformedJSON(t *testing.T) {
	_, err := ParseReading([]byte(`{not json`))
	assert.Error(t, err)
}

func TestParseReadingZeroValue(t *testing.T) {
	// 显式的 0 是合法测量值，不同于字段缺失
	reading, err := ParseReading([]byte(`{"value": 0, "timestamp": 100}`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, reading.Value)
}

func TestSnapshotEmpty(t *testing.T) {
	assert.True(t, NodeSnapshot{}.Empty())
	assert.False(t, NodeSnapshot{Latest: &Reading{}}.Empty())
	assert.False(t, NodeSnapshot{History: map[string]Reading{"a": {}}}.Empty())
}

func TestParseViewMode(t *testing.T) {
	assert.Equal(t, ViewHourly, ParseViewMode("hourly", ViewRaw))
	assert.Equal(t, ViewRaw, ParseViewMode("raw", ViewHourly))
	// 未知值回退到默认
	assert.Equal(t, ViewRaw, ParseViewMode("weekly", ViewRaw))
	assert.Equal(t, ViewHourly, ParseViewMode("", ViewHourly))
}

func TestThresholdRuleMatch(t *testing.T) {
	low, high := 10.0, 20.0

	open := ThresholdRule{}
	assert.True(t, open.Match(-1e9))
	assert.True(t, open.Match(1e9))

	halfOpen := ThresholdRule{High: &high}
	assert.True(t, halfOpen.Match(19.9))
	assert.False(t, halfOpen.Match(20))

	closed := ThresholdRule{Low: &low, LowInclusive: true, High: &high, HighInclusive: true}
	assert.True(t, closed.Match(10))
	assert.True(t, closed.Match(20))
	assert.False(t, closed.Match(9.9))
	assert.False(t, closed.Match(20.1))
}

func TestBuiltinProfilesTerminalRuleUnbounded(t *testing.T) {
	// 末条规则两侧无界，保证归类全覆盖
	for name, profile := range BuiltinProfiles() {
		require.NotEmpty(t, profile.Rules, "profile %s", name)
		last := profile.Rules[len(profile.Rules)-1]
		assert.Nil(t, last.Low, "profile %s", name)
		assert.Nil(t, last.High, "profile %s", name)
	}
}
