// Package config 提供服务配置管理
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 服务配置
type Config struct {
	Server      ServerConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	WebSocket   WebSocketConfig
	Dashboard   DashboardConfig
	Performance PerformanceConfig
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRPS       int64
}

// RedisConfig 实时库配置
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	// 键前缀，形如 dashboard
	KeyPrefix string
}

// KafkaConfig 读数摄入配置
type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int
	MaxBytes       int
	MaxWait        time.Duration
	CommitInterval time.Duration
}

// WebSocketConfig WebSocket 推送配置
type WebSocketConfig struct {
	ReadBufferSize    int
	WriteBufferSize   int
	MessageBufferSize int
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
}

// DashboardConfig 看板业务配置
type DashboardConfig struct {
	// 生效的阈值配置名（level-4 / siaga-3 / banded-4）
	ProfileName string
	// 默认序列视图粒度（raw / hourly），请求可按次覆盖
	DefaultView string
	// 趋势标注阈值（单位同测量值）
	TrendRise float64
	TrendFall float64
	// 最近读数判为在线的新鲜度窗口
	StalenessWindow time.Duration
	// 全量对账周期（兜底订阅丢失）
	ResyncInterval time.Duration
}

// PerformanceConfig 性能配置
type PerformanceConfig struct {
	UpdateBufferSize int
}

// Load 从环境变量加载配置
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8083),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			MaxRPS:       int64(getEnvInt("SERVER_MAX_RPS", 1000)),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 50),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 5),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "dashboard"),
		},
		Kafka: KafkaConfig{
			Enabled:        getEnvBool("KAFKA_ENABLED", false),
			Brokers:        getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:          getEnv("KAFKA_TOPIC", "sensor-data"),
			GroupID:        getEnv("KAFKA_GROUP_ID", "telemetry-dashboard"),
			MinBytes:       getEnvInt("KAFKA_MIN_BYTES", 1024),
			MaxBytes:       getEnvInt("KAFKA_MAX_BYTES", 10*1024*1024),
			MaxWait:        getEnvDuration("KAFKA_MAX_WAIT", 100*time.Millisecond),
			CommitInterval: getEnvDuration("KAFKA_COMMIT_INTERVAL", 1*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:    getEnvInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize:   getEnvInt("WS_WRITE_BUFFER_SIZE", 4096),
			MessageBufferSize: getEnvInt("WS_MESSAGE_BUFFER_SIZE", 256),
			PingInterval:      getEnvDuration("WS_PING_INTERVAL", 30*time.Second),
			PongTimeout:       getEnvDuration("WS_PONG_TIMEOUT", 75*time.Second),
			WriteTimeout:      getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		},
		Dashboard: DashboardConfig{
			ProfileName:     getEnv("DASHBOARD_PROFILE", "level-4"),
			DefaultView:     getEnv("DASHBOARD_VIEW", "raw"),
			TrendRise:       getEnvFloat("DASHBOARD_TREND_RISE", 2.0),
			TrendFall:       getEnvFloat("DASHBOARD_TREND_FALL", -2.0),
			StalenessWindow: getEnvDuration("DASHBOARD_STALENESS_WINDOW", 10*time.Minute),
			ResyncInterval:  getEnvDuration("DASHBOARD_RESYNC_INTERVAL", 30*time.Second),
		},
		Performance: PerformanceConfig{
			UpdateBufferSize: getEnvInt("UPDATE_BUFFER_SIZE", 1024),
		},
	}
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
