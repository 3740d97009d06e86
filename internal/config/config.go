package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"wisefido-healthsync/common/config"
)

// 发送模式
const (
	TransmitHTTP   = "http"
	TransmitMQTT   = "mqtt"
	TransmitStream = "stream"
)

// 租约模式
const (
	LeaseLocal = "local"
	LeaseRedis = "redis"
)

// Config 健康数据同步服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// 采集周期配置
	Collector struct {
		DeviceID     string        // 本机设备 ID（时序库查询条件）
		Interval     time.Duration // 采集间隔，默认 60 秒
		FetchTimeout time.Duration // 单个指标的读取超时
		Scopes       []string      // 启动时申请的指标授权
	}

	// 数据源配置
	Sources struct {
		VendorAPI struct {
			Enabled    bool
			BaseURL    string
			AppID      string
			SecretKey  string
			Timeout    time.Duration
			RetryCount int
		}
		Broker struct {
			Enabled bool
			Topic   string        // 设备上报主题，如 "healthsync/device/+/samples"
			MaxAge  time.Duration // 超过该时长的样本视为缺失
		}
		Timeseries struct {
			Enabled bool
		}
	}

	// 发送配置
	Transmit struct {
		Mode        string // "http"、"mqtt" 或 "stream"
		Endpoint    string
		AuthToken   string
		Timeout     time.Duration
		RetryCount  int
		TopicPrefix string
		Stream      string
		StreamLen   int64
	}

	// 执行窗口租约
	Lease struct {
		Mode   string // "local" 或 "redis"
		Budget time.Duration
		Key    string
	}

	Session struct {
		Key string // 当前会话在 Redis 中的 key
	}

	Profile struct {
		CachePrefix string
		CacheTTL    time.Duration
	}

	Lifecycle struct {
		Topic         string // 锁屏/解锁事件主题
		SignalsEnable bool   // 是否监听 SIGUSR1/SIGUSR2
	}

	HTTP struct {
		Addr string // 指标和健康检查端口
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 数据库
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "owlrd"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 5
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "wisefido-healthsync"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	// 采集周期
	cfg.Collector.DeviceID = getEnv("DEVICE_ID", "")
	cfg.Collector.Interval = getEnvDuration("COLLECT_INTERVAL", 60*time.Second)
	cfg.Collector.FetchTimeout = getEnvDuration("COLLECT_FETCH_TIMEOUT", 5*time.Second)
	cfg.Collector.Scopes = splitList(getEnv("COLLECT_SCOPES",
		"stepCount,heartRate,bloodPressureSystolic,bloodPressureDiastolic,oxygenSaturation,bodyTemperature,"+
			"respiratoryRate,height,bodyMass,bodyMassIndex,walkingSpeed,activeEnergyBurned"))

	// 数据源
	cfg.Sources.VendorAPI.Enabled = getEnvBool("VENDOR_API_ENABLED", false)
	cfg.Sources.VendorAPI.BaseURL = getEnv("VENDOR_API_BASE_URL", "")
	cfg.Sources.VendorAPI.AppID = getEnv("VENDOR_API_APP_ID", "")
	cfg.Sources.VendorAPI.SecretKey = getEnv("VENDOR_API_SECRET_KEY", "")
	cfg.Sources.VendorAPI.Timeout = getEnvDuration("VENDOR_API_TIMEOUT", 10*time.Second)
	cfg.Sources.VendorAPI.RetryCount = getEnvInt("VENDOR_API_RETRY_COUNT", 2)

	cfg.Sources.Broker.Enabled = getEnvBool("BROKER_SOURCE_ENABLED", true)
	cfg.Sources.Broker.Topic = getEnv("BROKER_SOURCE_TOPIC", "healthsync/device/+/samples")
	cfg.Sources.Broker.MaxAge = getEnvDuration("BROKER_SOURCE_MAX_AGE", 10*time.Minute)

	cfg.Sources.Timeseries.Enabled = getEnvBool("TIMESERIES_SOURCE_ENABLED", false)

	// 发送
	cfg.Transmit.Mode = getEnv("TRANSMIT_MODE", TransmitHTTP)
	cfg.Transmit.Endpoint = getEnv("TRANSMIT_ENDPOINT", "http://localhost:8080/api/v1/health-records")
	cfg.Transmit.AuthToken = getEnv("TRANSMIT_AUTH_TOKEN", "")
	cfg.Transmit.Timeout = getEnvDuration("TRANSMIT_TIMEOUT", 10*time.Second)
	cfg.Transmit.RetryCount = getEnvInt("TRANSMIT_RETRY_COUNT", 1)
	cfg.Transmit.TopicPrefix = getEnv("TRANSMIT_TOPIC_PREFIX", "healthsync/records")
	cfg.Transmit.Stream = getEnv("TRANSMIT_STREAM", "healthsync:records")
	cfg.Transmit.StreamLen = int64(getEnvInt("TRANSMIT_STREAM_MAXLEN", 10000))

	// 租约
	cfg.Lease.Mode = getEnv("LEASE_MODE", LeaseLocal)
	cfg.Lease.Budget = getEnvDuration("LEASE_BUDGET", 30*time.Second)
	cfg.Lease.Key = getEnv("LEASE_KEY", "healthsync:lease")

	cfg.Session.Key = getEnv("SESSION_KEY", "healthsync:session")

	cfg.Profile.CachePrefix = getEnv("PROFILE_CACHE_PREFIX", "healthsync:profile:")
	cfg.Profile.CacheTTL = getEnvDuration("PROFILE_CACHE_TTL", time.Hour)

	cfg.Lifecycle.Topic = getEnv("LIFECYCLE_TOPIC", "healthsync/lifecycle")
	cfg.Lifecycle.SignalsEnable = getEnvBool("LIFECYCLE_SIGNALS", true)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":2112")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Collector.Interval <= 0 {
		return fmt.Errorf("invalid collect interval: %s", c.Collector.Interval)
	}
	if c.Collector.FetchTimeout <= 0 {
		return fmt.Errorf("invalid fetch timeout: %s", c.Collector.FetchTimeout)
	}
	switch c.Transmit.Mode {
	case TransmitHTTP:
		if c.Transmit.Endpoint == "" {
			return fmt.Errorf("transmit endpoint is required in http mode")
		}
	case TransmitMQTT, TransmitStream:
	default:
		return fmt.Errorf("unknown transmit mode: %q", c.Transmit.Mode)
	}
	switch c.Lease.Mode {
	case LeaseLocal, LeaseRedis:
	default:
		return fmt.Errorf("unknown lease mode: %q", c.Lease.Mode)
	}
	if c.Lease.Budget <= 0 {
		return fmt.Errorf("invalid lease budget: %s", c.Lease.Budget)
	}
	if !c.Sources.VendorAPI.Enabled && !c.Sources.Broker.Enabled && !c.Sources.Timeseries.Enabled {
		return fmt.Errorf("no measurement source enabled")
	}
	if c.Sources.VendorAPI.Enabled && c.Sources.VendorAPI.BaseURL == "" {
		return fmt.Errorf("vendor api base url is required")
	}
	if c.Sources.Timeseries.Enabled && c.Collector.DeviceID == "" {
		return fmt.Errorf("DEVICE_ID is required for the timeseries source")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultValue
}

// getEnvDuration 支持 "90s" 这样的写法，纯数字按秒处理
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if v, err := strconv.Atoi(value); err == nil {
		return time.Duration(v) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
