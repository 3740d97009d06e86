package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// connectionChecker MQTT 连接状态
type connectionChecker interface {
	IsConnected() bool
}

// newHTTPHandler 指标和健康检查路由：/metrics、/live、/ready
func newHTTPHandler(db *sql.DB, redisClient *redis.Client, mqttClient connectionChecker) http.Handler {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(500))
	if db != nil {
		health.AddReadinessCheck("database", healthcheck.DatabasePingCheck(db, 1*time.Second))
	}
	if redisClient != nil {
		health.AddReadinessCheck("redis", redisPingCheck(redisClient, 1*time.Second))
	}
	if mqttClient != nil {
		health.AddReadinessCheck("mqtt", checkConnected(mqttClient))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/live", health)
	mux.Handle("/ready", health)
	return mux
}

func redisPingCheck(client *redis.Client, timeout time.Duration) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}

func checkConnected(c connectionChecker) healthcheck.Check {
	return func() error {
		if c.IsConnected() {
			return nil
		}
		return errors.New("not connected to mqtt broker")
	}
}
