package transmitter

import (
	"context"
	"fmt"
	"time"

	"wisefido-healthsync/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPConfig HTTP 发送配置
type HTTPConfig struct {
	Endpoint   string // 完整 URL，如 https://collect.example.com/v1/records
	AuthToken  string
	Timeout    time.Duration
	RetryCount int // 单次发送内的传输层重试，不跨周期
}

// HTTPTransmitter 通过 HTTP POST 发送记录
type HTTPTransmitter struct {
	httpClient *resty.Client
	endpoint   string
	logger     *zap.Logger
}

// NewHTTPTransmitter 创建 HTTP 发送器
func NewHTTPTransmitter(cfg HTTPConfig, logger *zap.Logger) *HTTPTransmitter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.AuthToken != "" {
		client.SetAuthToken(cfg.AuthToken)
	}

	return &HTTPTransmitter{
		httpClient: client,
		endpoint:   cfg.Endpoint,
		logger:     logger,
	}
}

// Send 发送记录
func (t *HTTPTransmitter) Send(ctx context.Context, record models.CanonicalRecord, contextID string) error {
	resp, err := t.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Context-Id", contextID).
		SetHeader("Idempotency-Key", record.RecordID()).
		SetBody(record).
		Post(t.endpoint)
	if err != nil {
		return fmt.Errorf("failed to post record: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("collection endpoint rejected record: http %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	t.logger.Debug("Posted record",
		zap.String("record_id", record.RecordID()),
		zap.String("context_id", contextID),
		zap.Int("status_code", resp.StatusCode()),
	)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
