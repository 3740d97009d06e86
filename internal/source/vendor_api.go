package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"wisefido-healthsync/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// 厂家 API 业务状态码
const (
	vendorStatusOK            = 0
	vendorStatusNoData        = 2
	vendorStatusNotAuthorized = 401
	vendorStatusUnavailable   = 503
)

// VendorAPIConfig 厂家 API 配置
type VendorAPIConfig struct {
	BaseURL    string
	AppID      string
	SecretKey  string
	Timeout    time.Duration
	RetryCount int
}

// vendorResponse 厂家 API 通用响应
type vendorResponse struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

type vendorAuthorizeRequest struct {
	AppID     string   `json:"appId"`
	SecureKey string   `json:"secureKey"`
	Scopes    []string `json:"scopes"`
}

type vendorAuthorizeData struct {
	AccessToken string `json:"accessToken"`
}

type vendorSampleData struct {
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Timestamp int64   `json:"timestamp"` // 毫秒
}

// VendorAPISource 通过厂家 REST API 获取最新样本
type VendorAPISource struct {
	httpClient *resty.Client
	config     VendorAPIConfig
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewVendorAPISource 创建厂家 API 数据源
func NewVendorAPISource(cfg VendorAPIConfig, logger *zap.Logger) *VendorAPISource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &VendorAPISource{
		httpClient: client,
		config:     cfg,
		logger:     logger,
	}
}

// Kind 数据源类型
func (s *VendorAPISource) Kind() models.SourceKind {
	return models.SourceVendorAPI
}

// Authorize 以 App 凭证换取访问令牌
func (s *VendorAPISource) Authorize(ctx context.Context, scopes []string) error {
	var response vendorResponse
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(vendorAuthorizeRequest{
			AppID:     s.config.AppID,
			SecureKey: s.config.SecretKey,
			Scopes:    scopes,
		}).
		SetResult(&response).
		Post("/v1/authorize")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAvailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return fmt.Errorf("%w: http %d", ErrNotAuthorized, resp.StatusCode())
	case resp.StatusCode() >= 500 || resp.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("%w: http %d", ErrNotAvailable, resp.StatusCode())
	}

	switch response.Status {
	case vendorStatusOK:
	case vendorStatusNotAuthorized:
		return fmt.Errorf("%w: %s", ErrNotAuthorized, response.Msg)
	case vendorStatusUnavailable:
		return fmt.Errorf("%w: %s", ErrNotAvailable, response.Msg)
	default:
		return fmt.Errorf("vendor authorize error: %s (status: %d)", response.Msg, response.Status)
	}

	var data vendorAuthorizeData
	if err := json.Unmarshal(response.Data, &data); err != nil {
		return fmt.Errorf("failed to unmarshal authorize data: %w", err)
	}
	if data.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", ErrNotAuthorized)
	}

	s.mu.Lock()
	s.token = data.AccessToken
	s.mu.Unlock()

	s.logger.Info("Vendor API authorized", zap.Strings("scopes", scopes))
	return nil
}

// FetchLatest 获取某指标的最新样本
func (s *VendorAPISource) FetchLatest(ctx context.Context, metric models.Metric) (*models.Sample, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return nil, ErrNotAuthorized
	}

	var response vendorResponse
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("type", string(metric)).
		SetResult(&response).
		Get("/v1/samples/latest")
	if err != nil {
		return nil, fmt.Errorf("failed to call vendor API: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: http %d", ErrNotAuthorized, resp.StatusCode())
	}
	if resp.IsError() {
		return nil, fmt.Errorf("vendor API http error: %d", resp.StatusCode())
	}

	switch response.Status {
	case vendorStatusOK:
	case vendorStatusNoData:
		return nil, nil
	default:
		return nil, fmt.Errorf("vendor API error: %s (status: %d)", response.Msg, response.Status)
	}

	var data vendorSampleData
	if err := json.Unmarshal(response.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sample: %w", err)
	}

	return &models.Sample{
		Metric:    metric,
		Value:     data.Value,
		Unit:      data.Unit,
		Timestamp: time.UnixMilli(data.Timestamp).UTC(),
	}, nil
}
