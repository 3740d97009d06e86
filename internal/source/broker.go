package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqttcommon "wisefido-healthsync/common/mqtt"
	"wisefido-healthsync/internal/models"

	"go.uber.org/zap"
)

// Subscriber MQTT 订阅接口（测试中可替换）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// brokerSample 设备上报的样本格式
type brokerSample struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Timestamp int64   `json:"timestamp"` // 秒
}

// BrokerSource 订阅设备主题，缓存每个指标的最新样本
type BrokerSource struct {
	subscriber Subscriber
	topic      string
	qos        byte
	maxAge     time.Duration // 超过该时长的样本视为缺失，0 表示不过期
	logger     *zap.Logger
	now        func() time.Time

	mu         sync.RWMutex
	subscribed bool
	latest     map[models.Metric]models.Sample
	allowed    map[models.Metric]bool
}

// NewBrokerSource 创建设备主题数据源
func NewBrokerSource(subscriber Subscriber, topic string, qos byte, maxAge time.Duration, logger *zap.Logger) *BrokerSource {
	return &BrokerSource{
		subscriber: subscriber,
		topic:      topic,
		qos:        qos,
		maxAge:     maxAge,
		logger:     logger,
		now:        time.Now,
		latest:     make(map[models.Metric]models.Sample),
	}
}

// Kind 数据源类型
func (s *BrokerSource) Kind() models.SourceKind {
	return models.SourceDeviceBroker
}

// Authorize 订阅设备主题；scopes 限定缓存的指标
func (s *BrokerSource) Authorize(ctx context.Context, scopes []string) error {
	if s.subscriber == nil || s.topic == "" {
		return fmt.Errorf("%w: device broker not configured", ErrNotAvailable)
	}

	allowed := make(map[models.Metric]bool, len(scopes))
	for _, m := range models.ParseMetrics(scopes) {
		allowed[m] = true
	}
	if len(allowed) == 0 {
		return fmt.Errorf("%w: no metric in scopes", ErrNotAuthorized)
	}

	s.mu.Lock()
	s.allowed = allowed
	already := s.subscribed
	s.mu.Unlock()
	if already {
		return nil
	}

	if err := s.subscriber.Subscribe(s.topic, s.qos, s.handleMessage); err != nil {
		return fmt.Errorf("%w: %v", ErrNotAvailable, err)
	}

	s.mu.Lock()
	s.subscribed = true
	s.mu.Unlock()

	s.logger.Info("Device broker source subscribed", zap.String("topic", s.topic))
	return nil
}

// FetchLatest 返回缓存中的最新样本
func (s *BrokerSource) FetchLatest(ctx context.Context, metric models.Metric) (*models.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.subscribed {
		return nil, ErrNotAuthorized
	}
	sample, ok := s.latest[metric]
	if !ok {
		return nil, nil
	}
	if s.maxAge > 0 && s.now().Sub(sample.Timestamp) > s.maxAge {
		return nil, nil
	}
	return &sample, nil
}

// Close 取消订阅
func (s *BrokerSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.subscribed {
		return nil
	}
	s.subscribed = false
	return s.subscriber.Unsubscribe(s.topic)
}

// handleMessage 处理设备消息（数组，每个元素一个样本）
func (s *BrokerSource) handleMessage(topic string, payload []byte) error {
	var samples []brokerSample
	if err := json.Unmarshal(payload, &samples); err != nil {
		return fmt.Errorf("failed to unmarshal device samples: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bs := range samples {
		metric := models.Metric(bs.Metric)
		if !s.allowed[metric] {
			// 未授权或未知指标，忽略
			continue
		}
		ts := time.Unix(bs.Timestamp, 0).UTC()
		if prev, ok := s.latest[metric]; ok && prev.Timestamp.After(ts) {
			continue
		}
		s.latest[metric] = models.Sample{
			Metric:    metric,
			Value:     bs.Value,
			Unit:      bs.Unit,
			Timestamp: ts,
		}
	}

	s.logger.Debug("Cached device samples",
		zap.String("topic", topic),
		zap.Int("sample_count", len(samples)),
	)
	return nil
}
