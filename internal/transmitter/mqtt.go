package transmitter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"wisefido-healthsync/internal/models"

	"go.uber.org/zap"
)

// Publisher MQTT 发布接口（测试中可替换）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTTransmitter 将记录发布到 <topicPrefix>/<contextID>
type MQTTTransmitter struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewMQTTTransmitter 创建 MQTT 发送器
func NewMQTTTransmitter(publisher Publisher, topicPrefix string, qos byte, logger *zap.Logger) *MQTTTransmitter {
	return &MQTTTransmitter{
		publisher:   publisher,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		qos:         qos,
		logger:      logger,
	}
}

// Send 发送记录
func (t *MQTTTransmitter) Send(ctx context.Context, record models.CanonicalRecord, contextID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	topic := t.topicPrefix + "/" + contextID
	if err := t.publisher.Publish(topic, t.qos, false, payload); err != nil {
		return err
	}

	t.logger.Debug("Published record",
		zap.String("record_id", record.RecordID()),
		zap.String("topic", topic),
	)
	return nil
}
