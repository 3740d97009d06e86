// Package lifecycle 将宿主环境的生命周期信号转发给调度器
package lifecycle

import (
	"encoding/json"
	"fmt"

	mqttcommon "wisefido-healthsync/common/mqtt"

	"go.uber.org/zap"
)

// 宿主事件名
const (
	EventDeviceLocked      = "deviceLocked"
	EventDeviceUnlocked    = "deviceUnlocked"
	EventEnteredBackground = "applicationEnteredBackground"
)

// Handler 生命周期事件处理方（调度器）
type Handler interface {
	OnDeviceLocked()
	OnDeviceUnlocked()
	OnEnteredBackground()
}

// Subscriber MQTT 订阅接口
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// hostEvent 生命周期消息格式
type hostEvent struct {
	Event string `json:"event"`
}

// Listener 订阅生命周期主题
type Listener struct {
	subscriber Subscriber
	topic      string
	qos        byte
	handler    Handler
	logger     *zap.Logger
}

// NewListener 创建生命周期监听器
func NewListener(subscriber Subscriber, topic string, qos byte, handler Handler, logger *zap.Logger) *Listener {
	return &Listener{
		subscriber: subscriber,
		topic:      topic,
		qos:        qos,
		handler:    handler,
		logger:     logger,
	}
}

// Start 订阅生命周期主题
func (l *Listener) Start() error {
	if err := l.subscriber.Subscribe(l.topic, l.qos, l.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to lifecycle topic: %w", err)
	}
	l.logger.Info("Lifecycle listener started", zap.String("topic", l.topic))
	return nil
}

// Stop 取消订阅
func (l *Listener) Stop() {
	if err := l.subscriber.Unsubscribe(l.topic); err != nil {
		l.logger.Error("Failed to unsubscribe lifecycle topic", zap.Error(err))
	}
	l.logger.Info("Lifecycle listener stopped")
}

// handleMessage 处理生命周期消息
func (l *Listener) handleMessage(topic string, payload []byte) error {
	var ev hostEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("failed to unmarshal lifecycle event: %w", err)
	}
	return Dispatch(l.handler, ev.Event)
}

// Dispatch 按事件名调用处理方
func Dispatch(h Handler, event string) error {
	switch event {
	case EventDeviceLocked:
		h.OnDeviceLocked()
	case EventDeviceUnlocked:
		h.OnDeviceUnlocked()
	case EventEnteredBackground:
		h.OnEnteredBackground()
	default:
		return fmt.Errorf("unknown lifecycle event: %q", event)
	}
	return nil
}
