// Package transmitter 将标准化记录发送到远端采集端点
//
// 发送失败时记录直接丢弃，不做持久化重试；下一个采集周期即隐式重试。
package transmitter

import (
	"context"

	"wisefido-healthsync/internal/models"
)

// Transmitter 记录发送器
type Transmitter interface {
	Send(ctx context.Context, record models.CanonicalRecord, contextID string) error
}
