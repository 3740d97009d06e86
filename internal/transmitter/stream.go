package transmitter

import (
	"context"
	"fmt"

	rediscommon "wisefido-healthsync/common/redis"
	"wisefido-healthsync/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamTransmitter 将记录写入 Redis Streams（由下游服务转发）
type StreamTransmitter struct {
	redisClient *redis.Client
	stream      string
	maxLen      int64
	logger      *zap.Logger
}

// NewStreamTransmitter 创建 Streams 发送器
func NewStreamTransmitter(redisClient *redis.Client, stream string, maxLen int64, logger *zap.Logger) *StreamTransmitter {
	return &StreamTransmitter{
		redisClient: redisClient,
		stream:      stream,
		maxLen:      maxLen,
		logger:      logger,
	}
}

// Send 发送记录
func (t *StreamTransmitter) Send(ctx context.Context, record models.CanonicalRecord, contextID string) error {
	streamID, err := rediscommon.PublishJSONToStream(ctx, t.redisClient, t.stream, t.maxLen, record, map[string]interface{}{
		"context_id": contextID,
		"record_id":  record.RecordID(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	t.logger.Debug("Published record to Redis Streams",
		zap.String("record_id", record.RecordID()),
		zap.String("stream", t.stream),
		zap.String("stream_id", streamID),
	)
	return nil
}
