package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// releaseScript 仅当 key 仍属于本令牌时删除
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisProvider 基于 Redis 的执行窗口（多实例互斥）
// key 的 TTL 等于窗口时长，进程崩溃时窗口自动失效
type RedisProvider struct {
	client *redis.Client
	key    string
	budget time.Duration
	logger *zap.Logger
}

// NewRedisProvider 创建 Redis 执行窗口提供者
func NewRedisProvider(client *redis.Client, key string, budget time.Duration, logger *zap.Logger) *RedisProvider {
	return &RedisProvider{
		client: client,
		key:    key,
		budget: budget,
		logger: logger,
	}
}

// Acquire 获取执行窗口（SET NX PX）
func (p *RedisProvider) Acquire(ctx context.Context, onExpire ExpiryFunc) (*Lease, error) {
	token := uuid.NewString()
	ok, err := p.client.SetNX(ctx, p.key, token, p.budget).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWindowUnavailable, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s held by another holder", ErrWindowUnavailable, p.key)
	}

	l := newLease(token, p.budget, func(*Lease) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, p.client, []string{p.key}, token).Err(); err != nil {
			// key 仍会随 TTL 过期
			p.logger.Warn("Failed to release execution lease",
				zap.String("key", p.key),
				zap.String("lease_id", token),
				zap.Error(err),
			)
		}
	}, onExpire)

	p.logger.Debug("Execution lease acquired",
		zap.String("key", p.key),
		zap.String("lease_id", token),
		zap.Duration("budget", p.budget),
	)
	return l, nil
}
